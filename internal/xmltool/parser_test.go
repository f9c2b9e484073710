package xmltool

import "testing"

func TestParse_StandardFormat(t *testing.T) {
	text := `<tool_call>
  <name>search_web</name>
  <params>
    <query><![CDATA[golang concurrency patterns]]></query>
    <max_results>5</max_results>
  </params>
</tool_call>`

	call := Parse(text)
	if call == nil {
		t.Fatal("expected a parsed tool call")
	}
	if call.Name != "search_web" {
		t.Fatalf("name = %q", call.Name)
	}
	if call.Params["query"] != "golang concurrency patterns" {
		t.Fatalf("query = %v", call.Params["query"])
	}
	if call.Params["max_results"] != int64(5) {
		t.Fatalf("max_results = %v (%T)", call.Params["max_results"], call.Params["max_results"])
	}
}

func TestParse_CDATAWithAngleBrackets(t *testing.T) {
	text := `<tool_call><name>x</name><params><param><![CDATA[a<b&c>]]></param></params></tool_call>`
	call := Parse(text)
	if call == nil {
		t.Fatal("expected a parsed tool call")
	}
	if call.Params["param"] != "a<b&c>" {
		t.Fatalf("param = %q", call.Params["param"])
	}
}

func TestParse_ListParams(t *testing.T) {
	text := `<tool_call>
  <name>batch</name>
  <params>
    <keywords_list>
      <item>alpha</item>
      <item>beta</item>
    </keywords_list>
  </params>
</tool_call>`
	call := Parse(text)
	if call == nil {
		t.Fatal("expected a parsed tool call")
	}
	list, ok := call.Params["keywords_list"].([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("keywords_list = %#v", call.Params["keywords_list"])
	}
	if list[0] != "alpha" || list[1] != "beta" {
		t.Fatalf("keywords_list items = %#v", list)
	}
}

func TestParse_UnclosedContentWithCode(t *testing.T) {
	text := `<tool_call>
  <name>call_subagent</name>
  <params>
    <agent_type>search_agent</agent_type>
    <instruction>find func main() { fmt.Println("hi") }
  </params>
</tool_call>
Trailing prose that should be ignored.`
	call := Parse(text)
	if call == nil {
		t.Fatal("expected a parsed tool call")
	}
	if call.Name != "call_subagent" {
		t.Fatalf("name = %q", call.Name)
	}
	instruction, _ := call.Params["instruction"].(string)
	if instruction == "" {
		t.Fatal("expected a non-empty instruction despite the missing closing tag")
	}
}

func TestParse_FirstCallOnly(t *testing.T) {
	text := `<tool_call><name>first</name><params></params></tool_call>
<tool_call><name>second</name><params></params></tool_call>`
	call := Parse(text)
	if call == nil || call.Name != "first" {
		t.Fatalf("expected only the first call, got %#v", call)
	}
}

func TestParse_EmptyNameYieldsNoCall(t *testing.T) {
	text := `<tool_call><name></name><params></params></tool_call>`
	if call := Parse(text); call != nil {
		t.Fatalf("expected nil for empty name, got %#v", call)
	}
}

func TestParse_NoToolCallBlock(t *testing.T) {
	if call := Parse("just some plain text from the model"); call != nil {
		t.Fatalf("expected nil, got %#v", call)
	}
}

func TestParse_BooleanAndFloatCoercion(t *testing.T) {
	text := `<tool_call>
  <name>configure</name>
  <params>
    <enabled>true</enabled>
    <threshold>0.75</threshold>
  </params>
</tool_call>`
	call := Parse(text)
	if call.Params["enabled"] != true {
		t.Fatalf("enabled = %#v", call.Params["enabled"])
	}
	if call.Params["threshold"] != 0.75 {
		t.Fatalf("threshold = %#v", call.Params["threshold"])
	}
}
