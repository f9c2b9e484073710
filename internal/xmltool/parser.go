// Package xmltool extracts structured tool invocations from an LLM's
// free-form text output. LLM output is not guaranteed to be well-formed
// XML, so this is deliberately a lenient, regex-based scanner rather than
// an encoding/xml decoder — see DESIGN.md for why encoding/xml is the
// wrong tool here.
//
// Grounded on original_source/src/utils/xml_parser.py's SimpleXMLParser.
package xmltool

import (
	"regexp"
	"strings"
)

// ToolCall is one parsed <tool_call> block.
type ToolCall struct {
	Name    string
	Params  map[string]any
	RawText string
}

var (
	// A tag name is a leading letter/underscore followed by up to 19 more
	// word/hyphen characters — matches the original's conservative pattern
	// so we never capture surrounding prose as a "tag".
	tagNameRe = regexp.MustCompile(`^[a-zA-Z_][\w\-]{0,19}$`)

	toolCallOpenRe  = regexp.MustCompile(`(?s)<tool_call>`)
	toolCallCloseRe = regexp.MustCompile(`(?s)</tool_call>`)

	cdataRe = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)

	nameTagRe = regexp.MustCompile(`(?s)<name>(.*?)</name>`)
	// Unclosed <name> falls back to first line only, per the original.
	nameTagUnclosedRe = regexp.MustCompile(`<name>([^\n<]*)`)

	paramsOpenRe  = regexp.MustCompile(`(?s)<params>`)
	paramsCloseRe = regexp.MustCompile(`(?s)</params>`)

	boolTrueRe  = regexp.MustCompile(`^(?i)true$`)
	boolFalseRe = regexp.MustCompile(`^(?i)false$`)
	intRe       = regexp.MustCompile(`^-?\d+$`)
	floatRe     = regexp.MustCompile(`^-?\d+\.\d+$`)
)

// Parse returns the FIRST well-formed tool call found in text, or nil if
// none is present. Additional calls in the same text are ignored, matching
// spec.md §4.2.
func Parse(text string) *ToolCall {
	block, ok := extractFirstBlock(text, "tool_call")
	if !ok {
		return nil
	}
	return parseSingleCall(block)
}

// extractFirstBlock finds the first <tag>...</tag> span. If the closing
// tag is missing, it falls back to "next occurrence of the SAME opening
// tag, or end of string" — the original's lenient behavior for truncated
// LLM output.
func extractFirstBlock(text, tag string) (string, bool) {
	open := "<" + tag + ">"
	close := "</" + tag + ">"

	start := strings.Index(text, open)
	if start == -1 {
		return "", false
	}
	contentStart := start + len(open)

	if end := strings.Index(text[contentStart:], close); end != -1 {
		return text[contentStart : contentStart+end], true
	}

	// No closing tag: stop at the next opening tag of the same name, else EOF.
	rest := text[contentStart:]
	if next := strings.Index(rest, open); next != -1 {
		return rest[:next], true
	}
	return rest, true
}

func parseSingleCall(block string) *ToolCall {
	name := extractSimpleTag(block, "name", nameTagRe, nameTagUnclosedRe)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	params := map[string]any{}
	if body, ok := extractParamsBody(block); ok {
		params = parseParams(body)
	}

	return &ToolCall{Name: name, Params: params, RawText: block}
}

func extractParamsBody(block string) (string, bool) {
	loc := paramsOpenRe.FindStringIndex(block)
	if loc == nil {
		return "", false
	}
	start := loc[1]
	if closeLoc := paramsCloseRe.FindStringIndex(block[start:]); closeLoc != nil {
		return block[start : start+closeLoc[0]], true
	}
	return block[start:], true
}

// extractSimpleTag pulls a single scalar tag's content, preferring a
// properly closed tag and falling back to the unclosed-first-line pattern.
func extractSimpleTag(block, tag string, closedRe, unclosedRe *regexp.Regexp) string {
	if m := closedRe.FindStringSubmatch(block); m != nil {
		return stripCDATA(m[1])
	}
	if m := unclosedRe.FindStringSubmatch(block); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func stripCDATA(s string) string {
	if m := cdataRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return strings.TrimSpace(s)
}
