package xmltool

import (
	"regexp"
	"strings"
)

// openTagRe matches a leading-whitespace-prefixed opening tag so we can
// measure each tag's indentation column, the original's proxy for
// sibling-vs-child nesting depth when closing tags are missing.
var openTagRe = regexp.MustCompile(`(?m)^([ \t]*)<([a-zA-Z_][\w\-]{0,19})>`)

// parseParams extracts each top-level child of a <params> block into a
// name -> value map. List-typed params (tag name containing "list", or a
// body made of <item> children) become []any; everything else is scalar,
// coerced via parseValue.
func parseParams(body string) map[string]any {
	result := map[string]any{}

	matches := openTagRe.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return result
	}

	type tagSpan struct {
		name       string
		indent     int
		contentStart int
		tagStart   int
	}
	var spans []tagSpan
	for _, m := range matches {
		indent := m[3] - m[2] // length of the indentation group
		name := body[m[4]:m[5]]
		spans = append(spans, tagSpan{name: name, indent: indent, contentStart: m[1], tagStart: m[0]})
	}

	nextTop := 0
	for i, sp := range spans {
		if sp.tagStart < nextTop {
			// Nested inside the previous top-level tag's content.
			continue
		}
		closeTag := "</" + sp.name + ">"
		var content string
		if closeIdx := strings.Index(body[sp.contentStart:], closeTag); closeIdx != -1 {
			content = body[sp.contentStart : sp.contentStart+closeIdx]
		} else {
			// No closing tag: bound content by the next sibling tag at the
			// same-or-shallower indentation, else end of body.
			end := len(body)
			for j := i + 1; j < len(spans); j++ {
				if spans[j].indent <= sp.indent {
					end = spans[j].tagStart
					break
				}
			}
			content = body[sp.contentStart:end]
		}
		nextTop = sp.contentStart + len(content)

		if isListTag(sp.name, content) {
			result[sp.name] = extractListItems(content)
		} else {
			result[sp.name] = parseValue(content)
		}
	}

	return result
}

var itemTagRe = regexp.MustCompile(`(?is)<item>(.*?)</item>`)

func isListTag(name, content string) bool {
	if strings.Contains(strings.ToLower(name), "list") {
		return true
	}
	return itemTagRe.MatchString(content)
}

func extractListItems(content string) []any {
	matches := itemTagRe.FindAllStringSubmatch(content, -1)
	items := make([]any, 0, len(matches))
	for _, m := range matches {
		items = append(items, parseValue(m[1]))
	}
	if len(items) == 0 {
		// Legacy bracket-array fallback: "[a, b, c]".
		trimmed := strings.TrimSpace(content)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			inner := strings.TrimSuffix(strings.TrimPrefix(trimmed, "["), "]")
			if inner != "" {
				for _, part := range strings.Split(inner, ",") {
					items = append(items, parseValue(strings.TrimSpace(part)))
				}
			}
		}
	}
	return items
}

// parseValue strips CDATA wrapping (preserving any literal <, >, & inside)
// then coerces bool/int/float literals; everything else stays a string.
func parseValue(raw string) any {
	s := stripCDATA(raw)
	s = strings.TrimSpace(s)

	switch {
	case boolTrueRe.MatchString(s):
		return true
	case boolFalseRe.MatchString(s):
		return false
	case intRe.MatchString(s):
		if n, err := parseInt(s); err == nil {
			return n
		}
	case floatRe.MatchString(s):
		if f, err := parseFloat(s); err == nil {
			return f
		}
	}
	return s
}
