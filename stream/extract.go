package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// SchemaJSON serializes an output schema for transport to a backend or
// inline prompt injection. Raw JSON forms pass through unchanged; any other
// Go value is reflected into a JSON Schema.
func SchemaJSON(schema interface{}) (json.RawMessage, error) {
	switch s := schema.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if !json.Valid(s) {
			return nil, fmt.Errorf("output schema is not valid JSON")
		}
		return s, nil
	case []byte:
		return SchemaJSON(json.RawMessage(s))
	case string:
		return SchemaJSON(json.RawMessage(s))
	case map[string]interface{}:
		return json.Marshal(s)
	default:
		reflector := jsonschema.Reflector{DoNotReference: true}
		return json.Marshal(reflector.Reflect(schema))
	}
}

// InjectSchema appends a JSON-only output instruction to the prompt for
// backends without a native schema-constrained mode.
func InjectSchema(prompt string, schemaJSON json.RawMessage) string {
	if len(schemaJSON) == 0 {
		return prompt
	}
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nRespond with a single JSON object matching this JSON Schema, and no other text:\n")
	b.Write(schemaJSON)
	return b.String()
}

// ExtractJSON pulls the first well-formed JSON object out of assistant
// prose. A fenced code block is preferred; otherwise the first balanced
// {...} span is tried. Returns (nil, false) when nothing parses; the
// backend may simply not have complied, which is not an error.
func ExtractJSON(text string) (json.RawMessage, bool) {
	if candidate, ok := fencedBlock(text); ok {
		if obj, ok := firstObject(candidate); ok {
			return obj, true
		}
	}
	return firstObject(text)
}

// fencedBlock returns the body of the first ``` fence, honoring an optional
// language tag on the opening line.
func fencedBlock(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// firstObject scans for the first balanced top-level {...} span that parses
// as JSON. Brace counting tracks string literals and escapes so braces in
// values do not unbalance the scan.
func firstObject(text string) (json.RawMessage, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					candidate := text[start : i+1]
					if json.Valid([]byte(candidate)) {
						return json.RawMessage(candidate), true
					}
					// Balanced but invalid; try the next opening brace.
					if next, ok := firstObject(text[i+1:]); ok {
						return next, ok
					}
					return nil, false
				}
			}
		}
	}
	return nil, false
}
