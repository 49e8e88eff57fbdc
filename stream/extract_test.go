package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONFencedBlock(t *testing.T) {
	obj, ok := ExtractJSON("Here you go:\n```json\n{\"a\":1}\n```\nDone.")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(obj))
}

func TestExtractJSONFenceWithoutLanguageTag(t *testing.T) {
	obj, ok := ExtractJSON("```\n{\"a\": [1, 2]}\n```")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":[1,2]}`, string(obj))
}

func TestExtractJSONBareObjectInProse(t *testing.T) {
	obj, ok := ExtractJSON(`The answer is {"status":"ok","count":3} as requested.`)
	require.True(t, ok)
	assert.JSONEq(t, `{"status":"ok","count":3}`, string(obj))
}

func TestExtractJSONBracesInsideStrings(t *testing.T) {
	obj, ok := ExtractJSON(`{"text":"a } b { c","n":1}`)
	require.True(t, ok)
	assert.JSONEq(t, `{"text":"a } b { c","n":1}`, string(obj))
}

func TestExtractJSONNonCompliantProse(t *testing.T) {
	obj, ok := ExtractJSON("Sorry, I could not produce structured output.")
	assert.False(t, ok)
	assert.Nil(t, obj)
}

func TestExtractJSONUnbalanced(t *testing.T) {
	_, ok := ExtractJSON(`{"a": 1`)
	assert.False(t, ok)
}

func TestExtractJSONSkipsInvalidBalancedSpan(t *testing.T) {
	obj, ok := ExtractJSON(`{not json} then {"real": true}`)
	require.True(t, ok)
	assert.JSONEq(t, `{"real":true}`, string(obj))
}

func TestSchemaJSONPassthrough(t *testing.T) {
	raw := json.RawMessage(`{"type":"object"}`)
	out, err := SchemaJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object"}`, string(out))

	out, err = SchemaJSON(`{"type":"object"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object"}`, string(out))
}

func TestSchemaJSONRejectsInvalidRaw(t *testing.T) {
	_, err := SchemaJSON(json.RawMessage(`{oops`))
	assert.Error(t, err)
}

func TestSchemaJSONReflectsStruct(t *testing.T) {
	type verdict struct {
		Passed bool   `json:"passed"`
		Notes  string `json:"notes,omitempty"`
	}
	out, err := SchemaJSON(verdict{})
	require.NoError(t, err)

	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &schema))
	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "passed")
}

func TestSchemaJSONNil(t *testing.T) {
	out, err := SchemaJSON(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestInjectSchema(t *testing.T) {
	got := InjectSchema("Review this.", json.RawMessage(`{"type":"object"}`))
	assert.Contains(t, got, "Review this.")
	assert.Contains(t, got, `{"type":"object"}`)
	assert.Contains(t, got, "JSON Schema")

	assert.Equal(t, "Review this.", InjectSchema("Review this.", nil))
}
