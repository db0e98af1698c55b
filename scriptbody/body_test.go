package scriptbody

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBody = `{"output":{"title":"Cats","hook":"Did you know?","main_body":"1. Intro\nSome text\n\n2. Middle\nMore text","call_to_action":"Subscribe","b_roll_suggestions":["cat jumping","cat sleeping"],"tone":"playful"}}`

func TestDecodeBody(t *testing.T) {
	out, err := DecodeBody(sampleBody)
	require.NoError(t, err)
	assert.Equal(t, "Cats", out.Title)
	assert.Equal(t, "Did you know?", out.Hook)
	assert.Equal(t, "Subscribe", out.CallToAction)
	assert.Equal(t, []string{"cat jumping", "cat sleeping"}, out.BRoll)
	assert.Equal(t, "1. Intro\nSome text\n\n2. Middle\nMore text", out.MainBodyText())
}

func TestDecodeBody_Errors(t *testing.T) {
	_, err := DecodeBody("")
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = DecodeBody(`{"result":{}}`)
	assert.ErrorIs(t, err, ErrNoOutput)

	_, err = DecodeBody(`{"output":null}`)
	assert.ErrorIs(t, err, ErrNoOutput)

	_, err = DecodeBody(`not json`)
	assert.Error(t, err)
}

func TestDecodeBody_ArrayAndCTAAlias(t *testing.T) {
	out, err := DecodeBody(`[{"output":{"hook":"h","cta":"Follow"}}]`)
	require.NoError(t, err)
	assert.Equal(t, "Follow", out.CallToAction)

	encoded, err := out.Encode()
	require.NoError(t, err)

	var env map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(encoded), &env))
	assert.Equal(t, "Follow", env["output"]["cta"], "the original key is kept")
	assert.NotContains(t, env["output"], "call_to_action")
}

func TestEncode_PreservesUnknownFields(t *testing.T) {
	out, err := DecodeBody(sampleBody)
	require.NoError(t, err)
	out.Hook = "New hook"

	encoded, err := out.Encode()
	require.NoError(t, err)

	again, err := DecodeBody(encoded)
	require.NoError(t, err)
	assert.Equal(t, "New hook", again.Hook)
	assert.Equal(t, out.MainBodyText(), again.MainBodyText())
	assert.JSONEq(t, `"playful"`, string(again.extra["tone"]))
}

func TestMainBodyText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"string", `"plain text"`, "plain text"},
		{"list of strings", `["one","two"]`, "one\n\ntwo"},
		{"list of objects", `[{"narrator":"Hello","on_screen_text":"Hi"},{"narrator":"Bye"}]`, "Hello [Hi]\n\nBye"},
		{"single object", `{"narrator":"Solo","on_screen_text":"Text"}`, "Solo [Text]"},
		{"mixed list", `["one",{"on_screen_text":"only text"}]`, "one\n\n[only text]"},
		{"null", `null`, ""},
		{"empty", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MainBodyText(json.RawMessage(tt.raw)))
		})
	}
}
