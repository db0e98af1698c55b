package scriptbody

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_HookAndCTA(t *testing.T) {
	out := NewOutput("T", "old hook", "body", "old cta")

	require.NoError(t, Apply(out, Selection{Target: TargetHook, Option: "new hook"}))
	require.NoError(t, Apply(out, Selection{Target: TargetCTA, Option: "new cta"}))
	assert.Equal(t, "new hook", out.Hook)
	assert.Equal(t, "new cta", out.CallToAction)
}

func TestApply_ParagraphOnStringBody(t *testing.T) {
	out := NewOutput("", "", "First\n\nSecond\n\nThird", "")

	require.NoError(t, Apply(out, Selection{Target: TargetParagraph, Option: "Replaced", Index: 1}))
	assert.Equal(t, "First\n\nReplaced\n\nThird", out.MainBodyText())

	require.NoError(t, Apply(out, Selection{Target: TargetAddParagraph, Option: "Inserted", Index: 0}))
	assert.Equal(t, "Inserted\n\nFirst\n\nReplaced\n\nThird", out.MainBodyText())

	require.NoError(t, Apply(out, Selection{Target: TargetAddParagraph, Option: "Last", Index: 4}))
	assert.True(t, strings.HasSuffix(out.MainBodyText(), "Third\n\nLast"))

	err := Apply(out, Selection{Target: TargetParagraph, Option: "x", Index: 9})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestApply_ParagraphOnListBody(t *testing.T) {
	out := &Output{MainBody: json.RawMessage(`[{"narrator":"A","on_screen_text":"a"},"B"]`)}

	require.NoError(t, Apply(out, Selection{Target: TargetParagraph, Option: "B2", Index: 1}))
	assert.JSONEq(t, `[{"narrator":"A","on_screen_text":"a"},"B2"]`, string(out.MainBody))

	require.NoError(t, Apply(out, Selection{Target: TargetAddParagraph, Option: "C", Index: 2}))
	assert.JSONEq(t, `[{"narrator":"A","on_screen_text":"a"},"B2","C"]`, string(out.MainBody))
}

func TestApply_Section(t *testing.T) {
	out := NewOutput("", "", "1. Intro\nSome text\n\n2. Middle\nMore text", "")

	require.NoError(t, Apply(out, Selection{Target: TargetSection, Option: "Rewritten middle", Index: 1}))
	st := ParseSections(out.MainBodyText())
	require.Len(t, st.Sections, 2)
	assert.Equal(t, "Middle", st.Sections[1].Title)
	assert.Equal(t, "Rewritten middle", st.Sections[1].Body)
	assert.Equal(t, "Some text", st.Sections[0].Body)

	assert.ErrorIs(t, Apply(out, Selection{Target: TargetSection, Index: 5}), ErrIndexOutOfRange)
}

func TestApply_SectionOptionRepeatsHeading(t *testing.T) {
	cases := map[string]string{
		"numbered heading": "2. Middle\nRewritten middle",
		"bare heading":     "middle\nRewritten middle",
		"no heading":       "Rewritten middle",
	}
	for name, option := range cases {
		t.Run(name, func(t *testing.T) {
			out := NewOutput("", "", "1. Intro\nSome text\n\n2. Middle\nMore text", "")

			require.NoError(t, Apply(out, Selection{Target: TargetSection, Option: option, Index: 1}))
			st := ParseSections(out.MainBodyText())
			require.Len(t, st.Sections, 2)
			assert.Equal(t, "Middle", st.Sections[1].Title)
			assert.Equal(t, "Rewritten middle", st.Sections[1].Body)
		})
	}

	out := NewOutput("", "", "1. Intro\nSome text\n\n2. Middle\nMore text", "")
	require.NoError(t, Apply(out, Selection{Target: TargetSection, Option: "Intro aside\nKept as written", Index: 0}))
	assert.Equal(t, "Intro aside\nKept as written", ParseSections(out.MainBodyText()).Sections[0].Body)
}

func TestApply_UnknownTarget(t *testing.T) {
	assert.ErrorIs(t, Apply(&Output{}, Selection{Target: "title"}), ErrUnknownTarget)
}

func TestRenderMarkdown(t *testing.T) {
	out, err := DecodeBody(`{"output":{"hook":"Hook line","main_body":"1. Intro\nSome text [On-screen text: \"Buy now\"]","call_to_action":"Subscribe","b_roll_suggestions":["cat"]}}`)
	require.NoError(t, err)

	md := RenderMarkdown(out, "Cats - English")
	assert.Equal(t, "# Cats - English\n\n"+
		"## Hook\n\nHook line\n\n"+
		"## Script\n\n### Intro\n\nSome text\n\n> On-screen text: Buy now\n\n"+
		"## Call to Action\n\nSubscribe\n\n"+
		"## B-Roll Suggestions\n\n- cat\n", md)
}
