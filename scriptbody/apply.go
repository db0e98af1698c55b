package scriptbody

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Selection targets. They match the refinement types of the editor.
const (
	TargetHook         = "hook"
	TargetCTA          = "cta"
	TargetParagraph    = "paragraph"
	TargetSection      = "section"
	TargetAddParagraph = "add_paragraph"
)

var (
	ErrUnknownTarget   = errors.New("unknown refinement target")
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Selection is a refinement option the user picked, with its position for
// paragraph and section targets.
type Selection struct {
	Target string
	Option string
	Index  int
}

// Apply writes the selected option into o.
func Apply(o *Output, sel Selection) error {
	switch sel.Target {
	case TargetHook:
		o.Hook = sel.Option
	case TargetCTA:
		o.CallToAction = sel.Option
	case TargetParagraph:
		return o.replaceParagraph(sel.Index, sel.Option)
	case TargetAddParagraph:
		return o.insertParagraph(sel.Index, sel.Option)
	case TargetSection:
		st := ParseSections(o.MainBodyText())
		if sel.Index < 0 || sel.Index >= len(st.Sections) {
			return fmt.Errorf("section %d of %d: %w", sel.Index, len(st.Sections), ErrIndexOutOfRange)
		}
		st.Sections[sel.Index].Body = sectionOptionBody(st.Sections[sel.Index], sel.Option)
		st.Sections[sel.Index].OnScreenTexts = nil
		o.SetMainBody(RenderSections(st.Sections))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTarget, sel.Target)
	}
	return nil
}

// sectionOptionBody drops a first line that repeats the section heading, as
// in "2. Today\n..." or "Today\n...".
func sectionOptionBody(sec Section, option string) string {
	option = strings.TrimSpace(option)
	title := strings.TrimSpace(sec.Title)
	if title == "" {
		return option
	}
	first, rest, _ := strings.Cut(option, "\n")
	heading := strings.TrimSpace(first)
	if m := numberedPattern.FindStringSubmatch(heading); m != nil {
		heading = strings.TrimSpace(m[2])
	}
	if strings.EqualFold(heading, title) {
		return strings.TrimSpace(rest)
	}
	return option
}

// SetMainBody replaces main_body with a plain string.
func (o *Output) SetMainBody(text string) {
	b, _ := json.Marshal(text)
	o.MainBody = b
}

// List bodies are edited element by element so untouched items keep their
// shape. String bodies are edited paragraph by paragraph.
func (o *Output) replaceParagraph(index int, text string) error {
	if items, ok := o.mainBodyItems(); ok {
		if index < 0 || index >= len(items) {
			return fmt.Errorf("paragraph %d of %d: %w", index, len(items), ErrIndexOutOfRange)
		}
		items[index] = quote(text)
		return o.setItems(items)
	}
	paras := SplitParagraphs(o.MainBodyText())
	if index < 0 || index >= len(paras) {
		return fmt.Errorf("paragraph %d of %d: %w", index, len(paras), ErrIndexOutOfRange)
	}
	paras[index] = strings.TrimSpace(text)
	o.SetMainBody(strings.Join(paras, "\n\n"))
	return nil
}

func (o *Output) insertParagraph(index int, text string) error {
	if items, ok := o.mainBodyItems(); ok {
		if index < 0 || index > len(items) {
			return fmt.Errorf("insert at %d of %d: %w", index, len(items), ErrIndexOutOfRange)
		}
		items = append(items[:index], append([]json.RawMessage{quote(text)}, items[index:]...)...)
		return o.setItems(items)
	}
	paras := SplitParagraphs(o.MainBodyText())
	if index < 0 || index > len(paras) {
		return fmt.Errorf("insert at %d of %d: %w", index, len(paras), ErrIndexOutOfRange)
	}
	paras = append(paras[:index], append([]string{strings.TrimSpace(text)}, paras[index:]...)...)
	o.SetMainBody(strings.Join(paras, "\n\n"))
	return nil
}

func (o *Output) mainBodyItems() ([]json.RawMessage, bool) {
	raw := bytes.TrimSpace(o.MainBody)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (o *Output) setItems(items []json.RawMessage) error {
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode main body: %w", err)
	}
	o.MainBody = b
	return nil
}

func quote(s string) json.RawMessage {
	b, _ := json.Marshal(strings.TrimSpace(s))
	return b
}
