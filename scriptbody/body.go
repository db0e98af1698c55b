// Package scriptbody turns the AI output envelope stored on a generated
// script into the structures the editor works with, and applies selected
// refinement options back into it.
package scriptbody

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyBody = errors.New("script body is empty")
	ErrNoOutput  = errors.New("no output property found in script body")
)

const (
	keyTitle        = "title"
	keyHook         = "hook"
	keyMainBody     = "main_body"
	keyCallToAction = "call_to_action"
	keyCTA          = "cta"
	keyBRoll        = "b_roll_suggestions"
)

// Output is the "output" object of the envelope. Fields this package does not
// know about are kept and written back by Encode.
type Output struct {
	Title        string
	Hook         string
	MainBody     json.RawMessage
	CallToAction string
	BRoll        []string

	ctaKey   string
	bRollRaw json.RawMessage
	extra    map[string]json.RawMessage
	wrapper  map[string]json.RawMessage
}

// DecodeBody parses the stored envelope {"output": {...}}. A single element
// array around the envelope is accepted as well.
func DecodeBody(markdown string) (*Output, error) {
	data := bytes.TrimSpace([]byte(markdown))
	if len(data) == 0 {
		return nil, ErrEmptyBody
	}
	if data[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode script body: %w", err)
		}
		if len(list) == 0 {
			return nil, ErrNoOutput
		}
		data = list[0]
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode script body: %w", err)
	}
	raw, ok := envelope["output"]
	if !ok || isNull(raw) {
		return nil, ErrNoOutput
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	if fields == nil {
		return nil, ErrNoOutput
	}

	out := &Output{extra: map[string]json.RawMessage{}, wrapper: envelope}
	for k, v := range fields {
		switch k {
		case keyTitle:
			out.Title = stringValue(v)
		case keyHook:
			out.Hook = stringValue(v)
		case keyMainBody:
			out.MainBody = v
		case keyCallToAction:
			out.CallToAction = stringValue(v)
			out.ctaKey = keyCallToAction
		case keyBRoll:
			out.bRollRaw = v
			var list []string
			if err := json.Unmarshal(v, &list); err == nil {
				out.BRoll = list
			}
		default:
			out.extra[k] = v
		}
	}
	if cta, ok := fields[keyCTA]; ok {
		if out.ctaKey == "" {
			out.CallToAction = stringValue(cta)
			out.ctaKey = keyCTA
			delete(out.extra, keyCTA)
		}
	}
	return out, nil
}

// Encode writes the output back into its envelope.
func (o *Output) Encode() (string, error) {
	fields := make(map[string]json.RawMessage, len(o.extra)+5)
	for k, v := range o.extra {
		fields[k] = v
	}
	put := func(key, value string) error {
		b, err := json.Marshal(value)
		if err != nil {
			return err
		}
		fields[key] = b
		return nil
	}
	if o.Title != "" {
		if err := put(keyTitle, o.Title); err != nil {
			return "", err
		}
	}
	if err := put(keyHook, o.Hook); err != nil {
		return "", err
	}
	ctaKey := o.ctaKey
	if ctaKey == "" {
		ctaKey = keyCallToAction
	}
	if err := put(ctaKey, o.CallToAction); err != nil {
		return "", err
	}
	if len(o.MainBody) > 0 {
		fields[keyMainBody] = o.MainBody
	}
	switch {
	case o.bRollRaw != nil:
		fields[keyBRoll] = o.bRollRaw
	case o.BRoll != nil:
		b, err := json.Marshal(o.BRoll)
		if err != nil {
			return "", err
		}
		fields[keyBRoll] = b
	}

	rawOutput, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode output: %w", err)
	}
	envelope := make(map[string]json.RawMessage, len(o.wrapper)+1)
	for k, v := range o.wrapper {
		envelope[k] = v
	}
	envelope["output"] = rawOutput
	b, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("encode script body: %w", err)
	}
	return string(b), nil
}

// NewOutput builds an output from plain text parts, as used by tests and the
// parse command.
func NewOutput(title, hook, mainBody, cta string) *Output {
	b, _ := json.Marshal(mainBody)
	return &Output{Title: title, Hook: hook, MainBody: b, CallToAction: cta}
}

// MainBodyText returns the flattened main body of the output.
func (o *Output) MainBodyText() string {
	return MainBodyText(o.MainBody)
}

// MainBodyText flattens a main_body value. Strings are returned as is; lists
// are joined by blank lines, with {narrator, on_screen_text} objects rendered
// as "narrator [on screen text]".
func MainBodyText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return ""
	}
	switch raw[0] {
	case '"':
		return stringValue(raw)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return string(raw)
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, itemText(item))
		}
		return strings.Join(parts, "\n\n")
	default:
		return itemText(raw)
	}
}

func itemText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] != '{' {
		return stringValue(raw)
	}
	var obj struct {
		Narrator     string `json:"narrator"`
		OnScreenText string `json:"on_screen_text"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return string(raw)
	}
	var parts []string
	if obj.Narrator != "" {
		parts = append(parts, obj.Narrator)
	}
	if obj.OnScreenText != "" {
		parts = append(parts, "["+obj.OnScreenText+"]")
	}
	return strings.Join(parts, " ")
}

// stringValue returns a JSON string's value, or the compact JSON text of any
// other value.
func stringValue(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
