// Package workflow holds the request and payload schemas of the external
// script workflows and the client that triggers their webhooks.
package workflow

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// SchemaVersion is sent with every payload so workflows can reject shapes
// they do not understand.
const SchemaVersion = 1

type Operation string

const (
	OpGenerate        Operation = "generate"
	OpRefineHook      Operation = "refine_hook"
	OpRefineCTA       Operation = "refine_cta"
	OpRefineParagraph Operation = "refine_paragraph"
	OpAddParagraph    Operation = "add_paragraph"
)

const (
	DefaultLanguage    = "English"
	DefaultVideoLength = "Standard Video"
)

var (
	Languages    = []string{"English", "Hindi", "Hinglish", "Spanish"}
	VideoLengths = []string{"Short Form", "Standard Video", "Long Form"}
)

// OperationFor maps a refinement type to the webhook that serves it. Section
// refinements go to the paragraph workflow.
func OperationFor(refinementType string) (Operation, bool) {
	switch refinementType {
	case "hook":
		return OpRefineHook, true
	case "cta":
		return OpRefineCTA, true
	case "paragraph", "section":
		return OpRefineParagraph, true
	case "add_paragraph":
		return OpAddParagraph, true
	}
	return "", false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("script_language", oneOf(Languages))
	_ = v.RegisterValidation("video_length", oneOf(VideoLengths))
	_ = v.RegisterValidation("refinement_type", func(fl validator.FieldLevel) bool {
		_, ok := OperationFor(fl.Field().String())
		return ok
	})
	v.RegisterStructValidation(refinePositionRule, RefineRequest{})
	return v
}

// refinePositionRule requires a position for refinements that edit or insert
// at a place in the main body.
func refinePositionRule(sl validator.StructLevel) {
	r := sl.Current().Interface().(RefineRequest)
	switch r.Type {
	case "paragraph", "add_paragraph":
		if r.ParagraphPosition == nil {
			sl.ReportError(r.ParagraphPosition, "paragraphPosition", "ParagraphPosition", "required_for_type", r.Type)
		}
	case "section":
		if r.SectionIndex == nil && r.ParagraphPosition == nil {
			sl.ReportError(r.SectionIndex, "sectionIndex", "SectionIndex", "required_for_type", r.Type)
		}
	}
}

func oneOf(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		for _, a := range allowed {
			if s == a {
				return true
			}
		}
		return false
	}
}

// GenerateRequest is the body of a script generation request.
type GenerateRequest struct {
	UserID      string `json:"userId" validate:"required"`
	Topic       string `json:"topic" validate:"required,max=255"`
	YoutubeURL  string `json:"youtubeUrl" validate:"omitempty,max=512,url"`
	Language    string `json:"language" validate:"omitempty,script_language"`
	VideoLength string `json:"videoLength" validate:"omitempty,video_length"`
	ProjectName string `json:"projectName" validate:"omitempty,max=255"`
}

// Validate trims the request and checks it against the schema. Defaults are
// applied only after a successful validation.
func (r *GenerateRequest) Validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Topic = strings.TrimSpace(r.Topic)
	r.YoutubeURL = strings.TrimSpace(r.YoutubeURL)
	r.ProjectName = strings.TrimSpace(r.ProjectName)
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	if r.VideoLength == "" {
		r.VideoLength = DefaultVideoLength
	}
	return nil
}

// RefineRequest is the body of a refinement request. Older clients send
// refinementType, userPrompt, originalParagraph and paragraphIndex; those
// names are folded into the current ones on decode.
type RefineRequest struct {
	ScriptID           string `json:"scriptId" validate:"required"`
	UserID             string `json:"userId" validate:"required"`
	Type               string `json:"type" validate:"required,refinement_type"`
	UserMessage        string `json:"userMessage" validate:"required_without=OriginalText"`
	OriginalText       string `json:"originalText" validate:"required_without=UserMessage"`
	PrecedingParagraph string `json:"precedingParagraph"`
	FollowingParagraph string `json:"followingParagraph"`
	ParagraphPosition  *int   `json:"paragraphPosition" validate:"omitempty,min=0"`
	SectionIndex       *int   `json:"sectionIndex" validate:"omitempty,min=0"`
}

func (r *RefineRequest) UnmarshalJSON(data []byte) error {
	type plain RefineRequest
	var aux struct {
		plain
		RefinementType    string `json:"refinementType"`
		UserPrompt        string `json:"userPrompt"`
		OriginalParagraph string `json:"originalParagraph"`
		ParagraphIndex    *int   `json:"paragraphIndex"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = RefineRequest(aux.plain)
	if r.Type == "" {
		r.Type = aux.RefinementType
	}
	if r.UserMessage == "" {
		r.UserMessage = aux.UserPrompt
	}
	if r.OriginalText == "" {
		r.OriginalText = aux.OriginalParagraph
	}
	if r.ParagraphPosition == nil {
		r.ParagraphPosition = aux.ParagraphIndex
	}
	return nil
}

func (r *RefineRequest) Validate() error {
	r.ScriptID = strings.TrimSpace(r.ScriptID)
	r.UserID = strings.TrimSpace(r.UserID)
	r.Type = strings.TrimSpace(r.Type)
	r.UserMessage = strings.TrimSpace(r.UserMessage)
	return validate.Struct(r)
}

// Payload is one of the versioned webhook payloads.
type Payload interface {
	Operation() Operation
}

// GeneratePayload is posted to the generation workflow.
type GeneratePayload struct {
	ScriptID    string    `json:"scriptId"`
	UserID      string    `json:"userId"`
	Topic       string    `json:"topic"`
	YoutubeURL  *string   `json:"youtubeUrl"`
	Language    string    `json:"language"`
	VideoLength string    `json:"videoLength"`
	ProjectName string    `json:"projectName,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func (GeneratePayload) Operation() Operation { return OpGenerate }

func (p GeneratePayload) MarshalJSON() ([]byte, error) {
	type plain GeneratePayload
	return json.Marshal(struct {
		SchemaVersion int       `json:"schemaVersion"`
		Operation     Operation `json:"operation"`
		plain
	}{SchemaVersion, p.Operation(), plain(p)})
}

// RefinePayload is posted to the refinement workflows. originalParagraph
// repeats originalText for workflows built against the old field name.
type RefinePayload struct {
	Op                 Operation `json:"-"`
	RefinementID       string    `json:"refinementId"`
	ScriptID           string    `json:"scriptId"`
	UserID             string    `json:"userId"`
	RefinementType     string    `json:"refinementType"`
	UserMessage        string    `json:"userMessage"`
	OriginalText       string    `json:"originalText"`
	OriginalParagraph  string    `json:"originalParagraph"`
	PrecedingParagraph *string   `json:"precedingParagraph"`
	FollowingParagraph *string   `json:"followingParagraph"`
	ParagraphPosition  *int      `json:"paragraphPosition"`
	SectionIndex       *int      `json:"sectionIndex"`
	Timestamp          time.Time `json:"timestamp"`
}

func (p RefinePayload) Operation() Operation { return p.Op }

func (p RefinePayload) MarshalJSON() ([]byte, error) {
	type plain RefinePayload
	return json.Marshal(struct {
		SchemaVersion int       `json:"schemaVersion"`
		Operation     Operation `json:"operation"`
		plain
	}{SchemaVersion, p.Operation(), plain(p)})
}

// NewGeneratePayload builds the payload for a validated request.
func NewGeneratePayload(scriptID string, req *GenerateRequest, now time.Time) GeneratePayload {
	return GeneratePayload{
		ScriptID:    scriptID,
		UserID:      req.UserID,
		Topic:       req.Topic,
		YoutubeURL:  nullable(req.YoutubeURL),
		Language:    req.Language,
		VideoLength: req.VideoLength,
		ProjectName: req.ProjectName,
		Timestamp:   now.UTC(),
	}
}

// NewRefinePayload builds the payload for a validated request.
func NewRefinePayload(refinementID string, req *RefineRequest, now time.Time) RefinePayload {
	op, _ := OperationFor(req.Type)
	return RefinePayload{
		Op:                 op,
		RefinementID:       refinementID,
		ScriptID:           req.ScriptID,
		UserID:             req.UserID,
		RefinementType:     req.Type,
		UserMessage:        req.UserMessage,
		OriginalText:       req.OriginalText,
		OriginalParagraph:  req.OriginalText,
		PrecedingParagraph: nullable(req.PrecedingParagraph),
		FollowingParagraph: nullable(req.FollowingParagraph),
		ParagraphPosition:  req.ParagraphPosition,
		SectionIndex:       req.SectionIndex,
		Timestamp:          now.UTC(),
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
