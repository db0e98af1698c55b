package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Refinement types as requested by the editor. "section" is forwarded to the
// paragraph workflow.
const (
	RefinementHook         = "hook"
	RefinementCTA          = "cta"
	RefinementParagraph    = "paragraph"
	RefinementSection      = "section"
	RefinementAddParagraph = "add_paragraph"
)

const (
	RefinementStatusPending   = "pending"
	RefinementStatusReady     = "ready"
	RefinementStatusApplied   = "applied"
	RefinementStatusDismissed = "dismissed"
	RefinementStatusError     = "error"
	RefinementStatusTimedOut  = "timed_out"
)

// ValidRefinementType reports whether t is one of the known refinement types.
func ValidRefinementType(t string) bool {
	switch t {
	case RefinementHook, RefinementCTA, RefinementParagraph, RefinementSection, RefinementAddParagraph:
		return true
	}
	return false
}

type ScriptRefinement struct {
	ID               string            `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ScriptID         string            `gorm:"type:varchar(64);index" json:"script_id"`
	UserID           string            `gorm:"type:varchar(64);index" json:"user_id"`
	RefinementType   string            `gorm:"type:varchar(32)" json:"refinement_type"`
	Status           string            `gorm:"type:varchar(32);default:pending" json:"status"`
	Request          RefinementRequest `gorm:"type:json" json:"request"`
	GeneratedOptions StringList        `gorm:"type:json" json:"generated_options"`
	SelectedOption   string            `gorm:"type:text" json:"selected_option,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (ScriptRefinement) TableName() string {
	return "script_refinements"
}

// RefinementRequest keeps what the user asked for next to the options the
// workflow engine produces for it.
type RefinementRequest struct {
	UserMessage        string `json:"user_message,omitempty"`
	OriginalText       string `json:"original_text,omitempty"`
	ParagraphPosition  *int   `json:"paragraph_position,omitempty"`
	SectionIndex       *int   `json:"section_index,omitempty"`
	PrecedingParagraph string `json:"preceding_paragraph,omitempty"`
	FollowingParagraph string `json:"following_paragraph,omitempty"`
}

func (r RefinementRequest) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *RefinementRequest) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", value))
	}
	return json.Unmarshal(b, r)
}
