package models

import (
	"strings"
	"time"
)

// Generation statuses. This service only ever writes the first three and
// error; complete is written by the workflow engine.
const (
	ScriptStatusPending          = "pending"
	ScriptStatusAnalyzingStyle   = "analyzing_style"
	ScriptStatusGeneratingScript = "generating_script"
	ScriptStatusComplete         = "complete"
	ScriptStatusError            = "error"
)

var scriptStatusLabels = map[string]string{
	ScriptStatusPending:          "Pending",
	ScriptStatusAnalyzingStyle:   "Analyzing Style...",
	ScriptStatusGeneratingScript: "Generating Script...",
	ScriptStatusComplete:         "Complete",
	ScriptStatusError:            "Error",
}

type GeneratedScript struct {
	ID                 string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID          *string   `gorm:"type:varchar(64)" json:"project_id"`
	UserID             string    `gorm:"type:varchar(64);index" json:"user_id"`
	StyleFingerprintID *string   `gorm:"type:varchar(64)" json:"style_fingerprint_id,omitempty"`
	ScriptTitle        string    `json:"script_title"`
	Topic              string    `json:"topic"`
	Language           string    `json:"language"`
	VideoLength        string    `json:"video_length"`
	ScriptBodyMarkdown string    `gorm:"type:longtext" json:"script_body_markdown,omitempty"`
	GenerationStatus   string    `gorm:"type:varchar(32);default:pending" json:"generation_status"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	Version            int       `gorm:"default:1" json:"version"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (GeneratedScript) TableName() string {
	return "generated_scripts"
}

// IsTerminal reports whether the workflow engine is done with the script.
func (s *GeneratedScript) IsTerminal() bool {
	return s.GenerationStatus == ScriptStatusComplete || s.GenerationStatus == ScriptStatusError
}

// StatusLabel is the human readable status shown in the history list.
func (s *GeneratedScript) StatusLabel() string {
	if l, ok := scriptStatusLabels[s.GenerationStatus]; ok {
		return l
	}
	return scriptStatusLabels[ScriptStatusPending]
}

// ScriptTitle builds "<topic>[ - <language>][ <videoLength>]".
func ScriptTitle(topic, language, videoLength string) string {
	var b strings.Builder
	b.WriteString(topic)
	if language != "" {
		b.WriteString(" - ")
		b.WriteString(language)
	}
	if videoLength != "" {
		b.WriteString(" ")
		b.WriteString(videoLength)
	}
	return b.String()
}
