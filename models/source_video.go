package models

import (
	"fmt"
	"time"
)

const (
	AnalysisStatusPending   = "pending"
	AnalysisStatusAnalyzing = "analyzing"
	AnalysisStatusComplete  = "complete"
	AnalysisStatusError     = "error"
)

// SourceVideo is a reference YouTube video whose style should bias generation.
// Rows are created speculatively; analysis happens outside this service.
type SourceVideo struct {
	ID                string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID         *string   `gorm:"type:varchar(64)" json:"project_id"`
	UserID            string    `gorm:"type:varchar(64);index" json:"user_id"`
	YoutubeURL        string    `gorm:"column:youtube_url" json:"youtube_url"`
	TranscriptText    string    `gorm:"type:longtext" json:"transcript_text,omitempty"`
	RawTranscriptJSON JSON      `gorm:"column:raw_transcript_json;type:json" json:"raw_transcript_json,omitempty"`
	AnalysisStatus    string    `gorm:"type:varchar(32)" json:"analysis_status"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func (SourceVideo) TableName() string {
	return "source_videos"
}

type StyleFingerprint struct {
	ID                    string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	SourceVideoID         *string   `gorm:"type:varchar(64)" json:"source_video_id"`
	UserID                string    `gorm:"type:varchar(64);index" json:"user_id"`
	FingerprintName       string    `json:"fingerprint_name"`
	StructureAnalysisJSON JSON      `gorm:"column:structure_analysis_json;type:json" json:"structure_analysis_json,omitempty"`
	PacingDataJSON        JSON      `gorm:"column:pacing_data_json;type:json" json:"pacing_data_json,omitempty"`
	ToneAnalysisText      string    `gorm:"type:text" json:"tone_analysis_text,omitempty"`
	RhetoricalDevices     string    `gorm:"column:rhetorical_devices_array;type:text" json:"rhetorical_devices_array,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

func (StyleFingerprint) TableName() string {
	return "style_fingerprints"
}

func FingerprintName(youtubeURL string) string {
	return fmt.Sprintf("Style from %s", youtubeURL)
}
