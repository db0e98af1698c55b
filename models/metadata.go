package models

import "time"

const DefaultCategory = "Other"

// ScriptMetadata is the optional per-script side table behind the history
// page (favorites, tags, category). Deployments may run without it.
type ScriptMetadata struct {
	ScriptID   string     `gorm:"primaryKey;type:varchar(64)" json:"script_id"`
	UserID     string     `gorm:"type:varchar(64);index" json:"user_id"`
	IsFavorite bool       `json:"is_favorite"`
	Tags       StringList `gorm:"type:json" json:"tags"`
	Category   string     `gorm:"type:varchar(64)" json:"category"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (ScriptMetadata) TableName() string {
	return "script_metadata"
}

// DefaultMetadata is what a script without a metadata row looks like.
func DefaultMetadata(scriptID, userID string) ScriptMetadata {
	return ScriptMetadata{
		ScriptID: scriptID,
		UserID:   userID,
		Tags:     StringList{},
		Category: DefaultCategory,
	}
}
