package models

import (
	"fmt"
	"time"
)

// Project groups the scripts a user generated for one topic.
type Project struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID    string    `gorm:"type:varchar(64);index:idx_projects_user_topic" json:"user_id"`
	Name      string    `json:"name"`
	Topic     string    `gorm:"type:varchar(255);index:idx_projects_user_topic" json:"topic"`
	CreatedAt time.Time `json:"created_at"`
}

func (Project) TableName() string {
	return "projects"
}

// DefaultProjectName is used when a generation request names no project.
func DefaultProjectName(topic string) string {
	return fmt.Sprintf("%s Project", topic)
}
