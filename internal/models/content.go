package models

import (
	"time"

	"gorm.io/datatypes"
)

type ContentType string

const (
	ContentFullTest ContentType = "full_test"
	ContentPractice ContentType = "practice"
)

// Content is a listening/reading passage set or a writing/speaking prompt.
// The answer key lives in its own table so that content can be served to a
// test taker without ever carrying the key alongside it.
type Content struct {
	ID      uint         `json:"id" gorm:"primaryKey"`
	Module  TestModule   `json:"module" gorm:"not null;size:16;index"`
	Type    ContentType  `json:"type" gorm:"not null;size:16;index"`
	Variant *TestVariant `json:"variant" gorm:"size:16;index"` // null when module is variant-agnostic

	Title string `json:"title" gorm:"size:255"`

	// Payload is the module-specific body: passages and questions for
	// objective modules, task prompts for writing, cue cards for speaking.
	Payload datatypes.JSON `json:"payload" gorm:"type:jsonb"`

	Active bool `json:"active" gorm:"default:true;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AnswerKey holds the expected answers for one content item. Each entry is
// either a scalar string or an ordered list of strings.
type AnswerKey struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	ContentID uint           `json:"content_id" gorm:"not null;uniqueIndex"`
	Answers   datatypes.JSON `json:"answers" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
