package model

import "time"

// Subject groups questions and quizzes.
type Subject struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Tag labels subjects and questions.
type Tag struct {
	ID        int64     `json:"id"`
	TagText   string    `json:"tag_text"`
	CreatedAt time.Time `json:"created_at"`
}
