package model

import (
	"time"

	"gorm.io/datatypes"
)

// QuizAttempt is one immutable submission of a quiz's auto-graded section.
// swagger:model QuizAttempt
type QuizAttempt struct {
	UUIDBase
	StudentID      string                                `gorm:"size:64;index;not null" json:"studentId"`
	QuizID         string                                `gorm:"size:36;index;not null" json:"quizId"`
	Answers        datatypes.JSONType[map[string]string] `json:"answers"`
	Score          int                                   `gorm:"not null" json:"score"`
	TotalQuestions int                                   `gorm:"not null" json:"totalQuestions"`
	Percentage     int                                   `gorm:"not null" json:"percentage"`
	SubmittedAt    time.Time                             `gorm:"not null" json:"submittedAt"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}
