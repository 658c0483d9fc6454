package model

import "time"

// LessonNote is the teacher-facing note of a bundle.
// swagger:model LessonNote
type LessonNote struct {
	UUIDBase
	TeacherID string `gorm:"size:64;index;not null" json:"teacherId"`
	TopicID   string `gorm:"size:64;index" json:"topicId"`
	Content   string `gorm:"type:text;not null" json:"content"`
}

func (LessonNote) TableName() string {
	return "lesson_notes"
}

// LearnerNote is the student-facing note of a bundle.
// swagger:model LearnerNote
type LearnerNote struct {
	UUIDBase
	TeacherID string `gorm:"size:64;index;not null" json:"teacherId"`
	TopicID   string `gorm:"size:64;index" json:"topicId"`
	Content   string `gorm:"type:text;not null" json:"content"`
}

func (LearnerNote) TableName() string {
	return "learner_notes"
}

type NoteView struct {
	UUIDBase
	StudentID     string    `gorm:"size:64;index:idx_note_view_student_note;not null" json:"studentId"`
	LearnerNoteID string    `gorm:"size:36;index:idx_note_view_student_note;not null" json:"learnerNoteId"`
	ViewedAt      time.Time `gorm:"index;not null" json:"viewedAt"`
}

func (NoteView) TableName() string {
	return "note_views"
}
