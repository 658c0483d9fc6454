package repository

import (
	"errors"
	"lesson_bundle_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type NoteViewRepository struct {
	DB *gorm.DB
}

func NewNoteViewRepository(db *gorm.DB) *NoteViewRepository {
	return &NoteViewRepository{DB: db}
}

func (r *NoteViewRepository) WithTx(tx *gorm.DB) *NoteViewRepository {
	return &NoteViewRepository{DB: tx}
}

func (r *NoteViewRepository) Create(view *model.NoteView) error {
	return r.DB.Create(view).Error
}

// ViewedSince reports whether the student viewed the note at or after since.
func (r *NoteViewRepository) ViewedSince(studentID, noteID string, since time.Time) (bool, error) {
	var view model.NoteView
	err := r.DB.Where("student_id = ? AND learner_note_id = ? AND viewed_at >= ?", studentID, noteID, since).
		Order("viewed_at DESC").
		First(&view).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteBefore removes views older than cutoff and returns how many went.
func (r *NoteViewRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	res := r.DB.Where("viewed_at < ?", cutoff).Delete(&model.NoteView{})
	return res.RowsAffected, res.Error
}
