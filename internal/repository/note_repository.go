package repository

import (
	"lesson_bundle_backend/internal/model"

	"gorm.io/gorm"
)

type NoteRepository struct {
	DB *gorm.DB
}

func NewNoteRepository(db *gorm.DB) *NoteRepository {
	return &NoteRepository{DB: db}
}

func (r *NoteRepository) WithTx(tx *gorm.DB) *NoteRepository {
	return &NoteRepository{DB: tx}
}

func (r *NoteRepository) CreateLessonNote(note *model.LessonNote) error {
	return r.DB.Create(note).Error
}

func (r *NoteRepository) CreateLearnerNote(note *model.LearnerNote) error {
	return r.DB.Create(note).Error
}

func (r *NoteRepository) FindLearnerNote(id string) (*model.LearnerNote, error) {
	var note model.LearnerNote
	if err := r.DB.Where("id = ?", id).First(&note).Error; err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *NoteRepository) DeleteLessonNote(id string) error {
	return r.DB.Where("id = ?", id).Delete(&model.LessonNote{}).Error
}

func (r *NoteRepository) DeleteLearnerNote(id string) error {
	return r.DB.Where("id = ?", id).Delete(&model.LearnerNote{}).Error
}
