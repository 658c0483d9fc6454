package repository

import (
	"lesson_bundle_backend/internal/model"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) WithTx(tx *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: tx}
}

func (r *AttemptRepository) Create(attempt *model.QuizAttempt) error {
	return r.DB.Create(attempt).Error
}

// CountByStudent counts lifetime attempts across all quizzes.
func (r *AttemptRepository) CountByStudent(studentID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).Where("student_id = ?", studentID).Count(&count).Error
	return count, err
}

func (r *AttemptRepository) HasAttempted(studentID, quizID string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("student_id = ? AND quiz_id = ?", studentID, quizID).
		Count(&count).Error
	return count > 0, err
}

func (r *AttemptRepository) ListByStudentAndQuiz(studentID, quizID string) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("student_id = ? AND quiz_id = ?", studentID, quizID).
		Order("submitted_at DESC").
		Find(&attempts).Error
	return attempts, err
}
