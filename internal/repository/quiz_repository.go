package repository

import (
	"lesson_bundle_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) WithTx(tx *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: tx}
}

// Create writes the quiz, then its questions, then their options, as three
// separate statements. IDs are assigned here so children can reference them.
func (r *QuizRepository) Create(quiz *model.Quiz) error {
	if quiz.ID == "" {
		quiz.ID = model.GenerateUUID()
	}
	if err := r.DB.Omit(clause.Associations).Create(quiz).Error; err != nil {
		return err
	}
	if len(quiz.Questions) == 0 {
		return nil
	}

	var options []model.Option
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		if q.ID == "" {
			q.ID = model.GenerateUUID()
		}
		q.QuizID = quiz.ID
		for j := range q.Options {
			q.Options[j].QuestionID = q.ID
			if q.Options[j].ID == "" {
				q.Options[j].ID = model.GenerateUUID()
			}
			options = append(options, q.Options[j])
		}
	}
	if err := r.DB.Omit(clause.Associations).Create(&quiz.Questions).Error; err != nil {
		return err
	}
	if len(options) == 0 {
		return nil
	}
	if err := r.DB.Create(&options).Error; err != nil {
		return err
	}

	k := 0
	for i := range quiz.Questions {
		for j := range quiz.Questions[i].Options {
			quiz.Questions[i].Options[j] = options[k]
			k++
		}
	}
	return nil
}

// FindByID loads the quiz with questions and options in display order.
func (r *QuizRepository) FindByID(id string) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&quiz).Error
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizRepository) Exists(id string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Quiz{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *QuizRepository) DeleteOptions(quizID string) error {
	return r.DB.
		Where("question_id IN (?)", r.DB.Model(&model.Question{}).Select("id").Where("quiz_id = ?", quizID)).
		Delete(&model.Option{}).Error
}

func (r *QuizRepository) DeleteQuestions(quizID string) error {
	return r.DB.Where("quiz_id = ?", quizID).Delete(&model.Question{}).Error
}

func (r *QuizRepository) Delete(quizID string) error {
	return r.DB.Where("id = ?", quizID).Delete(&model.Quiz{}).Error
}
