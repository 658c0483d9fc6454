package repository

import (
	"lesson_bundle_backend/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BundleRepository struct {
	DB *gorm.DB
}

func NewBundleRepository(db *gorm.DB) *BundleRepository {
	return &BundleRepository{DB: db}
}

func (r *BundleRepository) WithTx(tx *gorm.DB) *BundleRepository {
	return &BundleRepository{DB: tx}
}

type BundleFilter struct {
	TeacherID string
	Status    model.BundleStatus
	Tag       string
	Page      int
	Limit     int
}

func (r *BundleRepository) Create(bundle *model.Bundle) error {
	return r.DB.Omit(clause.Associations).Create(bundle).Error
}

// FindByID returns the bundle without its artifacts.
func (r *BundleRepository) FindByID(id string) (*model.Bundle, error) {
	var bundle model.Bundle
	if err := r.DB.Where("id = ?", id).First(&bundle).Error; err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (r *BundleRepository) FindOwned(id, teacherID string) (*model.Bundle, error) {
	var bundle model.Bundle
	err := r.DB.Where("id = ? AND teacher_id = ?", id, teacherID).First(&bundle).Error
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

// FindDetail loads the bundle with notes, quiz tree and resources.
func (r *BundleRepository) FindDetail(id, teacherID string) (*model.Bundle, error) {
	var bundle model.Bundle
	err := r.DB.
		Preload("LessonNote").
		Preload("LearnerNote").
		Preload("Quiz").
		Preload("Quiz.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Quiz.Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Resources").
		Where("id = ? AND teacher_id = ?", id, teacherID).
		First(&bundle).Error
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (r *BundleRepository) List(filter BundleFilter) ([]model.Bundle, int64, error) {
	var bundles []model.Bundle
	var total int64

	query := r.DB.Model(&model.Bundle{}).Where("teacher_id = ?", filter.TeacherID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Tag != "" {
		query = query.Where(datatypes.JSONArrayQuery("tags").Contains(filter.Tag))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := query.Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&bundles).Error
	if err != nil {
		return nil, 0, err
	}
	return bundles, total, nil
}

func (r *BundleRepository) UpdateFields(id string, fields map[string]interface{}) error {
	return r.DB.Model(&model.Bundle{}).Where("id = ?", id).Updates(fields).Error
}

// Increment bumps one of the usage counters.
func (r *BundleRepository) Increment(id, column string) error {
	return r.DB.Model(&model.Bundle{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + 1")).
		Error
}

func (r *BundleRepository) IncrementByQuiz(quizID, column string) error {
	return r.DB.Model(&model.Bundle{}).
		Where("quiz_id = ?", quizID).
		UpdateColumn(column, gorm.Expr(column+" + 1")).
		Error
}

func (r *BundleRepository) IncrementByLearnerNote(noteID, column string) error {
	return r.DB.Model(&model.Bundle{}).
		Where("learner_note_id = ?", noteID).
		UpdateColumn(column, gorm.Expr(column+" + 1")).
		Error
}

func (r *BundleRepository) Delete(id string) error {
	return r.DB.Where("id = ?", id).Delete(&model.Bundle{}).Error
}

func (r *BundleRepository) LinkResources(bundleID string, resourceIDs []string) error {
	if len(resourceIDs) == 0 {
		return nil
	}
	links := make([]model.BundleResource, 0, len(resourceIDs))
	for _, rid := range resourceIDs {
		links = append(links, model.BundleResource{BundleID: bundleID, ResourceID: rid})
	}
	return r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
}

func (r *BundleRepository) UnlinkResource(bundleID, resourceID string) (int64, error) {
	res := r.DB.Where("bundle_id = ? AND resource_id = ?", bundleID, resourceID).Delete(&model.BundleResource{})
	return res.RowsAffected, res.Error
}

func (r *BundleRepository) UnlinkAllResources(bundleID string) error {
	return r.DB.Where("bundle_id = ?", bundleID).Delete(&model.BundleResource{}).Error
}
