package repository

import (
	"errors"
	"lesson_bundle_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeRepository struct {
	DB *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) *BadgeRepository {
	return &BadgeRepository{DB: db}
}

func (r *BadgeRepository) WithTx(tx *gorm.DB) *BadgeRepository {
	return &BadgeRepository{DB: tx}
}

func (r *BadgeRepository) FindByName(name string) (*model.Badge, error) {
	var badge model.Badge
	if err := r.DB.Where("name = ?", name).First(&badge).Error; err != nil {
		return nil, err
	}
	return &badge, nil
}

// Award inserts the (student, badge) pair. It reports false without error
// when the student already holds the badge.
func (r *BadgeRepository) Award(award *model.StudentBadge) (bool, error) {
	res := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(award)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *BadgeRepository) ListByStudent(studentID string) ([]model.StudentBadge, error) {
	var awards []model.StudentBadge
	err := r.DB.Preload("Badge").
		Where("student_id = ?", studentID).
		Order("awarded_at ASC").
		Find(&awards).Error
	return awards, err
}
