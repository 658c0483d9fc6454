package model

import "time"

const (
	BadgeFirstStep    = "First Step"
	BadgeQuizMaster   = "Quiz Master"
	BadgeHighAchiever = "High Achiever"
)

// Badge is a catalog entry. The catalog is seeded at startup and read-only
// afterwards.
// swagger:model Badge
type Badge struct {
	UUIDBase
	Name        string `gorm:"size:100;uniqueIndex;not null" json:"name" yaml:"name"`
	Description string `gorm:"type:text" json:"description" yaml:"description"`
	Icon        string `gorm:"size:255" json:"icon" yaml:"icon"`
}

func (Badge) TableName() string {
	return "badges"
}

// StudentBadge is unique per (student, badge).
// swagger:model StudentBadge
type StudentBadge struct {
	UUIDBase
	StudentID string    `gorm:"size:64;uniqueIndex:idx_student_badge;not null" json:"studentId"`
	BadgeID   string    `gorm:"size:36;uniqueIndex:idx_student_badge;not null" json:"badgeId"`
	AttemptID string    `gorm:"size:36" json:"attemptId"`
	AwardedAt time.Time `gorm:"not null" json:"awardedAt"`
	Badge     *Badge    `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
}

func (StudentBadge) TableName() string {
	return "student_badges"
}
