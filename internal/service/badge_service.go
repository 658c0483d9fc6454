package service

import (
	"context"
	"errors"
	"fmt"
	"lesson_bundle_backend/internal/model"
	"lesson_bundle_backend/internal/repository"
	"lesson_bundle_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const quizMasterThreshold = 5

// badgeRule decides whether an attempt earns the named badge. lifetime is the
// student's attempt count including this one.
type badgeRule struct {
	name    string
	matches func(lifetime int64, attempt *model.QuizAttempt) bool
}

var badgeRules = []badgeRule{
	{
		name:    model.BadgeFirstStep,
		matches: func(lifetime int64, _ *model.QuizAttempt) bool { return lifetime == 1 },
	},
	{
		name:    model.BadgeQuizMaster,
		matches: func(lifetime int64, _ *model.QuizAttempt) bool { return lifetime >= quizMasterThreshold },
	},
	{
		name: model.BadgeHighAchiever,
		matches: func(_ int64, a *model.QuizAttempt) bool {
			return a.TotalQuestions > 0 && a.Score == a.TotalQuestions
		},
	},
}

type BadgeService struct {
	BadgeRepo   *repository.BadgeRepository
	AttemptRepo *repository.AttemptRepository
}

func NewBadgeService(badgeRepo *repository.BadgeRepository, attemptRepo *repository.AttemptRepository) *BadgeService {
	return &BadgeService{
		BadgeRepo:   badgeRepo,
		AttemptRepo: attemptRepo,
	}
}

// Evaluate runs once per stored attempt, inside the transaction that stored
// it, and returns only the badges newly awarded. Badges the student already
// holds are skipped without error.
func (s *BadgeService) Evaluate(tx *gorm.DB, studentID string, attempt *model.QuizAttempt) ([]model.Badge, error) {
	badges := s.BadgeRepo.WithTx(tx)

	lifetime, err := s.AttemptRepo.WithTx(tx).CountByStudent(studentID)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}

	var awarded []model.Badge
	for _, rule := range badgeRules {
		if !rule.matches(lifetime, attempt) {
			continue
		}
		badge, err := badges.FindByName(rule.name)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Log.Warn("badge missing from catalog", zap.String("badge", rule.name))
			continue
		}
		if err != nil {
			return nil, err
		}

		ok, err := badges.Award(&model.StudentBadge{
			StudentID: studentID,
			BadgeID:   badge.ID,
			AttemptID: attempt.ID,
			AwardedAt: time.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("award %s: %w", rule.name, err)
		}
		if ok {
			awarded = append(awarded, *badge)
		}
	}
	return awarded, nil
}

func (s *BadgeService) ListStudentBadges(ctx context.Context, studentID string) ([]model.StudentBadge, error) {
	return s.BadgeRepo.WithTx(s.BadgeRepo.DB.WithContext(ctx)).ListByStudent(studentID)
}
