package service

import (
	"context"
	"fmt"
	"lesson_bundle_backend/internal/model"
	"lesson_bundle_backend/internal/repository"
	"lesson_bundle_backend/internal/util"
	"lesson_bundle_backend/pkg/logger"
	"lesson_bundle_backend/pkg/monitoring"
	"lesson_bundle_backend/pkg/tracing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StudentOption hides which option is correct.
type StudentOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type StudentQuestion struct {
	ID           string             `json:"id"`
	QuestionType model.QuestionType `json:"questionType"`
	Text         string             `json:"text"`
	Options      []StudentOption    `json:"options"`
}

type StudentQuiz struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Subject     string            `json:"subject"`
	Questions   []StudentQuestion `json:"questions"`
	ManualCount int               `json:"manualCount"`
}

// ManualQuestionView is shown only after the auto-graded section is
// submitted.
type ManualQuestionView struct {
	ID              string             `json:"id"`
	QuestionType    model.QuestionType `json:"questionType"`
	Text            string             `json:"text"`
	ReferenceAnswer string             `json:"referenceAnswer"`
	Explanation     string             `json:"explanation,omitempty"`
}

type SubmissionResult struct {
	Attempt         *model.QuizAttempt   `json:"attempt"`
	Score           ScoreResult          `json:"score"`
	NewBadges       []model.Badge        `json:"newBadges"`
	ManualQuestions []ManualQuestionView `json:"manualQuestions"`
}

type QuizService struct {
	Tx          repository.TxRunner
	QuizRepo    *repository.QuizRepository
	AttemptRepo *repository.AttemptRepository
	BundleRepo  *repository.BundleRepository
	Badges      *BadgeService
	Locker      StudentLocker
	lockWait    time.Duration
}

// DefaultLockWait bounds how long a submission waits behind another one from
// the same student.
const DefaultLockWait = 10 * time.Second

func NewQuizService(
	tx repository.TxRunner,
	quizRepo *repository.QuizRepository,
	attemptRepo *repository.AttemptRepository,
	bundleRepo *repository.BundleRepository,
	badges *BadgeService,
	locker StudentLocker,
) *QuizService {
	return &QuizService{
		Tx:          tx,
		QuizRepo:    quizRepo,
		AttemptRepo: attemptRepo,
		BundleRepo:  bundleRepo,
		Badges:      badges,
		Locker:      locker,
		lockWait:    DefaultLockWait,
	}
}

func (s *QuizService) loadQuiz(ctx context.Context, quizID string) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.WithTx(s.QuizRepo.DB.WithContext(ctx)).FindByID(quizID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return quiz, nil
}

// GetStudentQuiz returns the auto-graded section without correctness flags.
func (s *QuizService) GetStudentQuiz(ctx context.Context, quizID string) (*StudentQuiz, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	auto, manual := Classify(quiz)
	out := &StudentQuiz{
		ID:          quiz.ID,
		Title:       quiz.Title,
		Subject:     quiz.Subject,
		Questions:   make([]StudentQuestion, 0, len(auto)),
		ManualCount: len(manual),
	}
	for _, q := range auto {
		sq := StudentQuestion{ID: q.ID, QuestionType: q.QuestionType, Text: q.Text}
		for _, o := range q.Options {
			sq.Options = append(sq.Options, StudentOption{ID: o.ID, Text: o.Text})
		}
		out.Questions = append(out.Questions, sq)
	}
	return out, nil
}

// SubmitAutoGraded scores the answers and stores a new attempt. Attempt
// creation and badge evaluation run under the student's lock in one
// transaction.
func (s *QuizService) SubmitAutoGraded(ctx context.Context, quizID, studentID string, answers map[string]string) (*SubmissionResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "quiz.submit")
	span.SetAttributes(attribute.String("quiz.id", quizID))
	defer span.End()

	if studentID == "" {
		return nil, fmt.Errorf("%w: missing student", util.ErrInvalidInput)
	}
	if answers == nil {
		answers = map[string]string{}
	}

	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	score, err := Score(quiz, answers)
	if err != nil {
		return nil, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	unlock, err := s.Locker.Lock(lockCtx, studentID)
	cancel()
	if err != nil {
		return nil, err
	}
	defer unlock()

	attempt := &model.QuizAttempt{
		StudentID:      studentID,
		QuizID:         quiz.ID,
		Answers:        datatypes.NewJSONType(answers),
		Score:          score.Correct,
		TotalQuestions: score.Total,
		Percentage:     score.Percentage,
		SubmittedAt:    time.Now(),
	}

	var awarded []model.Badge
	err = s.Tx.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.AttemptRepo.WithTx(tx).Create(attempt); err != nil {
			return fmt.Errorf("store attempt: %w", err)
		}
		if err := s.BundleRepo.WithTx(tx).IncrementByQuiz(quiz.ID, "attempt_count"); err != nil {
			return err
		}
		var err error
		awarded, err = s.Badges.Evaluate(tx, studentID, attempt)
		return err
	})
	if err != nil {
		return nil, err
	}

	monitoring.QuizAttempts.Inc()
	for _, b := range awarded {
		monitoring.BadgesAwarded.WithLabelValues(b.Name).Inc()
	}
	logger.Log.Info("quiz attempt stored",
		zap.String("quiz_id", quiz.ID),
		zap.String("student_id", studentID),
		zap.Int("score", score.Correct),
		zap.Int("total", score.Total),
		zap.Int("badges", len(awarded)),
	)

	_, manual := Classify(quiz)
	return &SubmissionResult{
		Attempt:         attempt,
		Score:           score,
		NewBadges:       awarded,
		ManualQuestions: manualViews(manual),
	}, nil
}

// GetManualQuestions returns the teacher-graded questions with their
// reference answers once the student has submitted at least one attempt.
func (s *QuizService) GetManualQuestions(ctx context.Context, quizID, studentID string) ([]ManualQuestionView, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	done, err := s.AttemptRepo.WithTx(s.AttemptRepo.DB.WithContext(ctx)).HasAttempted(studentID, quiz.ID)
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, util.ErrManualQuestionsLocked
	}
	_, manual := Classify(quiz)
	return manualViews(manual), nil
}

func (s *QuizService) ListAttempts(ctx context.Context, quizID, studentID string) ([]model.QuizAttempt, error) {
	exists, err := s.QuizRepo.WithTx(s.QuizRepo.DB.WithContext(ctx)).Exists(quizID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, util.ErrNotFound
	}
	return s.AttemptRepo.WithTx(s.AttemptRepo.DB.WithContext(ctx)).ListByStudentAndQuiz(studentID, quizID)
}

func manualViews(manual []model.Question) []ManualQuestionView {
	views := make([]ManualQuestionView, 0, len(manual))
	for _, q := range manual {
		views = append(views, ManualQuestionView{
			ID:              q.ID,
			QuestionType:    q.QuestionType,
			Text:            q.Text,
			ReferenceAnswer: q.CorrectAnswer,
			Explanation:     q.Explanation,
		})
	}
	return views
}
