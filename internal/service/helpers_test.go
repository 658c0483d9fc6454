package service

import (
	"context"
	"testing"

	"lesson_bundle_backend/internal/config"
	"lesson_bundle_backend/internal/model"
	"lesson_bundle_backend/internal/repository"
	"lesson_bundle_backend/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const validQuizJSON = "```json\n" + `{
  "title": "Fractions check",
  "questions": [
    {"questionType": "MCQ", "text": "1/2 + 1/4 = ?", "options": [{"text": "3/4", "isCorrect": true}, {"text": "2/6"}]},
    {"questionType": "MCQ", "text": "Half of 8?", "options": [{"text": "4", "isCorrect": true}, {"text": "2"}]},
    {"questionType": "multiple choice", "text": "Which is larger?", "options": [{"text": "1/3"}, {"text": "1/2", "isCorrect": true}]},
    {"questionType": "MCQ", "text": "1 - 1/4 = ?", "options": [{"text": "1/2"}, {"text": "3/4", "isCorrect": true}]},
    {"questionType": "ESSAY", "text": "Explain equivalent fractions.", "answer": "Same value, different numerator and denominator."}
  ]
}` + "\n```"

var allTables = []string{"lesson_notes", "learner_notes", "quizzes", "questions", "options", "bundles", "bundle_resources"}

type testEnv struct {
	db       *gorm.DB
	provider *MockProvider
	bundles  *BundleService
	quizzes  *QuizService
	badges   *BadgeService
	views    *NoteViewService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.OpenDB(t)
	provider := NewMockProvider(map[ArtifactKind]MockReply{
		ArtifactTeacherNote: {Text: "Lesson plan for fractions."},
		ArtifactLearnerNote: {Text: "Fractions are parts of a whole."},
		ArtifactQuiz:        {Text: validQuizJSON},
	})

	tx := repository.NewTxRunner(db)
	bundleRepo := repository.NewBundleRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)

	bundles, err := NewBundleService(tx, bundleRepo, noteRepo, quizRepo, resourceRepo, provider, nil,
		config.GenerationConfig{TimeoutSeconds: 5, DefaultQuestionCount: 4, DefaultManualCount: 1})
	require.NoError(t, err)

	badges := NewBadgeService(badgeRepo, attemptRepo)
	return &testEnv{
		db:       db,
		provider: provider,
		bundles:  bundles,
		quizzes:  NewQuizService(tx, quizRepo, attemptRepo, bundleRepo, badges, NewLocalStudentLocker()),
		badges:   badges,
		views: NewNoteViewService(tx, repository.NewNoteViewRepository(db), noteRepo, bundleRepo, nil,
			config.NoteViewConfig{DebounceSeconds: 60, RetentionDays: 30}),
	}
}

func sampleRequest() CreateBundleRequest {
	return CreateBundleRequest{
		TopicID: "topic-1",
		Tags:    []string{"math"},
		Context: model.GenerationContext{
			Subject:    "Mathematics",
			Topic:      "Fractions",
			Level:      "Primary",
			Indicators: []string{"B4.1.3.1"},
		},
	}
}

func (e *testEnv) createBundle(t *testing.T) *model.Bundle {
	t.Helper()
	b, err := e.bundles.CreateBundle(context.Background(), "teacher-1", "org-1", sampleRequest())
	require.NoError(t, err)
	return b
}

// correctAnswers answers every auto-graded question of quiz correctly.
func correctAnswers(quiz *model.Quiz) map[string]string {
	answers := map[string]string{}
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		if c := q.CorrectOption(); c != nil && IsAutoGraded(q) {
			answers[q.ID] = c.ID
		}
	}
	return answers
}
