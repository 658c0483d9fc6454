package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"lesson_bundle_backend/internal/model"
	"lesson_bundle_backend/internal/testutil"
	"lesson_bundle_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBundle_PersistsAllArtifacts(t *testing.T) {
	env := newTestEnv(t)

	b := env.createBundle(t)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, model.BundleDraft, b.Status)
	assert.Equal(t, "Mathematics: Fractions", b.Title)
	assert.Equal(t, "mock", b.Provider)
	assert.Equal(t, "mock-1", b.ModelName)
	assert.Equal(t, "Fractions", b.Context.Data().Topic)
	assert.Equal(t, 4, b.Context.Data().QuestionCount)
	assert.Equal(t, b.LessonNote.ID, b.LessonNoteID)
	assert.Equal(t, b.Quiz.ID, b.QuizID)

	counts := testutil.CountRows(t, env.db, allTables...)
	assert.EqualValues(t, 1, counts["lesson_notes"])
	assert.EqualValues(t, 1, counts["learner_notes"])
	assert.EqualValues(t, 1, counts["quizzes"])
	assert.EqualValues(t, 5, counts["questions"])
	assert.EqualValues(t, 8, counts["options"])
	assert.EqualValues(t, 1, counts["bundles"])

	for _, k := range []ArtifactKind{ArtifactTeacherNote, ArtifactLearnerNote, ArtifactQuiz} {
		assert.Equal(t, 1, env.provider.CallCount(k), k)
	}
}

func TestCreateBundle_PublishOnRequest(t *testing.T) {
	env := newTestEnv(t)
	req := sampleRequest()
	req.Publish = true
	req.Title = "  Week 3 fractions "

	b, err := env.bundles.CreateBundle(context.Background(), "teacher-1", "", req)
	require.NoError(t, err)
	assert.Equal(t, model.BundlePublished, b.Status)
	assert.Equal(t, "Week 3 fractions", b.Title)
}

// A quiz the provider cannot produce in valid shape aborts the whole bundle.
func TestCreateBundle_MalformedQuizCreatesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.provider.Replies[ArtifactQuiz] = MockReply{Text: `{"questions": [{"questionType": "MCQ", "text": "x", "options": [`}

	_, err := env.bundles.CreateBundle(context.Background(), "teacher-1", "org-1", sampleRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrGenerationFailed)
	assert.ErrorIs(t, err, util.ErrMalformedProviderOutput)
	for table, n := range testutil.CountRows(t, env.db, allTables...) {
		assert.Zero(t, n, table)
	}
}

func TestCreateBundle_ProviderFailureHidesProviderText(t *testing.T) {
	env := newTestEnv(t)
	env.provider.Replies[ArtifactTeacherNote] = MockReply{Err: errors.New("upstream quota exhausted for key sk-123")}

	_, err := env.bundles.CreateBundle(context.Background(), "teacher-1", "org-1", sampleRequest())

	require.ErrorIs(t, err, util.ErrGenerationFailed)
	_, msg := util.ErrorStatus(err)
	assert.Equal(t, "generation failed, please retry", msg)
	assert.NotContains(t, msg, "sk-123")
	for table, n := range testutil.CountRows(t, env.db, allTables...) {
		assert.Zero(t, n, table)
	}
}

func TestCreateBundle_DeadlineStopsPersistence(t *testing.T) {
	env := newTestEnv(t)
	env.provider.Replies[ArtifactQuiz] = MockReply{Text: validQuizJSON, Delay: 500 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := env.bundles.CreateBundle(ctx, "teacher-1", "org-1", sampleRequest())

	require.ErrorIs(t, err, util.ErrGenerationFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	for table, n := range testutil.CountRows(t, env.db, allTables...) {
		assert.Zero(t, n, table)
	}
}

func TestCreateBundle_RollsBackAtEveryWriteStep(t *testing.T) {
	steps := []string{"lesson_notes", "learner_notes", "quizzes", "questions", "options", "bundles", "bundle_resources"}
	for _, table := range steps {
		t.Run(table, func(t *testing.T) {
			env := newTestEnv(t)
			res := &model.Resource{OwnerID: "teacher-1", Title: "Fraction wall", Type: model.Worksheet}
			require.NoError(t, env.db.Create(res).Error)

			testutil.FailCreate(t, env.db, table)
			req := sampleRequest()
			req.ResourceIDs = []string{res.ID}

			_, err := env.bundles.CreateBundle(context.Background(), "teacher-1", "org-1", req)

			require.ErrorIs(t, err, util.ErrPersistenceFailed)
			assert.ErrorIs(t, err, testutil.ErrInjected)
			for tbl, n := range testutil.CountRows(t, env.db, allTables...) {
				assert.Zero(t, n, tbl)
			}
			assert.EqualValues(t, 1, testutil.CountRows(t, env.db, "resources")["resources"])
		})
	}
}

func TestCreateBundle_RejectsInvalidInputBeforeGenerating(t *testing.T) {
	env := newTestEnv(t)

	req := sampleRequest()
	req.Context.Topic = ""
	_, err := env.bundles.CreateBundle(context.Background(), "teacher-1", "org-1", req)
	require.ErrorIs(t, err, util.ErrInvalidInput)

	req = sampleRequest()
	req.ResourceIDs = []string{"no-such-resource"}
	_, err = env.bundles.CreateBundle(context.Background(), "teacher-1", "org-1", req)
	require.ErrorIs(t, err, util.ErrInvalidInput)

	_, err = env.bundles.CreateBundle(context.Background(), "", "org-1", sampleRequest())
	require.ErrorIs(t, err, util.ErrInvalidInput)

	assert.Zero(t, env.provider.CallCount(ArtifactQuiz))
}
