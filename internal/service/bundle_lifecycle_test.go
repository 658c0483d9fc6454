package service

import (
	"context"
	"testing"

	"lesson_bundle_backend/internal/model"
	"lesson_bundle_backend/internal/testutil"
	"lesson_bundle_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestGetBundle_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBundle(t)

	detail, err := env.bundles.GetBundle(context.Background(), "teacher-1", b.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Quiz)
	assert.Len(t, detail.Quiz.Questions, 5)
	assert.Equal(t, "Lesson plan for fractions.", detail.LessonNote.Content)

	_, err = env.bundles.GetBundle(context.Background(), "teacher-2", b.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestUpdateBundle_Partial(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBundle(t)
	ctx := context.Background()

	updated, err := env.bundles.UpdateBundle(ctx, "teacher-1", b.ID, UpdateBundleRequest{Title: strPtr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, model.BundleDraft, updated.Status)
	assert.Equal(t, []string{"math"}, []string(updated.Tags))

	tags := []string{"week1", "fractions"}
	status := model.BundlePublished
	updated, err = env.bundles.UpdateBundle(ctx, "teacher-1", b.ID, UpdateBundleRequest{Tags: &tags, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, model.BundlePublished, updated.Status)
	assert.Equal(t, tags, []string(updated.Tags))

	_, err = env.bundles.UpdateBundle(ctx, "teacher-1", b.ID, UpdateBundleRequest{Title: strPtr("   ")})
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	bad := model.BundleStatus("deleted")
	_, err = env.bundles.UpdateBundle(ctx, "teacher-1", b.ID, UpdateBundleRequest{Status: &bad})
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	_, err = env.bundles.UpdateBundle(ctx, "teacher-2", b.ID, UpdateBundleRequest{Title: strPtr("x")})
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestSetStatus_AnyToAny(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBundle(t)

	for _, st := range []model.BundleStatus{model.BundleArchived, model.BundlePublished, model.BundleDraft, model.BundleArchived, model.BundleArchived} {
		got, err := env.bundles.SetStatus(context.Background(), "teacher-1", b.ID, st)
		require.NoError(t, err)
		assert.Equal(t, st, got.Status)
	}
}

func TestListBundles_Filters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createBundle(t)
	env.createBundle(t)

	_, err := env.bundles.SetStatus(ctx, "teacher-1", a.ID, model.BundlePublished)
	require.NoError(t, err)

	list, total, err := env.bundles.ListBundles(ctx, "teacher-1", ListBundlesQuery{Status: model.BundlePublished})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	_, total, err = env.bundles.ListBundles(ctx, "teacher-1", ListBundlesQuery{Tag: "math"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	_, _, err = env.bundles.ListBundles(ctx, "teacher-1", ListBundlesQuery{Status: "gone"})
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestDeleteBundle_CascadesAndKeepsResources(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := &model.Resource{OwnerID: "teacher-1", Title: "Fraction wall", Type: model.PDF}
	require.NoError(t, env.db.Create(res).Error)

	keep := env.createBundle(t)
	doomed := env.createBundle(t)
	require.NoError(t, env.bundles.AttachResource(ctx, "teacher-1", doomed.ID, res.ID))
	require.NoError(t, env.bundles.AttachResource(ctx, "teacher-1", keep.ID, res.ID))

	_, err := env.quizzes.SubmitAutoGraded(ctx, doomed.QuizID, "student-1", correctAnswers(doomed.Quiz))
	require.NoError(t, err)

	require.NoError(t, env.bundles.DeleteBundle(ctx, "teacher-1", doomed.ID))

	counts := testutil.CountRows(t, env.db, append(allTables, "resources", "quiz_attempts")...)
	assert.EqualValues(t, 1, counts["bundles"])
	assert.EqualValues(t, 1, counts["lesson_notes"])
	assert.EqualValues(t, 1, counts["learner_notes"])
	assert.EqualValues(t, 1, counts["quizzes"])
	assert.EqualValues(t, 5, counts["questions"])
	assert.EqualValues(t, 8, counts["options"])
	assert.EqualValues(t, 1, counts["bundle_resources"])
	assert.EqualValues(t, 1, counts["resources"])
	assert.EqualValues(t, 1, counts["quiz_attempts"])

	_, err = env.bundles.GetBundle(ctx, "teacher-1", doomed.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)

	detail, err := env.bundles.GetBundle(ctx, "teacher-1", keep.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Quiz.Questions, 5)
	assert.Len(t, detail.ResourceViews, 1)
}

func TestDeleteBundle_NotFound(t *testing.T) {
	env := newTestEnv(t)
	b := env.createBundle(t)

	assert.ErrorIs(t, env.bundles.DeleteBundle(context.Background(), "teacher-1", "missing"), util.ErrNotFound)
	assert.ErrorIs(t, env.bundles.DeleteBundle(context.Background(), "teacher-2", b.ID), util.ErrNotFound)
}

func TestDeleteBundle_FailureLeavesBundleIntact(t *testing.T) {
	// quizzes is the third of the six cascade steps
	steps := []string{"options", "questions", "quizzes", "lesson_notes", "learner_notes", "bundle_resources", "bundles"}
	for _, table := range steps {
		t.Run(table, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			res := &model.Resource{OwnerID: "teacher-1", Title: "Number line", Type: model.Article}
			require.NoError(t, env.db.Create(res).Error)
			b := env.createBundle(t)
			require.NoError(t, env.bundles.AttachResource(ctx, "teacher-1", b.ID, res.ID))

			before := testutil.CountRows(t, env.db, allTables...)
			testutil.FailDelete(t, env.db, table)

			err := env.bundles.DeleteBundle(ctx, "teacher-1", b.ID)

			require.ErrorIs(t, err, util.ErrDeletionFailed)
			_, msg := util.ErrorStatus(err)
			assert.Equal(t, "could not delete, nothing was removed", msg)
			assert.Equal(t, before, testutil.CountRows(t, env.db, allTables...))

			detail, err := env.bundles.GetBundle(ctx, "teacher-1", b.ID)
			require.NoError(t, err)
			assert.Len(t, detail.Quiz.Questions, 5)
			assert.Len(t, detail.Quiz.Questions[0].Options, 2)
		})
	}
}

func TestDuplicateBundle_IsIndependentCopy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := &model.Resource{OwnerID: "teacher-1", Title: "Fraction strips", Type: model.Worksheet}
	require.NoError(t, env.db.Create(res).Error)
	src := env.createBundle(t)
	require.NoError(t, env.bundles.AttachResource(ctx, "teacher-1", src.ID, res.ID))
	_, err := env.bundles.SetStatus(ctx, "teacher-1", src.ID, model.BundlePublished)
	require.NoError(t, err)

	dup, err := env.bundles.DuplicateBundle(ctx, "teacher-1", src.ID)
	require.NoError(t, err)

	assert.NotEqual(t, src.ID, dup.ID)
	assert.NotEqual(t, src.LessonNoteID, dup.LessonNoteID)
	assert.NotEqual(t, src.LearnerNoteID, dup.LearnerNoteID)
	assert.NotEqual(t, src.QuizID, dup.QuizID)
	assert.Equal(t, model.BundleDraft, dup.Status)
	assert.Equal(t, src.Title+" (Copy)", dup.Title)
	require.NotNil(t, dup.SourceBundleID)
	assert.Equal(t, src.ID, *dup.SourceBundleID)

	srcIDs := map[string]bool{}
	for _, q := range src.Quiz.Questions {
		srcIDs[q.ID] = true
		for _, o := range q.Options {
			srcIDs[o.ID] = true
		}
	}
	require.Len(t, dup.Quiz.Questions, len(src.Quiz.Questions))
	for i, q := range dup.Quiz.Questions {
		assert.False(t, srcIDs[q.ID], "question id reused")
		assert.Equal(t, src.Quiz.Questions[i].Text, q.Text)
		for _, o := range q.Options {
			assert.False(t, srcIDs[o.ID], "option id reused")
			assert.Equal(t, q.ID, o.QuestionID)
		}
	}

	// editing or deleting the copy leaves the source untouched
	_, err = env.bundles.UpdateBundle(ctx, "teacher-1", dup.ID, UpdateBundleRequest{Title: strPtr("Copy edited")})
	require.NoError(t, err)
	require.NoError(t, env.bundles.DeleteBundle(ctx, "teacher-1", dup.ID))

	after, err := env.bundles.GetBundle(ctx, "teacher-1", src.ID)
	require.NoError(t, err)
	assert.Equal(t, src.Title, after.Title)
	assert.Equal(t, 1, after.DuplicateCount)
	assert.Len(t, after.Quiz.Questions, 5)
	assert.Equal(t, "Lesson plan for fractions.", after.LessonNote.Content)
	assert.Len(t, after.ResourceViews, 1)
	assert.EqualValues(t, 1, testutil.CountRows(t, env.db, "resources")["resources"])
}

func TestDuplicateBundle_SharesResources(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := &model.Resource{OwnerID: "teacher-1", Title: "Video", Type: model.Video}
	require.NoError(t, env.db.Create(res).Error)
	src := env.createBundle(t)
	require.NoError(t, env.bundles.AttachResource(ctx, "teacher-1", src.ID, res.ID))

	dup, err := env.bundles.DuplicateBundle(ctx, "teacher-1", src.ID)
	require.NoError(t, err)

	detail, err := env.bundles.GetBundle(ctx, "teacher-1", dup.ID)
	require.NoError(t, err)
	require.Len(t, detail.ResourceViews, 1)
	assert.Equal(t, res.ID, detail.ResourceViews[0].ID)
	assert.EqualValues(t, 2, testutil.CountRows(t, env.db, "bundle_resources")["bundle_resources"])

	_, err = env.bundles.DuplicateBundle(ctx, "teacher-2", src.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestAttachDetachResource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := &model.Resource{OwnerID: "teacher-1", Title: "Sheet", Type: model.Worksheet}
	require.NoError(t, env.db.Create(res).Error)
	b := env.createBundle(t)

	require.NoError(t, env.bundles.AttachResource(ctx, "teacher-1", b.ID, res.ID))
	require.NoError(t, env.bundles.AttachResource(ctx, "teacher-1", b.ID, res.ID))
	assert.EqualValues(t, 1, testutil.CountRows(t, env.db, "bundle_resources")["bundle_resources"])

	assert.ErrorIs(t, env.bundles.AttachResource(ctx, "teacher-1", b.ID, "missing"), util.ErrNotFound)

	require.NoError(t, env.bundles.DetachResource(ctx, "teacher-1", b.ID, res.ID))
	assert.ErrorIs(t, env.bundles.DetachResource(ctx, "teacher-1", b.ID, res.ID), util.ErrNotFound)
	assert.EqualValues(t, 1, testutil.CountRows(t, env.db, "resources")["resources"])
}
