package service

import (
	"context"
	"errors"
	"fmt"
	"lesson_bundle_backend/internal/model"
	"lesson_bundle_backend/internal/repository"
	"lesson_bundle_backend/internal/util"
	"lesson_bundle_backend/pkg/logger"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type UpdateBundleRequest struct {
	Title       *string             `json:"title" validate:"omitempty,max=255"`
	Description *string             `json:"description" validate:"omitempty,max=5000"`
	Status      *model.BundleStatus `json:"status"`
	Tags        *[]string           `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
}

type ListBundlesQuery struct {
	Status model.BundleStatus
	Tag    string
	Page   int
	Limit  int
}

// ResourceView is a resource with a short-lived download link.
type ResourceView struct {
	model.Resource
	DownloadURL string `json:"downloadUrl,omitempty"`
}

type BundleDetail struct {
	*model.Bundle
	ResourceViews []ResourceView `json:"resources"`
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrNotFound
	}
	return err
}

func (s *BundleService) GetBundle(ctx context.Context, teacherID, bundleID string) (*BundleDetail, error) {
	bundle, err := s.BundleRepo.WithTx(s.BundleRepo.DB.WithContext(ctx)).FindDetail(bundleID, teacherID)
	if err != nil {
		return nil, notFoundOr(err)
	}

	detail := &BundleDetail{Bundle: bundle}
	for _, r := range bundle.Resources {
		view := ResourceView{Resource: r}
		if s.Storage.Enabled() && r.ObjectKey != "" {
			url, err := s.Storage.PresignedURL(ctx, r.ObjectKey)
			if err != nil {
				logger.Log.Warn("presign resource failed", zap.String("resource_id", r.ID), zap.Error(err))
			} else {
				view.DownloadURL = url
			}
		}
		detail.ResourceViews = append(detail.ResourceViews, view)
	}
	return detail, nil
}

func (s *BundleService) ListBundles(ctx context.Context, teacherID string, q ListBundlesQuery) ([]model.Bundle, int64, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", util.ErrInvalidInput, q.Status)
	}
	if q.Page < 1 {
		q.Page = util.DefaultPage
	}
	if q.Limit < 1 || q.Limit > util.MaxLimit {
		q.Limit = util.DefaultLimit
	}
	return s.BundleRepo.WithTx(s.BundleRepo.DB.WithContext(ctx)).List(repository.BundleFilter{
		TeacherID: teacherID,
		Status:    q.Status,
		Tag:       q.Tag,
		Page:      q.Page,
		Limit:     q.Limit,
	})
}

// UpdateBundle applies only the fields present in req.
func (s *BundleService) UpdateBundle(ctx context.Context, teacherID, bundleID string, req UpdateBundleRequest) (*model.Bundle, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %s", util.ErrInvalidInput, validationMessage(err))
	}

	fields := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title must not be blank", util.ErrInvalidInput)
		}
		fields["title"] = title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", util.ErrInvalidInput, *req.Status)
		}
		fields["status"] = *req.Status
	}
	if req.Tags != nil {
		fields["tags"] = datatypes.JSONSlice[string](*req.Tags)
	}

	var updated *model.Bundle
	err := s.Tx.InTx(ctx, func(tx *gorm.DB) error {
		bundles := s.BundleRepo.WithTx(tx)
		if _, err := bundles.FindOwned(bundleID, teacherID); err != nil {
			return notFoundOr(err)
		}
		if len(fields) > 0 {
			if err := bundles.UpdateFields(bundleID, fields); err != nil {
				return err
			}
		}
		b, err := bundles.FindByID(bundleID)
		updated = b
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetStatus moves the bundle to any status, including the one it has.
func (s *BundleService) SetStatus(ctx context.Context, teacherID, bundleID string, status model.BundleStatus) (*model.Bundle, error) {
	return s.UpdateBundle(ctx, teacherID, bundleID, UpdateBundleRequest{Status: &status})
}

// DuplicateBundle deep-copies notes, quiz, questions and options into new
// records under a new draft bundle. Resources are shared, not copied.
func (s *BundleService) DuplicateBundle(ctx context.Context, teacherID, bundleID string) (*model.Bundle, error) {
	var dup *model.Bundle
	err := s.Tx.InTx(ctx, func(tx *gorm.DB) error {
		bundles := s.BundleRepo.WithTx(tx)
		src, err := bundles.FindDetail(bundleID, teacherID)
		if err != nil {
			return notFoundOr(err)
		}
		if src.LessonNote == nil || src.LearnerNote == nil || src.Quiz == nil {
			return fmt.Errorf("bundle %s is missing artifacts", bundleID)
		}

		dup = cloneBundle(src)

		notes := s.NoteRepo.WithTx(tx)
		if err := notes.CreateLessonNote(dup.LessonNote); err != nil {
			return err
		}
		if err := notes.CreateLearnerNote(dup.LearnerNote); err != nil {
			return err
		}
		if err := s.QuizRepo.WithTx(tx).Create(dup.Quiz); err != nil {
			return err
		}
		dup.LessonNoteID = dup.LessonNote.ID
		dup.LearnerNoteID = dup.LearnerNote.ID
		dup.QuizID = dup.Quiz.ID

		if err := bundles.Create(dup); err != nil {
			return err
		}
		ids := make([]string, 0, len(src.Resources))
		for _, r := range src.Resources {
			ids = append(ids, r.ID)
		}
		if err := bundles.LinkResources(dup.ID, ids); err != nil {
			return err
		}
		return bundles.Increment(src.ID, "duplicate_count")
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("bundle duplicated", zap.String("source_id", bundleID), zap.String("bundle_id", dup.ID))
	return dup, nil
}

// cloneBundle copies src with every ID cleared so inserts allocate new rows.
func cloneBundle(src *model.Bundle) *model.Bundle {
	srcID := src.ID
	quiz := &model.Quiz{
		TeacherID: src.Quiz.TeacherID,
		TopicID:   src.Quiz.TopicID,
		Title:     src.Quiz.Title,
		Subject:   src.Quiz.Subject,
	}
	for _, q := range src.Quiz.Questions {
		nq := model.Question{
			Position:      q.Position,
			QuestionType:  q.QuestionType,
			Text:          q.Text,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		}
		for _, o := range q.Options {
			nq.Options = append(nq.Options, model.Option{
				Position:  o.Position,
				Text:      o.Text,
				IsCorrect: o.IsCorrect,
			})
		}
		quiz.Questions = append(quiz.Questions, nq)
	}

	gc := src.Context.Data()
	gc.Indicators = append([]string(nil), gc.Indicators...)

	return &model.Bundle{
		TeacherID:      src.TeacherID,
		OrgID:          src.OrgID,
		TopicID:        src.TopicID,
		Title:          src.Title + " (Copy)",
		Description:    src.Description,
		Tags:           append([]string(nil), src.Tags...),
		Status:         model.BundleDraft,
		Context:        datatypes.NewJSONType(gc),
		Provider:       src.Provider,
		ModelName:      src.ModelName,
		SourceBundleID: &srcID,
		LessonNote: &model.LessonNote{
			TeacherID: src.LessonNote.TeacherID,
			TopicID:   src.LessonNote.TopicID,
			Content:   src.LessonNote.Content,
		},
		LearnerNote: &model.LearnerNote{
			TeacherID: src.LearnerNote.TeacherID,
			TopicID:   src.LearnerNote.TopicID,
			Content:   src.LearnerNote.Content,
		},
		Quiz: quiz,
	}
}

// DeleteBundle removes options, questions, quiz, lesson note, learner note
// and finally the bundle, in one transaction. Resources stay. Attempts and
// note views are kept as student history.
func (s *BundleService) DeleteBundle(ctx context.Context, teacherID, bundleID string) error {
	err := s.Tx.InTx(ctx, func(tx *gorm.DB) error {
		bundles := s.BundleRepo.WithTx(tx)
		bundle, err := bundles.FindOwned(bundleID, teacherID)
		if err != nil {
			return notFoundOr(err)
		}

		quizzes := s.QuizRepo.WithTx(tx)
		notes := s.NoteRepo.WithTx(tx)
		steps := []struct {
			name string
			run  func() error
		}{
			{"options", func() error { return quizzes.DeleteOptions(bundle.QuizID) }},
			{"questions", func() error { return quizzes.DeleteQuestions(bundle.QuizID) }},
			{"quiz", func() error { return quizzes.Delete(bundle.QuizID) }},
			{"lesson note", func() error { return notes.DeleteLessonNote(bundle.LessonNoteID) }},
			{"learner note", func() error { return notes.DeleteLearnerNote(bundle.LearnerNoteID) }},
			{"bundle", func() error {
				if err := bundles.UnlinkAllResources(bundle.ID); err != nil {
					return err
				}
				return bundles.Delete(bundle.ID)
			}},
		}
		for _, step := range steps {
			if err := step.run(); err != nil {
				return fmt.Errorf("%w: %s: %w", util.ErrDeletionFailed, step.name, err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return err
		}
		logger.Log.Error("bundle delete rolled back", zap.String("bundle_id", bundleID), zap.Error(err))
		if !errors.Is(err, util.ErrDeletionFailed) {
			err = fmt.Errorf("%w: %w", util.ErrDeletionFailed, err)
		}
		return err
	}

	logger.Log.Info("bundle deleted", zap.String("bundle_id", bundleID))
	return nil
}

// AttachResource links an existing resource to the bundle. Attaching twice
// is a no-op.
func (s *BundleService) AttachResource(ctx context.Context, teacherID, bundleID, resourceID string) error {
	return s.Tx.InTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.BundleRepo.WithTx(tx).FindOwned(bundleID, teacherID); err != nil {
			return notFoundOr(err)
		}
		if _, err := s.ResourceRepo.WithTx(tx).FindByID(resourceID); err != nil {
			return notFoundOr(err)
		}
		return s.BundleRepo.WithTx(tx).LinkResources(bundleID, []string{resourceID})
	})
}

// DetachResource removes the link; the resource itself is kept.
func (s *BundleService) DetachResource(ctx context.Context, teacherID, bundleID, resourceID string) error {
	return s.Tx.InTx(ctx, func(tx *gorm.DB) error {
		bundles := s.BundleRepo.WithTx(tx)
		if _, err := bundles.FindOwned(bundleID, teacherID); err != nil {
			return notFoundOr(err)
		}
		n, err := bundles.UnlinkResource(bundleID, resourceID)
		if err != nil {
			return err
		}
		if n == 0 {
			return util.ErrNotFound
		}
		return nil
	})
}
