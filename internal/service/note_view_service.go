package service

import (
	"context"
	"errors"
	"fmt"
	"lesson_bundle_backend/internal/config"
	"lesson_bundle_backend/internal/model"
	"lesson_bundle_backend/internal/repository"
	"lesson_bundle_backend/internal/util"
	"lesson_bundle_backend/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NoteViewService records learner-note views, at most one per student and
// note within the debounce window.
type NoteViewService struct {
	Tx         repository.TxRunner
	ViewRepo   *repository.NoteViewRepository
	NoteRepo   *repository.NoteRepository
	BundleRepo *repository.BundleRepository
	Redis      *redis.Client
	cfg        config.NoteViewConfig
	now        func() time.Time
}

func NewNoteViewService(
	tx repository.TxRunner,
	viewRepo *repository.NoteViewRepository,
	noteRepo *repository.NoteRepository,
	bundleRepo *repository.BundleRepository,
	rdb *redis.Client,
	cfg config.NoteViewConfig,
) *NoteViewService {
	return &NoteViewService{
		Tx:         tx,
		ViewRepo:   viewRepo,
		NoteRepo:   noteRepo,
		BundleRepo: bundleRepo,
		Redis:      rdb,
		cfg:        cfg,
		now:        time.Now,
	}
}

// RecordNoteView reports whether a new view was stored.
func (s *NoteViewService) RecordNoteView(ctx context.Context, studentID, learnerNoteID string) (bool, error) {
	if studentID == "" || learnerNoteID == "" {
		return false, fmt.Errorf("%w: missing student or note", util.ErrInvalidInput)
	}
	if _, err := s.NoteRepo.WithTx(s.NoteRepo.DB.WithContext(ctx)).FindLearnerNote(learnerNoteID); err != nil {
		return false, notFoundOr(err)
	}

	window := s.cfg.Debounce()
	now := s.now()

	claimed := ""
	if s.Redis != nil && window > 0 {
		key := noteViewKey(studentID, learnerNoteID)
		fresh, err := s.Redis.SetNX(ctx, key, now.Unix(), window).Result()
		switch {
		case err != nil:
			// fall back to the DB lookback below
			logger.Log.Warn("note view debounce via redis failed", zap.Error(err))
		case !fresh:
			return false, nil
		default:
			claimed = key
		}
	}

	recorded := false
	err := s.Tx.InTx(ctx, func(tx *gorm.DB) error {
		views := s.ViewRepo.WithTx(tx)
		if window > 0 {
			seen, err := views.ViewedSince(studentID, learnerNoteID, now.Add(-window))
			if err != nil {
				return err
			}
			if seen {
				return nil
			}
		}
		if err := views.Create(&model.NoteView{
			StudentID:     studentID,
			LearnerNoteID: learnerNoteID,
			ViewedAt:      now,
		}); err != nil {
			return err
		}
		recorded = true
		return s.BundleRepo.WithTx(tx).IncrementByLearnerNote(learnerNoteID, "view_count")
	})
	if err != nil {
		if claimed != "" {
			if derr := s.Redis.Del(context.WithoutCancel(ctx), claimed).Err(); derr != nil {
				logger.Log.Warn("release note view debounce key failed", zap.String("key", claimed), zap.Error(derr))
			}
		}
		return false, err
	}
	return recorded, nil
}

func noteViewKey(studentID, learnerNoteID string) string {
	return fmt.Sprintf("lesson_bundle:note_view:%s:%s", studentID, learnerNoteID)
}

// PruneViews deletes views older than the retention window.
func (s *NoteViewService) PruneViews(ctx context.Context) (int64, error) {
	if s.cfg.RetentionDays <= 0 {
		return 0, errors.New("note view retention is disabled")
	}
	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)
	n, err := s.ViewRepo.WithTx(s.ViewRepo.DB.WithContext(ctx)).DeleteBefore(cutoff)
	if err != nil {
		return 0, err
	}
	logger.Log.Info("pruned note views", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	return n, nil
}
