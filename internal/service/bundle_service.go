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
	"lesson_bundle_backend/pkg/monitoring"
	"lesson_bundle_backend/pkg/tracing"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CreateBundleRequest struct {
	TopicID     string                  `json:"topicId" validate:"max=64"`
	Title       string                  `json:"title" validate:"max=255"`
	Description string                  `json:"description" validate:"max=5000"`
	Tags        []string                `json:"tags" validate:"max=20,dive,min=1,max=50"`
	Publish     bool                    `json:"publish"`
	ResourceIDs []string                `json:"resourceIds" validate:"max=50,dive,required"`
	Context     model.GenerationContext `json:"context"`
}

// BundleService creates bundles from generated artifacts and manages their
// lifecycle afterwards.
type BundleService struct {
	Tx           repository.TxRunner
	BundleRepo   *repository.BundleRepository
	NoteRepo     *repository.NoteRepository
	QuizRepo     *repository.QuizRepository
	ResourceRepo *repository.ResourceRepository
	Generator    *ArtifactGenerator
	Storage      *StorageService
	cfg          config.GenerationConfig
	provider     ContentProvider
	validate     *validator.Validate
}

func NewBundleService(
	tx repository.TxRunner,
	bundleRepo *repository.BundleRepository,
	noteRepo *repository.NoteRepository,
	quizRepo *repository.QuizRepository,
	resourceRepo *repository.ResourceRepository,
	provider ContentProvider,
	storage *StorageService,
	cfg config.GenerationConfig,
) (*BundleService, error) {
	generator, err := NewArtifactGenerator(provider)
	if err != nil {
		return nil, err
	}
	return &BundleService{
		Tx:           tx,
		BundleRepo:   bundleRepo,
		NoteRepo:     noteRepo,
		QuizRepo:     quizRepo,
		ResourceRepo: resourceRepo,
		Generator:    generator,
		Storage:      storage,
		cfg:          cfg,
		provider:     provider,
		validate:     validator.New(),
	}, nil
}

type generatedArtifacts struct {
	teacherNote string
	learnerNote string
	quiz        *model.Quiz
}

// CreateBundle generates the three artifacts concurrently and persists them
// in one transaction only after all three succeed. On any failure nothing is
// written.
func (s *BundleService) CreateBundle(ctx context.Context, teacherID, orgID string, req CreateBundleRequest) (*model.Bundle, error) {
	ctx, span := tracing.Tracer.Start(ctx, "bundle.create")
	defer span.End()

	if err := s.validateCreate(ctx, teacherID, &req); err != nil {
		monitoring.BundleGenerations.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if s.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout())
		defer cancel()
	}

	artifacts, err := s.generateAll(ctx, req.Context)
	if err == nil {
		// a late deadline must not let persistence start
		err = ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		monitoring.BundleGenerations.WithLabelValues("generation_failed").Inc()
		logger.Log.Warn("bundle generation failed",
			zap.String("teacher_id", teacherID),
			zap.String("topic", req.Context.Topic),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", util.ErrGenerationFailed, err)
	}

	bundle := s.assemble(teacherID, orgID, req, artifacts)
	if err := s.persist(ctx, bundle, req.ResourceIDs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		monitoring.BundleGenerations.WithLabelValues("persistence_failed").Inc()
		logger.Log.Error("bundle persistence failed",
			zap.String("teacher_id", teacherID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", util.ErrPersistenceFailed, err)
	}

	span.SetAttributes(attribute.String("bundle.id", bundle.ID))
	monitoring.BundleGenerations.WithLabelValues("success").Inc()
	logger.Log.Info("bundle created",
		zap.String("bundle_id", bundle.ID),
		zap.String("teacher_id", teacherID),
		zap.Int("questions", len(artifacts.quiz.Questions)),
	)
	return bundle, nil
}

func (s *BundleService) validateCreate(ctx context.Context, teacherID string, req *CreateBundleRequest) error {
	if teacherID == "" {
		return fmt.Errorf("%w: missing teacher", util.ErrInvalidInput)
	}
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return fmt.Errorf("%w: %s", util.ErrInvalidInput, validationMessage(err))
	}
	if req.Context.QuestionCount == 0 {
		req.Context.QuestionCount = s.cfg.DefaultQuestionCount
	}
	if req.Context.ManualCount == 0 {
		req.Context.ManualCount = s.cfg.DefaultManualCount
	}

	req.ResourceIDs = uniqueStrings(req.ResourceIDs)
	if len(req.ResourceIDs) > 0 {
		n, err := s.ResourceRepo.WithTx(s.ResourceRepo.DB.WithContext(ctx)).CountExisting(req.ResourceIDs)
		if err != nil {
			return err
		}
		if int(n) != len(req.ResourceIDs) {
			return fmt.Errorf("%w: unknown resource id", util.ErrInvalidInput)
		}
	}
	return nil
}

func (s *BundleService) generateAll(ctx context.Context, gc model.GenerationContext) (*generatedArtifacts, error) {
	var out generatedArtifacts
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a, err := s.Generator.Generate(gctx, ArtifactTeacherNote, gc)
		if err != nil {
			return fmt.Errorf("%s: %w", ArtifactTeacherNote, err)
		}
		out.teacherNote = a.Text
		return nil
	})
	g.Go(func() error {
		a, err := s.Generator.Generate(gctx, ArtifactLearnerNote, gc)
		if err != nil {
			return fmt.Errorf("%s: %w", ArtifactLearnerNote, err)
		}
		out.learnerNote = a.Text
		return nil
	})
	g.Go(func() error {
		a, err := s.Generator.Generate(gctx, ArtifactQuiz, gc)
		if err != nil {
			return fmt.Errorf("%s: %w", ArtifactQuiz, err)
		}
		out.quiz = a.Quiz
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *BundleService) assemble(teacherID, orgID string, req CreateBundleRequest, a *generatedArtifacts) *model.Bundle {
	gc := req.Context

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = gc.Topic
		if gc.Subject != "" {
			title = gc.Subject + ": " + gc.Topic
		}
	}

	quiz := a.quiz
	quiz.TeacherID = teacherID
	quiz.TopicID = req.TopicID
	quiz.Subject = gc.Subject
	if quiz.Title == "" {
		quiz.Title = title
	}

	status := model.BundleDraft
	if req.Publish || s.cfg.PublishOnCreate {
		status = model.BundlePublished
	}

	providerName, modelName := "", ""
	if id, ok := s.provider.(ProviderIdentity); ok {
		providerName, modelName = id.Identity()
	}

	bundle := &model.Bundle{
		TeacherID:   teacherID,
		OrgID:       orgID,
		TopicID:     req.TopicID,
		Title:       title,
		Description: req.Description,
		Tags:        append([]string(nil), req.Tags...),
		Status:      status,
		Provider:    providerName,
		ModelName:   modelName,
		LessonNote:  &model.LessonNote{TeacherID: teacherID, TopicID: req.TopicID, Content: a.teacherNote},
		LearnerNote: &model.LearnerNote{TeacherID: teacherID, TopicID: req.TopicID, Content: a.learnerNote},
		Quiz:        quiz,
		Context:     datatypes.NewJSONType(gc),
	}
	return bundle
}

// persist writes lesson note, learner note, quiz, questions, options and the
// bundle row, in that order, in a single transaction.
func (s *BundleService) persist(ctx context.Context, bundle *model.Bundle, resourceIDs []string) error {
	return s.Tx.InTx(ctx, func(tx *gorm.DB) error {
		notes := s.NoteRepo.WithTx(tx)
		if err := notes.CreateLessonNote(bundle.LessonNote); err != nil {
			return fmt.Errorf("lesson note: %w", err)
		}
		if err := notes.CreateLearnerNote(bundle.LearnerNote); err != nil {
			return fmt.Errorf("learner note: %w", err)
		}
		if err := s.QuizRepo.WithTx(tx).Create(bundle.Quiz); err != nil {
			return fmt.Errorf("quiz: %w", err)
		}

		bundle.LessonNoteID = bundle.LessonNote.ID
		bundle.LearnerNoteID = bundle.LearnerNote.ID
		bundle.QuizID = bundle.Quiz.ID

		bundles := s.BundleRepo.WithTx(tx)
		if err := bundles.Create(bundle); err != nil {
			return fmt.Errorf("bundle: %w", err)
		}
		if err := bundles.LinkResources(bundle.ID, resourceIDs); err != nil {
			return fmt.Errorf("resources: %w", err)
		}
		return nil
	})
}

func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
