package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lesson_bundle_backend/internal/config"
	"lesson_bundle_backend/internal/middleware"
	"lesson_bundle_backend/internal/model"
	"lesson_bundle_backend/internal/repository"
	"lesson_bundle_backend/internal/service"
	"lesson_bundle_backend/internal/testutil"
	"lesson_bundle_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "controller-test-secret-with-32-chars!"

const quizJSON = `{
  "title": "Plants",
  "questions": [
    {"questionType": "MCQ", "text": "Plants make food by?", "options": [{"text": "Photosynthesis", "isCorrect": true}, {"text": "Digestion"}]},
    {"questionType": "TRUE_FALSE", "text": "Roots absorb water.", "answer": true},
    {"questionType": "SHORT_ANSWER", "text": "Name a gas plants release.", "answer": "Oxygen"}
  ]
}`

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	db       *gorm.DB
	router   *gin.Engine
	provider *service.MockProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.OpenDB(t)
	provider := service.NewMockProvider(map[service.ArtifactKind]service.MockReply{
		service.ArtifactTeacherNote: {Text: "Teacher plan"},
		service.ArtifactLearnerNote: {Text: "Learner note"},
		service.ArtifactQuiz:        {Text: quizJSON},
	})

	tx := repository.NewTxRunner(db)
	bundleRepo := repository.NewBundleRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)

	bundles, err := service.NewBundleService(tx, bundleRepo, noteRepo, quizRepo, repository.NewResourceRepository(db),
		provider, nil, config.GenerationConfig{TimeoutSeconds: 5, DefaultQuestionCount: 2, DefaultManualCount: 1})
	require.NoError(t, err)
	badges := service.NewBadgeService(repository.NewBadgeRepository(db), attemptRepo)
	quizzes := service.NewQuizService(tx, quizRepo, attemptRepo, bundleRepo, badges, service.NewLocalStudentLocker())
	views := service.NewNoteViewService(tx, repository.NewNoteViewRepository(db), noteRepo, bundleRepo, nil,
		config.NoteViewConfig{DebounceSeconds: 60, RetentionDays: 30})

	bc := NewBundleController(bundles)
	qc := NewQuizController(quizzes)
	lc := NewLearnerController(badges, views)

	r := gin.New()
	r.GET("/api/health", NewHealthController(db, nil).HealthCheck)
	api := r.Group("/api", middleware.AuthMiddleware(testSecret))
	teacher := api.Group("/teacher", middleware.RoleMiddleware(model.Teacher))
	teacher.POST("/bundles", bc.CreateBundle)
	teacher.GET("/bundles", bc.ListBundles)
	teacher.GET("/bundles/:id", bc.GetBundle)
	teacher.PATCH("/bundles/:id", bc.UpdateBundle)
	teacher.PUT("/bundles/:id/status", bc.SetStatus)
	teacher.DELETE("/bundles/:id", bc.DeleteBundle)
	teacher.POST("/bundles/:id/duplicate", bc.DuplicateBundle)
	teacher.POST("/bundles/:id/resources/:rid", bc.AttachResource)
	teacher.DELETE("/bundles/:id/resources/:rid", bc.DetachResource)
	api.GET("/quizzes/:id", qc.GetQuiz)
	api.POST("/quizzes/:id/submit", qc.SubmitQuiz)
	api.GET("/quizzes/:id/manual", qc.GetManualQuestions)
	api.GET("/quizzes/:id/attempts", qc.ListAttempts)
	api.GET("/badges", lc.ListBadges)
	api.POST("/notes/:id/views", lc.RecordNoteView)

	return &testServer{db: db, router: r, provider: provider}
}

func (s *testServer) do(t *testing.T, method, path, userID string, role model.UserRole, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		tok, err := util.GenerateJWT(userID, "org-1", role, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (s *testServer) createBundle(t *testing.T) model.Bundle {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/teacher/bundles", "teacher-1", model.Teacher, map[string]interface{}{
		"tags":    []string{"science"},
		"context": map[string]interface{}{"subject": "Science", "topic": "Plants"},
	})
	require.Equal(t, http.StatusCreated, code, env.Message)

	var b model.Bundle
	require.NoError(t, json.Unmarshal(env.Data, &b))
	return b
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, env := s.do(t, http.MethodGet, "/api/health", "", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"database":"up"`)
}

func TestBundleEndpoints(t *testing.T) {
	s := newTestServer(t)
	b := s.createBundle(t)
	assert.Equal(t, "Science: Plants", b.Title)
	assert.Equal(t, model.BundleDraft, b.Status)
	assert.Equal(t, "org-1", b.OrgID)

	code, env := s.do(t, http.MethodGet, "/api/teacher/bundles?tag=science", "teacher-1", model.Teacher, nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		List  []model.Bundle `json:"list"`
		Total int64          `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 1, page.Total)

	code, _ = s.do(t, http.MethodGet, "/api/teacher/bundles/"+b.ID, "teacher-2", model.Teacher, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.do(t, http.MethodPatch, "/api/teacher/bundles/"+b.ID, "teacher-1", model.Teacher, map[string]interface{}{"title": "Green plants"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"title":"Green plants"`)

	code, _ = s.do(t, http.MethodPut, "/api/teacher/bundles/"+b.ID+"/status", "teacher-1", model.Teacher, map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, env = s.do(t, http.MethodPut, "/api/teacher/bundles/"+b.ID+"/status", "teacher-1", model.Teacher, map[string]string{"status": "published"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"status":"published"`)

	code, env = s.do(t, http.MethodPost, "/api/teacher/bundles/"+b.ID+"/duplicate", "teacher-1", model.Teacher, nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Contains(t, string(env.Data), "(Copy)")

	code, _ = s.do(t, http.MethodDelete, "/api/teacher/bundles/"+b.ID, "teacher-1", model.Teacher, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodDelete, "/api/teacher/bundles/"+b.ID, "teacher-1", model.Teacher, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCreateBundle_Failures(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/teacher/bundles", "student-1", model.Student, map[string]interface{}{})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPost, "/api/teacher/bundles", "teacher-1", model.Teacher, map[string]interface{}{
		"context": map[string]interface{}{"subject": "Science"},
	})
	assert.Equal(t, http.StatusBadRequest, code)

	s.provider.Replies[service.ArtifactQuiz] = service.MockReply{Text: "Sorry, I cannot help with that. internal-trace-42"}
	code, env := s.do(t, http.MethodPost, "/api/teacher/bundles", "teacher-1", model.Teacher, map[string]interface{}{
		"context": map[string]interface{}{"subject": "Science", "topic": "Plants"},
	})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.NotContains(t, env.Message, "internal-trace-42")
	assert.EqualValues(t, 0, testutil.CountRows(t, s.db, "bundles")["bundles"])
}

func TestDetachResource_NotLinked(t *testing.T) {
	s := newTestServer(t)
	b := s.createBundle(t)

	res := &model.Resource{OwnerID: "teacher-1", Title: "Worksheet", Type: model.Worksheet}
	require.NoError(t, s.db.Create(res).Error)

	path := "/api/teacher/bundles/" + b.ID + "/resources/" + res.ID
	code, _ := s.do(t, http.MethodDelete, path, "teacher-1", model.Teacher, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, path, "teacher-1", model.Teacher, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodDelete, path, "teacher-1", model.Teacher, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestQuizEndpoints(t *testing.T) {
	s := newTestServer(t)
	b := s.createBundle(t)
	quizPath := "/api/quizzes/" + b.QuizID

	code, env := s.do(t, http.MethodGet, quizPath, "student-1", model.Student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(env.Data), "isCorrect")
	var quiz service.StudentQuiz
	require.NoError(t, json.Unmarshal(env.Data, &quiz))
	require.Len(t, quiz.Questions, 2)
	assert.Equal(t, 1, quiz.ManualCount)

	code, _ = s.do(t, http.MethodGet, quizPath+"/manual", "student-1", model.Student, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, quizPath+"/submit", "student-1", model.Student, map[string]interface{}{
		"answers": map[string]string{"someone-elses-question": "x"},
	})
	assert.Equal(t, http.StatusBadRequest, code)

	answers := map[string]string{
		quiz.Questions[1].ID: "true",
	}
	for _, o := range quiz.Questions[0].Options {
		if o.Text == "Photosynthesis" {
			answers[quiz.Questions[0].ID] = o.ID
		}
	}
	code, env = s.do(t, http.MethodPost, quizPath+"/submit", "student-1", model.Student, map[string]interface{}{"answers": answers})
	require.Equal(t, http.StatusOK, code, env.Message)
	var result service.SubmissionResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, service.ScoreResult{Correct: 2, Total: 2, Percentage: 100}, result.Score)
	assert.Len(t, result.NewBadges, 2)
	require.Len(t, result.ManualQuestions, 1)
	assert.Equal(t, "Oxygen", result.ManualQuestions[0].ReferenceAnswer)

	code, _ = s.do(t, http.MethodGet, quizPath+"/manual", "student-1", model.Student, nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodGet, quizPath+"/attempts", "student-1", model.Student, nil)
	require.Equal(t, http.StatusOK, code)
	var attempts []model.QuizAttempt
	require.NoError(t, json.Unmarshal(env.Data, &attempts))
	assert.Len(t, attempts, 1)

	code, env = s.do(t, http.MethodGet, "/api/badges", "student-1", model.Student, nil)
	require.Equal(t, http.StatusOK, code)
	var held []model.StudentBadge
	require.NoError(t, json.Unmarshal(env.Data, &held))
	assert.Len(t, held, 2)

	code, _ = s.do(t, http.MethodGet, "/api/quizzes/missing", "student-1", model.Student, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRecordNoteView(t *testing.T) {
	s := newTestServer(t)
	b := s.createBundle(t)

	code, env := s.do(t, http.MethodPost, "/api/notes/"+b.LearnerNoteID+"/views", "student-1", model.Student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"recorded":true}`, string(env.Data))

	code, env = s.do(t, http.MethodPost, "/api/notes/"+b.LearnerNoteID+"/views", "student-1", model.Student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"recorded":false}`, string(env.Data))

	code, _ = s.do(t, http.MethodPost, "/api/notes/missing/views", "student-1", model.Student, nil)
	assert.Equal(t, http.StatusNotFound, code)
}
