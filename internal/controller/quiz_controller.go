package controller

import (
	"lesson_bundle_backend/internal/service"
	"lesson_bundle_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	Service *service.QuizService
}

func NewQuizController(s *service.QuizService) *QuizController {
	return &QuizController{Service: s}
}

type SubmitQuizRequest struct {
	Answers map[string]string `json:"answers"`
}

// GetQuiz godoc
// @Summary Get quiz for a student
// @Description Auto-graded questions only, without correct answers
// @Tags quizzes
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "quiz ID"
// @Success 200 {object} util.Response{data=service.StudentQuiz}
// @Router /quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	quiz, err := c.Service.GetStudentQuiz(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// SubmitQuiz godoc
// @Summary Submit auto-graded answers
// @Description answers keyed by question ID; MCQ takes an option ID, TRUE_FALSE an option ID or true/false
// @Tags quizzes
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "quiz ID"
// @Param body body SubmitQuizRequest true "answers"
// @Success 200 {object} util.Response{data=service.SubmissionResult}
// @Failure 400 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /quizzes/{id}/submit [post]
func (c *QuizController) SubmitQuiz(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SubmitQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Service.SubmitAutoGraded(ctx.Request.Context(), ctx.Param("id"), user.UserID, req.Answers)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetManualQuestions godoc
// @Summary Get manual questions with reference answers
// @Description Available after the auto-graded section is submitted
// @Tags quizzes
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "quiz ID"
// @Success 200 {object} util.Response{data=[]service.ManualQuestionView}
// @Failure 409 {object} util.Response
// @Router /quizzes/{id}/manual [get]
func (c *QuizController) GetManualQuestions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	questions, err := c.Service.GetManualQuestions(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, questions)
}

// ListAttempts godoc
// @Summary List my attempts
// @Tags quizzes
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "quiz ID"
// @Success 200 {object} util.Response{data=[]model.QuizAttempt}
// @Router /quizzes/{id}/attempts [get]
func (c *QuizController) ListAttempts(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempts, err := c.Service.ListAttempts(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}
