package controller

import (
	"lesson_bundle_backend/internal/service"
	"lesson_bundle_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// LearnerController serves student badges and note views.
type LearnerController struct {
	Badges *service.BadgeService
	Views  *service.NoteViewService
}

func NewLearnerController(badges *service.BadgeService, views *service.NoteViewService) *LearnerController {
	return &LearnerController{Badges: badges, Views: views}
}

// ListBadges godoc
// @Summary List my badges
// @Tags badges
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.StudentBadge}
// @Router /badges [get]
func (c *LearnerController) ListBadges(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	badges, err := c.Badges.ListStudentBadges(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, badges)
}

// RecordNoteView godoc
// @Summary Record learner note view
// @Description Counted once per student and note within the debounce window
// @Tags notes
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "learner note ID"
// @Success 200 {object} util.Response
// @Router /notes/{id}/views [post]
func (c *LearnerController) RecordNoteView(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	recorded, err := c.Views.RecordNoteView(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"recorded": recorded})
}
