package controller

import (
	"lesson_bundle_backend/internal/model"
	"lesson_bundle_backend/internal/service"
	"lesson_bundle_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type BundleController struct {
	Service *service.BundleService
}

func NewBundleController(s *service.BundleService) *BundleController {
	return &BundleController{Service: s}
}

type SetStatusRequest struct {
	Status model.BundleStatus `json:"status" binding:"required"`
}

// CreateBundle godoc
// @Summary Create bundle
// @Description Generates teacher note, learner note and quiz concurrently and saves them only if all succeed
// @Tags bundles
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CreateBundleRequest true "generation request"
// @Success 201 {object} util.Response{data=model.Bundle}
// @Failure 400 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /teacher/bundles [post]
func (c *BundleController) CreateBundle(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.CreateBundleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	bundle, err := c.Service.CreateBundle(ctx.Request.Context(), user.UserID, user.OrgID, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, bundle)
}

// ListBundles godoc
// @Summary List my bundles
// @Tags bundles
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "draft | published | archived"
// @Param tag query string false "tag"
// @Param page query int false "page"
// @Param limit query int false "page size"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /teacher/bundles [get]
func (c *BundleController) ListBundles(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, limit := util.ParsePagination(ctx)
	bundles, total, err := c.Service.ListBundles(ctx.Request.Context(), user.UserID, service.ListBundlesQuery{
		Status: model.BundleStatus(ctx.Query("status")),
		Tag:    ctx.Query("tag"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  bundles,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetBundle godoc
// @Summary Get bundle
// @Tags bundles
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "bundle ID"
// @Success 200 {object} util.Response{data=service.BundleDetail}
// @Failure 404 {object} util.Response
// @Router /teacher/bundles/{id} [get]
func (c *BundleController) GetBundle(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	detail, err := c.Service.GetBundle(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// UpdateBundle godoc
// @Summary Update bundle
// @Description Only fields present in the request change
// @Tags bundles
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "bundle ID"
// @Param body body service.UpdateBundleRequest true "fields to change"
// @Success 200 {object} util.Response{data=model.Bundle}
// @Router /teacher/bundles/{id} [patch]
func (c *BundleController) UpdateBundle(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.UpdateBundleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	bundle, err := c.Service.UpdateBundle(ctx.Request.Context(), user.UserID, ctx.Param("id"), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, bundle)
}

// SetStatus godoc
// @Summary Set bundle status
// @Tags bundles
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "bundle ID"
// @Param body body SetStatusRequest true "status"
// @Success 200 {object} util.Response{data=model.Bundle}
// @Router /teacher/bundles/{id}/status [put]
func (c *BundleController) SetStatus(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SetStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	bundle, err := c.Service.SetStatus(ctx.Request.Context(), user.UserID, ctx.Param("id"), req.Status)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, bundle)
}

// DeleteBundle godoc
// @Summary Delete bundle
// @Description Deletes notes, quiz, questions and options; nothing is removed on failure
// @Tags bundles
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "bundle ID"
// @Success 200 {object} util.Response
// @Failure 500 {object} util.Response
// @Router /teacher/bundles/{id} [delete]
func (c *BundleController) DeleteBundle(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Service.DeleteBundle(ctx.Request.Context(), user.UserID, ctx.Param("id")); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": true})
}

// DuplicateBundle godoc
// @Summary Duplicate bundle
// @Tags bundles
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "bundle ID"
// @Success 201 {object} util.Response{data=model.Bundle}
// @Router /teacher/bundles/{id}/duplicate [post]
func (c *BundleController) DuplicateBundle(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	dup, err := c.Service.DuplicateBundle(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, dup)
}

// AttachResource godoc
// @Summary Attach resource
// @Tags bundles
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "bundle ID"
// @Param rid path string true "resource ID"
// @Success 200 {object} util.Response
// @Router /teacher/bundles/{id}/resources/{rid} [post]
func (c *BundleController) AttachResource(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Service.AttachResource(ctx.Request.Context(), user.UserID, ctx.Param("id"), ctx.Param("rid")); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// DetachResource godoc
// @Summary Detach resource
// @Tags bundles
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "bundle ID"
// @Param rid path string true "resource ID"
// @Success 200 {object} util.Response
// @Router /teacher/bundles/{id}/resources/{rid} [delete]
func (c *BundleController) DetachResource(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Service.DetachResource(ctx.Request.Context(), user.UserID, ctx.Param("id"), ctx.Param("rid")); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
