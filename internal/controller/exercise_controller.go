package controller

import (
	"strconv"
	"time"

	"corptrain_backend/internal/model"
	"corptrain_backend/internal/service"
	"corptrain_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ExerciseController 培训师端：维护练习、查看统计与学员作答
type ExerciseController struct {
	CatalogService *service.ExerciseCatalogService
	AttemptService *service.ExerciseAttemptService
}

func NewExerciseController(catalogService *service.ExerciseCatalogService, attemptService *service.ExerciseAttemptService) *ExerciseController {
	return &ExerciseController{CatalogService: catalogService, AttemptService: attemptService}
}

type ChangeTypeRequest struct {
	Type model.ExerciseType `json:"type" binding:"required"`
}

// @Summary 创建练习
// @Tags 练习管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param exercise body service.ExerciseCreateRequest true "练习及题目"
// @Success 201 {object} util.Response{data=model.Exercise}
// @Failure 400 {object} util.Response
// @Router /teacher/exercises [post]
func (c *ExerciseController) CreateExercise(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.ExerciseCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exercise, err := c.CatalogService.CreateExercise(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, exercise)
}

// @Summary 练习列表
// @Tags 练习管理
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Param mine query bool false "只看自己创建的"
// @Success 200 {object} util.Response
// @Router /teacher/exercises [get]
func (c *ExerciseController) ListExercises(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	var creatorID uint
	if ctx.Query("mine") == "true" {
		creatorID = user.UserID
	}

	exercises, total, err := c.CatalogService.ListExercises(ctx.Request.Context(), creatorID, page, limit)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"items": exercises,
		"total": total,
		"page":  page,
	})
}

// @Summary 练习详情（含答案）
// @Tags 练习管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "练习ID"
// @Success 200 {object} util.Response{data=model.Exercise}
// @Failure 404 {object} util.Response
// @Router /teacher/exercises/{id} [get]
func (c *ExerciseController) GetExercise(ctx *gin.Context) {
	id, ok := util.ParseUint(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid exercise id")
		return
	}
	exercise, err := c.CatalogService.GetExercise(ctx.Request.Context(), id)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, exercise)
}

// @Summary 修改练习题型
// @Description 已有题目的练习不能修改题型
// @Tags 练习管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "练习ID"
// @Param body body ChangeTypeRequest true "新题型"
// @Success 200 {object} util.Response{data=model.Exercise}
// @Failure 409 {object} util.Response
// @Router /teacher/exercises/{id}/type [put]
func (c *ExerciseController) ChangeType(ctx *gin.Context) {
	id, ok := util.ParseUint(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid exercise id")
		return
	}
	var req ChangeTypeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exercise, err := c.CatalogService.ChangeType(ctx.Request.Context(), id, req.Type)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, exercise)
}

// @Summary 练习作答统计
// @Tags 练习管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "练习ID"
// @Param start query string false "开始日期 2006-01-02"
// @Param end query string false "结束日期 2006-01-02（含当天）"
// @Success 200 {object} util.Response{data=repository.AttemptStats}
// @Router /teacher/exercises/{id}/stats [get]
func (c *ExerciseController) GetStats(ctx *gin.Context) {
	id, ok := util.ParseUint(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid exercise id")
		return
	}

	var start, end *time.Time
	if s := ctx.Query("start"); s != "" {
		t, err := time.ParseInLocation(util.DateFormat, s, time.Local)
		if err != nil {
			util.BadRequest(ctx, "invalid start date")
			return
		}
		start = &t
	}
	if s := ctx.Query("end"); s != "" {
		t, err := time.ParseInLocation(util.DateFormat, s, time.Local)
		if err != nil {
			util.BadRequest(ctx, "invalid end date")
			return
		}
		t = t.Add(24*time.Hour - time.Nanosecond)
		end = &t
	}

	stats, err := c.AttemptService.GetAttemptStats(ctx.Request.Context(), id, start, end)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// @Summary 查看学员作答
// @Tags 练习管理
// @Produce json
// @Security ApiKeyAuth
// @Param attemptId path string true "尝试ID"
// @Success 200 {object} util.Response{data=model.ExerciseAttempt}
// @Failure 404 {object} util.Response
// @Router /teacher/attempts/{attemptId} [get]
func (c *ExerciseController) ReviewAttempt(ctx *gin.Context) {
	attempt, err := c.AttemptService.GetAttemptForReview(ctx.Request.Context(), ctx.Param("attemptId"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"attempt":  attempt,
		"exercise": attempt.Snapshot.Data(),
	})
}
