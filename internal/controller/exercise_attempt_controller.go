package controller

import (
	"encoding/json"
	"time"

	"corptrain_backend/internal/model"
	"corptrain_backend/internal/service"
	"corptrain_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExerciseAttemptController struct {
	AttemptService *service.ExerciseAttemptService
	CatalogService *service.ExerciseCatalogService
}

func NewExerciseAttemptController(attemptService *service.ExerciseAttemptService, catalogService *service.ExerciseCatalogService) *ExerciseAttemptController {
	return &ExerciseAttemptController{AttemptService: attemptService, CatalogService: catalogService}
}

// AttemptResponse 学员端的尝试视图
type AttemptResponse struct {
	Attempt          *model.ExerciseAttempt `json:"attempt"`
	Exercise         service.ExerciseView   `json:"exercise"`
	Resumed          bool                   `json:"resumed"`
	ElapsedSeconds   int                    `json:"elapsedSeconds"`
	RemainingSeconds *int                   `json:"remainingSeconds,omitempty"`
}

type SubmitAnswerRequest struct {
	ItemID uint            `json:"itemId" binding:"required"`
	Answer json.RawMessage `json:"answer"`
}

func (c *ExerciseAttemptController) attemptResponse(ctx *gin.Context, a *model.ExerciseAttempt, snap model.ExerciseSnapshot, resumed bool) AttemptResponse {
	res := AttemptResponse{
		Attempt:  a,
		Exercise: c.CatalogService.StudentView(ctx.Request.Context(), snap),
		Resumed:  resumed,
	}
	end := time.Now()
	if a.CompletedAt != nil {
		end = *a.CompletedAt
	}
	res.ElapsedSeconds = service.ElapsedSeconds(a, end)
	if snap.TimeLimitSeconds != nil && a.Status == model.AttemptInProgress {
		remaining := *snap.TimeLimitSeconds - res.ElapsedSeconds
		if remaining < 0 {
			remaining = 0
		}
		res.RemainingSeconds = &remaining
	}
	return res
}

// @Summary 开始或继续作答
// @Description 存在进行中的尝试时返回该尝试，否则创建新的尝试
// @Tags 练习作答
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "练习ID"
// @Success 200 {object} util.Response{data=AttemptResponse} "继续作答"
// @Success 201 {object} util.Response{data=AttemptResponse} "新建尝试"
// @Failure 404 {object} util.Response
// @Router /exercises/{id}/attempts [post]
func (c *ExerciseAttemptController) StartAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	exerciseID, ok := util.ParseUint(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid exercise id")
		return
	}

	res, err := c.AttemptService.StartOrResume(ctx.Request.Context(), exerciseID, user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	body := c.attemptResponse(ctx, res.Attempt, res.Exercise, res.Resumed)
	if res.Resumed {
		util.Success(ctx, body)
		return
	}
	util.Created(ctx, body)
}

// @Summary 提交单题答案
// @Description 判分并记录答案，返回本题是否正确及得分
// @Tags 练习作答
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param attemptId path string true "尝试ID"
// @Param body body SubmitAnswerRequest true "题目ID与答案"
// @Success 200 {object} util.Response{data=grading.EvaluationResult}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /attempts/{attemptId}/answers [post]
func (c *ExerciseAttemptController) SubmitAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AttemptService.SubmitAnswer(ctx.Request.Context(), ctx.Param("attemptId"), user.UserID, req.ItemID, req.Answer)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 完成作答
// @Description 汇总成绩；重复调用返回首次完成时的成绩
// @Tags 练习作答
// @Produce json
// @Security ApiKeyAuth
// @Param attemptId path string true "尝试ID"
// @Success 200 {object} util.Response{data=service.CompletionResult}
// @Failure 409 {object} util.Response
// @Router /attempts/{attemptId}/complete [post]
func (c *ExerciseAttemptController) CompleteAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.AttemptService.Complete(ctx.Request.Context(), ctx.Param("attemptId"), user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 放弃作答
// @Tags 练习作答
// @Produce json
// @Security ApiKeyAuth
// @Param attemptId path string true "尝试ID"
// @Success 200 {object} util.Response{data=model.ExerciseAttempt}
// @Failure 409 {object} util.Response
// @Router /attempts/{attemptId}/abandon [post]
func (c *ExerciseAttemptController) AbandonAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.AttemptService.Abandon(ctx.Request.Context(), ctx.Param("attemptId"), user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 获取尝试详情
// @Tags 练习作答
// @Produce json
// @Security ApiKeyAuth
// @Param attemptId path string true "尝试ID"
// @Success 200 {object} util.Response{data=AttemptResponse}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /attempts/{attemptId} [get]
func (c *ExerciseAttemptController) GetAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.AttemptService.GetAttempt(ctx.Request.Context(), ctx.Param("attemptId"), user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, c.attemptResponse(ctx, attempt, attempt.Snapshot.Data(), false))
}

// @Summary 我的作答记录
// @Tags 练习作答
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "练习ID"
// @Success 200 {object} util.Response{data=[]model.ExerciseAttempt}
// @Router /exercises/{id}/attempts [get]
func (c *ExerciseAttemptController) ListMyAttempts(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	exerciseID, ok := util.ParseUint(ctx.Param("id"))
	if !ok {
		util.BadRequest(ctx, "invalid exercise id")
		return
	}

	attempts, err := c.AttemptService.ListAttempts(ctx.Request.Context(), user.UserID, exerciseID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	if attempts == nil {
		attempts = []model.ExerciseAttempt{}
	}
	util.Success(ctx, gin.H{
		"items": attempts,
		"total": len(attempts),
	})
}
