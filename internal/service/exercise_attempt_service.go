package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"corptrain_backend/internal/config"
	"corptrain_backend/internal/grading"
	"corptrain_backend/internal/model"
	"corptrain_backend/internal/repository"
	"corptrain_backend/internal/util"
	"corptrain_backend/pkg/logger"
	"corptrain_backend/pkg/monitoring"
	"corptrain_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// AttemptStore 尝试记录的持久化接口，由 repository.ExerciseAttemptRepository 实现。
// Mutate 必须以读-改-写的原子方式执行 fn，fn 返回错误时不得写入任何变更。
type AttemptStore interface {
	Create(ctx context.Context, attempt *model.ExerciseAttempt) error
	FindByID(ctx context.Context, id string) (*model.ExerciseAttempt, error)
	FindActive(ctx context.Context, exerciseID, studentID uint) (*model.ExerciseAttempt, error)
	ListByStudent(ctx context.Context, studentID, exerciseID uint) ([]model.ExerciseAttempt, error)
	Mutate(ctx context.Context, id string, fn func(a *model.ExerciseAttempt) error) (*model.ExerciseAttempt, error)
	Stats(ctx context.Context, exerciseID uint, start, end *time.Time) (*repository.AttemptStats, error)
}

// ExerciseCatalog 练习定义的只读来源
type ExerciseCatalog interface {
	GetExercise(ctx context.Context, id uint) (*model.Exercise, error)
}

type ExerciseAttemptService struct {
	Attempts AttemptStore
	Catalog  ExerciseCatalog
	// Now 可在测试中替换
	Now func() time.Time

	allowResubmission atomic.Bool
}

func NewExerciseAttemptService(attempts AttemptStore, catalog ExerciseCatalog, cfg *config.Config) *ExerciseAttemptService {
	s := &ExerciseAttemptService{
		Attempts: attempts,
		Catalog:  catalog,
		Now:      time.Now,
	}
	s.allowResubmission.Store(cfg.Grading.AllowResubmission)
	return s
}

// ApplyConfig 配置热更新回调，只更新评分策略
func (s *ExerciseAttemptService) ApplyConfig(cfg *config.Config) {
	prev := s.allowResubmission.Swap(cfg.Grading.AllowResubmission)
	if prev != cfg.Grading.AllowResubmission {
		logger.Log.Info("Grading policy updated", zap.Bool("allowResubmission", cfg.Grading.AllowResubmission))
	}
}

func (s *ExerciseAttemptService) AllowResubmission() bool {
	return s.allowResubmission.Load()
}

func (s *ExerciseAttemptService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// StartResult 开始或继续作答的结果；Exercise 来自尝试快照而不是实时读取
type StartResult struct {
	Attempt  *model.ExerciseAttempt
	Exercise model.ExerciseSnapshot
	Resumed  bool
}

// StartOrResume 返回学生在该练习下进行中的尝试，没有则按当前练习定义创建新的尝试。
// 已超时的进行中尝试先按超时结束，再创建新的尝试。
func (s *ExerciseAttemptService) StartOrResume(ctx context.Context, exerciseID, studentID uint) (res *StartResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "attempt.start",
		attribute.Int64("exercise.id", int64(exerciseID)),
		attribute.Int64("student.id", int64(studentID)))
	defer func() { tracing.EndSpan(span, err) }()

	active, err := s.Attempts.FindActive(ctx, exerciseID, studentID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		if !s.expired(active, s.now()) {
			monitoring.AttemptsStarted.WithLabelValues("resumed").Inc()
			return &StartResult{Attempt: active, Exercise: active.Snapshot.Data(), Resumed: true}, nil
		}
		if _, err := s.finalizeIfExpired(ctx, active); err != nil {
			return nil, err
		}
	}

	exercise, err := s.Catalog.GetExercise(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	if len(exercise.Items) == 0 {
		return nil, fmt.Errorf("%w: exercise %d has no items", util.ErrExerciseNotFound, exerciseID)
	}

	snap := model.NewExerciseSnapshot(exercise)
	attempt := &model.ExerciseAttempt{
		ExerciseID: exerciseID,
		StudentID:  studentID,
		Status:     model.AttemptInProgress,
		ActiveKey:  model.ActiveKeyFor(exerciseID, studentID),
		StartedAt:  s.now(),
		Snapshot:   datatypes.NewJSONType(snap),
		Answers:    []model.AnswerRecord{},
	}
	attempt.ID = model.GenerateUUID()

	if err := s.Attempts.Create(ctx, attempt); err != nil {
		// 并发创建时唯一索引拒绝后到者，返回先到者的尝试
		winner, findErr := s.Attempts.FindActive(ctx, exerciseID, studentID)
		if findErr == nil && winner != nil {
			monitoring.AttemptsStarted.WithLabelValues("resumed").Inc()
			return &StartResult{Attempt: winner, Exercise: winner.Snapshot.Data(), Resumed: true}, nil
		}
		return nil, err
	}

	monitoring.AttemptsStarted.WithLabelValues("new").Inc()
	logger.WithAttempt(attempt.ID, studentID).Info("Attempt started",
		zap.Uint("exerciseId", exerciseID),
		zap.Int("items", len(snap.Items)))
	return &StartResult{Attempt: attempt, Exercise: snap}, nil
}

// SubmitAnswer 判分并记录一道题的作答。允许重复提交时以最后一次为准。
// 若尝试已超时，先按超时结束尝试，再以 ErrAttemptAlreadyTerminal 拒绝本次提交。
func (s *ExerciseAttemptService) SubmitAnswer(ctx context.Context, attemptID string, studentID, itemID uint, answer json.RawMessage) (result *grading.EvaluationResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "attempt.submit_answer",
		attribute.String("attempt.id", attemptID),
		attribute.Int64("item.id", int64(itemID)))
	defer func() { tracing.EndSpan(span, err) }()

	now := s.now()
	allowResubmit := s.AllowResubmission()
	stored := normalizeAnswerPayload(answer)

	var (
		eval     grading.EvaluationResult
		timedOut bool
		itemType model.ExerciseType
	)
	attempt, err := s.Attempts.Mutate(ctx, attemptID, func(a *model.ExerciseAttempt) error {
		timedOut = false
		if a.StudentID != studentID {
			return util.ErrUnauthorized
		}
		if a.Status.Terminal() {
			return util.ErrAttemptAlreadyTerminal
		}
		if s.expired(a, now) {
			finalize(a, now, model.EndReasonTimeLimit)
			timedOut = true
			return nil
		}

		snap := a.Snapshot.Data()
		item, ok := snap.FindItem(itemID)
		if !ok {
			return fmt.Errorf("%w: item %d is not part of this attempt", util.ErrItemNotFound, itemID)
		}
		idx := a.FindAnswer(itemID)
		if idx >= 0 && !allowResubmit {
			return util.ErrItemAlreadyAnswered
		}

		res, err := grading.EvaluateRaw(grading.ItemFromSnapshot(snap.Type, item), answer)
		if err != nil {
			return err
		}
		eval = res
		itemType = snap.Type

		if idx >= 0 {
			rec := &a.Answers[idx]
			rec.Answer = stored
			rec.IsCorrect = res.IsCorrect
			rec.PointsEarned = res.PointsEarned
			rec.Explanation = res.Explanation
			rec.SubmittedAt = now
			return nil
		}
		a.Answers = append(a.Answers, model.AnswerRecord{
			AttemptID:    a.ID,
			ItemID:       itemID,
			Answer:       stored,
			IsCorrect:    res.IsCorrect,
			PointsEarned: res.PointsEarned,
			Explanation:  res.Explanation,
			SubmittedAt:  now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if timedOut {
		recordFinalized(attempt)
		return nil, fmt.Errorf("%w: time limit exceeded", util.ErrAttemptAlreadyTerminal)
	}

	monitoring.AnswersEvaluated.WithLabelValues(string(itemType), strconv.FormatBool(eval.IsCorrect)).Inc()
	logger.WithAttempt(attemptID, studentID).Debug("Answer recorded",
		zap.Uint("itemId", itemID),
		zap.Bool("correct", eval.IsCorrect))
	return &eval, nil
}

// GetAttempt 返回学生自己的尝试；已超时的进行中尝试会先被结束
func (s *ExerciseAttemptService) GetAttempt(ctx context.Context, attemptID string, studentID uint) (*model.ExerciseAttempt, error) {
	a, err := s.Attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.StudentID != studentID {
		return nil, util.ErrUnauthorized
	}
	return s.finalizeIfExpired(ctx, a)
}

// GetAttemptForReview 培训师查看任意尝试，不校验归属
func (s *ExerciseAttemptService) GetAttemptForReview(ctx context.Context, attemptID string) (*model.ExerciseAttempt, error) {
	a, err := s.Attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return s.finalizeIfExpired(ctx, a)
}

// ListAttempts 学生在某练习下的全部尝试，按开始时间倒序
func (s *ExerciseAttemptService) ListAttempts(ctx context.Context, studentID, exerciseID uint) ([]model.ExerciseAttempt, error) {
	attempts, err := s.Attempts.ListByStudent(ctx, studentID, exerciseID)
	if err != nil {
		return nil, err
	}
	for i := range attempts {
		a, err := s.finalizeIfExpired(ctx, &attempts[i])
		if err != nil {
			return nil, err
		}
		attempts[i] = *a
	}
	return attempts, nil
}

func (s *ExerciseAttemptService) GetAttemptStats(ctx context.Context, exerciseID uint, start, end *time.Time) (*repository.AttemptStats, error) {
	return s.Attempts.Stats(ctx, exerciseID, start, end)
}

// ElapsedSeconds now - startedAt，不小于 0
func ElapsedSeconds(a *model.ExerciseAttempt, now time.Time) int {
	d := now.Sub(a.StartedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// expired 快照带有正数时限且已用时间达到时限
func (s *ExerciseAttemptService) expired(a *model.ExerciseAttempt, now time.Time) bool {
	if a.Status != model.AttemptInProgress {
		return false
	}
	limit := a.Snapshot.Data().TimeLimitSeconds
	if limit == nil || *limit <= 0 {
		return false
	}
	return ElapsedSeconds(a, now) >= *limit
}

// normalizeAnswerPayload 空提交按 JSON null 保存
func normalizeAnswerPayload(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(append([]byte(nil), raw...))
}
