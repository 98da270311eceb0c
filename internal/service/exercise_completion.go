package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"corptrain_backend/internal/grading"
	"corptrain_backend/internal/model"
	"corptrain_backend/internal/util"
	"corptrain_backend/pkg/logger"
	"corptrain_backend/pkg/monitoring"
	"corptrain_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CompletionResult 完成后的成绩，字段在完成时写入一次
type CompletionResult struct {
	AttemptID    string    `json:"attemptId"`
	Score        int       `json:"score"`
	MaxScore     int       `json:"maxScore"`
	Percentage   int       `json:"percentage"`
	Passed       bool      `json:"passed"`
	PassingScore int       `json:"passingScore"`
	TimeSpent    int       `json:"timeSpent"`
	CompletedAt  time.Time `json:"completedAt"`
	EndReason    string    `json:"endReason"`
}

func completionResultOf(a *model.ExerciseAttempt) *CompletionResult {
	res := &CompletionResult{
		AttemptID:    a.ID,
		Score:        a.Score,
		MaxScore:     a.MaxScore,
		Percentage:   a.Percentage,
		Passed:       a.Passed,
		PassingScore: a.PassingScore,
		TimeSpent:    a.TimeSpentSeconds,
		EndReason:    a.EndReason,
	}
	if a.CompletedAt != nil {
		res.CompletedAt = *a.CompletedAt
	}
	return res
}

// finalize 汇总成绩并把尝试置为 COMPLETED
func finalize(a *model.ExerciseAttempt, now time.Time, reason string) {
	sum := grading.Aggregate(a.Snapshot.Data(), a.Answers)

	completedAt := now
	a.Status = model.AttemptCompleted
	a.ActiveKey = nil
	a.CompletedAt = &completedAt
	a.EndReason = reason
	a.Score = sum.Score
	a.MaxScore = sum.MaxScore
	a.Percentage = sum.Percentage
	a.Passed = sum.Passed
	a.PassingScore = sum.PassingScore
	a.TimeSpentSeconds = ElapsedSeconds(a, completedAt)
}

func recordFinalized(a *model.ExerciseAttempt) {
	monitoring.AttemptsFinalized.WithLabelValues(string(a.Status), a.EndReason).Inc()
	logger.WithAttempt(a.ID, a.StudentID).Info("Attempt finalized",
		zap.String("status", string(a.Status)),
		zap.String("reason", a.EndReason),
		zap.Int("score", a.Score),
		zap.Int("maxScore", a.MaxScore),
		zap.Bool("passed", a.Passed))
}

// Complete 结束尝试并返回成绩。已完成时原样返回已保存的成绩；已放弃时返回 ErrAttemptAlreadyTerminal。
// 超时的尝试同样正常返回成绩，EndReason 为 time_limit。
func (s *ExerciseAttemptService) Complete(ctx context.Context, attemptID string, studentID uint) (res *CompletionResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "attempt.complete", attribute.String("attempt.id", attemptID))
	defer func() { tracing.EndSpan(span, err) }()

	current, err := s.Attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if current.StudentID != studentID {
		return nil, util.ErrUnauthorized
	}
	switch current.Status {
	case model.AttemptCompleted:
		return completionResultOf(current), nil
	case model.AttemptAbandoned:
		return nil, fmt.Errorf("%w: attempt was abandoned", util.ErrAttemptAlreadyTerminal)
	}

	now := s.now()
	var changed bool
	attempt, err := s.Attempts.Mutate(ctx, attemptID, func(a *model.ExerciseAttempt) error {
		changed = false
		switch a.Status {
		case model.AttemptCompleted:
			return nil
		case model.AttemptAbandoned:
			return fmt.Errorf("%w: attempt was abandoned", util.ErrAttemptAlreadyTerminal)
		}
		reason := model.EndReasonCompleted
		if s.expired(a, now) {
			reason = model.EndReasonTimeLimit
		}
		finalize(a, now, reason)
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		recordFinalized(attempt)
	}
	return completionResultOf(attempt), nil
}

// Abandon 放弃尝试，不计算成绩。重复放弃为幂等操作，已完成时返回 ErrAttemptAlreadyTerminal。
// 已超时的尝试按超时完成并返回完成后的尝试。
func (s *ExerciseAttemptService) Abandon(ctx context.Context, attemptID string, studentID uint) (attempt *model.ExerciseAttempt, err error) {
	ctx, span := tracing.StartSpan(ctx, "attempt.abandon", attribute.String("attempt.id", attemptID))
	defer func() { tracing.EndSpan(span, err) }()

	current, err := s.Attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if current.StudentID != studentID {
		return nil, util.ErrUnauthorized
	}
	switch current.Status {
	case model.AttemptAbandoned:
		return current, nil
	case model.AttemptCompleted:
		return nil, fmt.Errorf("%w: attempt was completed", util.ErrAttemptAlreadyTerminal)
	}

	now := s.now()
	var changed bool
	attempt, err = s.Attempts.Mutate(ctx, attemptID, func(a *model.ExerciseAttempt) error {
		changed = false
		switch a.Status {
		case model.AttemptAbandoned:
			return nil
		case model.AttemptCompleted:
			return fmt.Errorf("%w: attempt was completed", util.ErrAttemptAlreadyTerminal)
		}
		changed = true
		if s.expired(a, now) {
			finalize(a, now, model.EndReasonTimeLimit)
			return nil
		}
		abandonedAt := now
		a.Status = model.AttemptAbandoned
		a.ActiveKey = nil
		a.CompletedAt = &abandonedAt
		a.EndReason = model.EndReasonAbandoned
		a.TimeSpentSeconds = ElapsedSeconds(a, abandonedAt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		recordFinalized(attempt)
	}
	return attempt, nil
}

// finalizeIfExpired 读路径上的超时检查；未超时时原样返回
func (s *ExerciseAttemptService) finalizeIfExpired(ctx context.Context, a *model.ExerciseAttempt) (*model.ExerciseAttempt, error) {
	now := s.now()
	if !s.expired(a, now) {
		return a, nil
	}

	var changed bool
	updated, err := s.Attempts.Mutate(ctx, a.ID, func(cur *model.ExerciseAttempt) error {
		changed = false
		if !s.expired(cur, now) {
			return errNotExpired
		}
		finalize(cur, now, model.EndReasonTimeLimit)
		changed = true
		return nil
	})
	if errors.Is(err, errNotExpired) {
		// 其他请求已先结束该尝试
		return s.Attempts.FindByID(ctx, a.ID)
	}
	if err != nil {
		return nil, err
	}
	if changed {
		recordFinalized(updated)
	}
	return updated, nil
}

var errNotExpired = errors.New("attempt no longer expired")
