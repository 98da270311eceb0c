package repository

import (
	"context"
	"errors"
	"time"

	"corptrain_backend/internal/model"
	"corptrain_backend/internal/util"
	"corptrain_backend/pkg/logger"
	"corptrain_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// errVersionConflict 乐观锁校验失败，由 Mutate 内部重试
var errVersionConflict = errors.New("attempt version conflict")

type ExerciseAttemptRepository struct {
	DB         *gorm.DB
	MaxRetries int
}

func NewExerciseAttemptRepository(db *gorm.DB, maxRetries int) *ExerciseAttemptRepository {
	return &ExerciseAttemptRepository{DB: db, MaxRetries: maxRetries}
}

func preloadAnswers(db *gorm.DB) *gorm.DB {
	return db.Preload("Answers", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	})
}

func (r *ExerciseAttemptRepository) Create(ctx context.Context, attempt *model.ExerciseAttempt) error {
	if attempt.Version == 0 {
		attempt.Version = 1
	}
	return r.DB.WithContext(ctx).Omit("Answers").Create(attempt).Error
}

func (r *ExerciseAttemptRepository) FindByID(ctx context.Context, id string) (*model.ExerciseAttempt, error) {
	var a model.ExerciseAttempt
	err := preloadAnswers(r.DB.WithContext(ctx)).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindActive 返回学生在该练习下进行中的尝试，没有时返回 (nil, nil)
func (r *ExerciseAttemptRepository) FindActive(ctx context.Context, exerciseID, studentID uint) (*model.ExerciseAttempt, error) {
	var a model.ExerciseAttempt
	err := preloadAnswers(r.DB.WithContext(ctx)).
		Where("active_key = ?", *model.ActiveKeyFor(exerciseID, studentID)).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ExerciseAttemptRepository) ListByStudent(ctx context.Context, studentID, exerciseID uint) ([]model.ExerciseAttempt, error) {
	var attempts []model.ExerciseAttempt
	query := r.DB.WithContext(ctx).Where("student_id = ?", studentID)
	if exerciseID > 0 {
		query = query.Where("exercise_id = ?", exerciseID)
	}
	err := preloadAnswers(query).Order("started_at desc").Find(&attempts).Error
	return attempts, err
}

// answerState 作答记录中可被 fn 修改的字段
type answerState struct {
	Answer       string
	IsCorrect    bool
	PointsEarned int
	Explanation  string
	SubmittedAt  time.Time
}

func stateOf(ans *model.AnswerRecord) answerState {
	return answerState{
		Answer:       string(ans.Answer),
		IsCorrect:    ans.IsCorrect,
		PointsEarned: ans.PointsEarned,
		Explanation:  ans.Explanation,
		SubmittedAt:  ans.SubmittedAt,
	}
}

func (s answerState) equal(o answerState) bool {
	return s.Answer == o.Answer &&
		s.IsCorrect == o.IsCorrect &&
		s.PointsEarned == o.PointsEarned &&
		s.Explanation == o.Explanation &&
		s.SubmittedAt.Equal(o.SubmittedAt)
}

// Mutate 读取-修改-写回一条尝试记录。
// 写回在事务中进行并校验 version，若被其他实例抢先修改则重新读取并再次调用 fn，最多重试 MaxRetries 次。
// fn 返回错误时不写入任何内容，错误原样返回。
func (r *ExerciseAttemptRepository) Mutate(ctx context.Context, id string, fn func(a *model.ExerciseAttempt) error) (*model.ExerciseAttempt, error) {
	for try := 0; ; try++ {
		out, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}

		before := make(map[uint]answerState, len(out.Answers))
		for i := range out.Answers {
			before[out.Answers[i].ID] = stateOf(&out.Answers[i])
		}

		prev := out.Version
		if err := fn(out); err != nil {
			return nil, err
		}
		out.Version = prev + 1

		err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var activeKey, completedAt interface{}
			if out.ActiveKey != nil {
				activeKey = *out.ActiveKey
			}
			if out.CompletedAt != nil {
				completedAt = *out.CompletedAt
			}

			res := tx.Model(&model.ExerciseAttempt{}).
				Where("id = ? AND version = ?", out.ID, prev).
				Updates(map[string]interface{}{
					"status":             string(out.Status),
					"active_key":         activeKey,
					"completed_at":       completedAt,
					"end_reason":         out.EndReason,
					"score":              out.Score,
					"max_score":          out.MaxScore,
					"percentage":         out.Percentage,
					"passed":             out.Passed,
					"passing_score":      out.PassingScore,
					"time_spent_seconds": out.TimeSpentSeconds,
					"version":            out.Version,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errVersionConflict
			}

			// 只写新增或内容有变化的记录
			for i := range out.Answers {
				ans := &out.Answers[i]
				if old, ok := before[ans.ID]; ok && ans.ID != 0 && old.equal(stateOf(ans)) {
					continue
				}
				ans.AttemptID = out.ID
				if err := tx.Save(ans).Error; err != nil {
					return err
				}
			}
			return nil
		})

		if errors.Is(err, errVersionConflict) {
			monitoring.AttemptConflicts.Inc()
			if try < r.MaxRetries {
				logger.Log.Debug("attempt version conflict, retrying", zap.String("attemptId", id), zap.Int("try", try+1))
				continue
			}
			return nil, util.ErrConcurrentUpdate
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

// AttemptStats 练习维度的作答统计
type AttemptStats struct {
	TotalAttempts     int64   `json:"totalAttempts"`
	CompletedAttempts int64   `json:"completedAttempts"`
	AbandonedAttempts int64   `json:"abandonedAttempts"`
	AvgPercentage     float64 `json:"avgPercentage"`
	AvgTimeSeconds    float64 `json:"avgTimeSeconds"`
	PassRate          float64 `json:"passRate"`
}

func (r *ExerciseAttemptRepository) Stats(ctx context.Context, exerciseID uint, start, end *time.Time) (*AttemptStats, error) {
	base := func() *gorm.DB {
		q := r.DB.WithContext(ctx).Model(&model.ExerciseAttempt{}).Where("exercise_id = ?", exerciseID)
		if start != nil {
			q = q.Where("started_at >= ?", *start)
		}
		if end != nil {
			q = q.Where("started_at <= ?", *end)
		}
		return q
	}

	stats := &AttemptStats{}
	if err := base().Count(&stats.TotalAttempts).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", model.AttemptCompleted).Count(&stats.CompletedAttempts).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", model.AttemptAbandoned).Count(&stats.AbandonedAttempts).Error; err != nil {
		return nil, err
	}
	if stats.CompletedAttempts == 0 {
		return stats, nil
	}

	var agg struct {
		AvgPercentage  float64
		AvgTimeSeconds float64
		PassedCount    int64
	}
	err := base().Where("status = ?", model.AttemptCompleted).
		Select("AVG(percentage) AS avg_percentage, AVG(time_spent_seconds) AS avg_time_seconds, SUM(CASE WHEN passed THEN 1 ELSE 0 END) AS passed_count").
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	stats.AvgPercentage = agg.AvgPercentage
	stats.AvgTimeSeconds = agg.AvgTimeSeconds
	stats.PassRate = float64(agg.PassedCount) / float64(stats.CompletedAttempts)
	return stats, nil
}
