package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"corptrain_backend/internal/grading"
	"corptrain_backend/internal/model"
	"corptrain_backend/internal/util"
	"corptrain_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const exerciseCacheKeyPrefix = "exercise:definition:"

// ExerciseStore 练习的持久化接口，由 repository.ExerciseRepository 实现
type ExerciseStore interface {
	Create(ctx context.Context, exercise *model.Exercise) error
	FindWithItems(ctx context.Context, id uint) (*model.Exercise, error)
	ListByCreator(ctx context.Context, creatorID uint, page, limit int) ([]model.Exercise, int64, error)
	ChangeType(ctx context.Context, id uint, t model.ExerciseType) (*model.Exercise, error)
}

type ExerciseCatalogService struct {
	Repo     ExerciseStore
	Redis    *redis.Client
	Storage  *StorageService
	CacheTTL time.Duration
}

func NewExerciseCatalogService(repo ExerciseStore, rdb *redis.Client, storage *StorageService, cacheTTL time.Duration) *ExerciseCatalogService {
	return &ExerciseCatalogService{
		Repo:     repo,
		Redis:    rdb,
		Storage:  storage,
		CacheTTL: cacheTTL,
	}
}

func exerciseCacheKey(id uint) string {
	return exerciseCacheKeyPrefix + strconv.FormatUint(uint64(id), 10)
}

// GetExercise 返回练习及其全部题目（含答案键）。启用 Redis 时先读缓存。
func (s *ExerciseCatalogService) GetExercise(ctx context.Context, id uint) (*model.Exercise, error) {
	if s.Redis != nil && s.CacheTTL > 0 {
		val, err := s.Redis.Get(ctx, exerciseCacheKey(id)).Bytes()
		switch {
		case err == nil:
			var cached model.Exercise
			if jsonErr := json.Unmarshal(val, &cached); jsonErr == nil {
				return &cached, nil
			}
			logger.Log.Warn("Discarding unreadable exercise cache entry", zap.Uint("exerciseId", id))
		case !errors.Is(err, redis.Nil):
			logger.Log.Warn("Exercise cache read failed", zap.Uint("exerciseId", id), zap.Error(err))
		}
	}

	exercise, err := s.Repo.FindWithItems(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.Redis != nil && s.CacheTTL > 0 {
		if data, err := json.Marshal(exercise); err == nil {
			if err := s.Redis.Set(ctx, exerciseCacheKey(id), data, s.CacheTTL).Err(); err != nil {
				logger.Log.Warn("Exercise cache write failed", zap.Uint("exerciseId", id), zap.Error(err))
			}
		}
	}
	return exercise, nil
}

func (s *ExerciseCatalogService) invalidate(ctx context.Context, id uint) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(ctx, exerciseCacheKey(id)).Err(); err != nil {
		logger.Log.Warn("Exercise cache invalidation failed", zap.Uint("exerciseId", id), zap.Error(err))
	}
}

type ExerciseItemRequest struct {
	OrderIndex    *int            `json:"orderIndex"`
	Content       json.RawMessage `json:"content"`
	CorrectAnswer json.RawMessage `json:"correctAnswer" binding:"required"`
	Points        int             `json:"points"`
	Hint          string          `json:"hint"`
	Explanation   string          `json:"explanation"`
	MediaRef      string          `json:"mediaRef"`
}

type ExerciseCreateRequest struct {
	Title               string                `json:"title" binding:"required"`
	Type                model.ExerciseType    `json:"type" binding:"required"`
	Language            string                `json:"language"`
	CEFRLevel           string                `json:"cefrLevel"`
	TimeLimitSeconds    *int                  `json:"timeLimitSeconds"`
	PassingScorePercent *int                  `json:"passingScorePercent"`
	Items               []ExerciseItemRequest `json:"items"`
}

// CreateExercise 保存练习及题目。每道题的答案键必须能按题型解析且非空。
func (s *ExerciseCatalogService) CreateExercise(ctx context.Context, creatorID uint, req ExerciseCreateRequest) (*model.Exercise, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", util.ErrUnknownExerciseType, req.Type)
	}
	if req.TimeLimitSeconds != nil && *req.TimeLimitSeconds <= 0 {
		return nil, fmt.Errorf("%w: timeLimitSeconds must be positive", util.ErrInvalidExercise)
	}
	passing := 60
	if req.PassingScorePercent != nil {
		passing = *req.PassingScorePercent
	}
	if passing < 0 || passing > 100 {
		return nil, fmt.Errorf("%w: passingScorePercent must be within 0..100", util.ErrInvalidExercise)
	}

	exercise := &model.Exercise{
		CreatorID:           creatorID,
		Title:               req.Title,
		Type:                req.Type,
		Language:            req.Language,
		CEFRLevel:           req.CEFRLevel,
		TimeLimitSeconds:    req.TimeLimitSeconds,
		PassingScorePercent: passing,
	}

	seen := make(map[int]bool, len(req.Items))
	for i, it := range req.Items {
		order := i
		if it.OrderIndex != nil {
			order = *it.OrderIndex
		}
		if seen[order] {
			return nil, fmt.Errorf("%w: duplicate orderIndex %d", util.ErrInvalidExercise, order)
		}
		seen[order] = true

		key, err := grading.DecodeAnswer(req.Type, it.CorrectAnswer)
		if err != nil || key.Empty() {
			return nil, fmt.Errorf("%w: item %d has no valid %s answer key", util.ErrInvalidExercise, order, req.Type)
		}

		points := it.Points
		if points <= 0 {
			points = 1
		}
		content := datatypes.JSON(it.Content)
		if len(content) == 0 {
			content = datatypes.JSON("{}")
		}
		exercise.Items = append(exercise.Items, model.ExerciseItem{
			OrderIndex:    order,
			Content:       content,
			CorrectAnswer: datatypes.JSON(it.CorrectAnswer),
			Points:        points,
			Hint:          it.Hint,
			Explanation:   it.Explanation,
			MediaRef:      it.MediaRef,
		})
	}

	if err := s.Repo.Create(ctx, exercise); err != nil {
		return nil, err
	}
	logger.Log.Info("Exercise created",
		zap.Uint("exerciseId", exercise.ID),
		zap.String("type", string(exercise.Type)),
		zap.Int("items", len(exercise.Items)))
	return exercise, nil
}

func (s *ExerciseCatalogService) ChangeType(ctx context.Context, id uint, t model.ExerciseType) (*model.Exercise, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", util.ErrUnknownExerciseType, t)
	}
	exercise, err := s.Repo.ChangeType(ctx, id, t)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return exercise, nil
}

func (s *ExerciseCatalogService) ListExercises(ctx context.Context, creatorID uint, page, limit int) ([]model.Exercise, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.Repo.ListByCreator(ctx, creatorID, page, limit)
}

// ExerciseView 学员可见的练习投影，不含答案键与解析
type ExerciseView struct {
	ID                  uint               `json:"id"`
	Type                model.ExerciseType `json:"type"`
	Title               string             `json:"title"`
	Language            string             `json:"language"`
	CEFRLevel           string             `json:"cefrLevel,omitempty"`
	TimeLimitSeconds    *int               `json:"timeLimitSeconds,omitempty"`
	PassingScorePercent int                `json:"passingScorePercent"`
	Items               []ItemView         `json:"items"`
}

type ItemView struct {
	ID         uint            `json:"id"`
	OrderIndex int             `json:"orderIndex"`
	Content    json.RawMessage `json:"content"`
	Points     int             `json:"points"`
	Hint       string          `json:"hint,omitempty"`
	MediaURL   string          `json:"mediaUrl,omitempty"`
}

// StudentView 由尝试快照生成学员视图；媒体地址解析失败时留空并记录日志
func (s *ExerciseCatalogService) StudentView(ctx context.Context, snap model.ExerciseSnapshot) ExerciseView {
	view := ExerciseView{
		ID:                  snap.ExerciseID,
		Type:                snap.Type,
		Title:               snap.Title,
		Language:            snap.Language,
		CEFRLevel:           snap.CEFRLevel,
		TimeLimitSeconds:    snap.TimeLimitSeconds,
		PassingScorePercent: snap.PassingScorePercent,
		Items:               make([]ItemView, 0, len(snap.Items)),
	}
	for _, it := range snap.Items {
		iv := ItemView{
			ID:         it.ID,
			OrderIndex: it.OrderIndex,
			Content:    it.Content,
			Points:     it.Points,
			Hint:       it.Hint,
		}
		if it.MediaRef != "" && s.Storage != nil {
			u, err := s.Storage.MediaURL(ctx, it.MediaRef)
			if err != nil {
				logger.Log.Warn("Failed to resolve media url", zap.String("ref", it.MediaRef), zap.Error(err))
			}
			iv.MediaURL = u
		}
		view.Items = append(view.Items, iv)
	}
	return view
}
