package repository

import (
	"context"
	"errors"

	"corptrain_backend/internal/model"
	"corptrain_backend/internal/util"

	"gorm.io/gorm"
)

type ExerciseRepository struct {
	DB *gorm.DB
}

func NewExerciseRepository(db *gorm.DB) *ExerciseRepository {
	return &ExerciseRepository{DB: db}
}

// Create 在同一事务中写入练习及其题目
func (r *ExerciseRepository) Create(ctx context.Context, exercise *model.Exercise) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := exercise.Items
		exercise.Items = nil
		if err := tx.Create(exercise).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].ExerciseID = exercise.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		exercise.Items = items
		return nil
	})
}

// FindWithItems 读取练习及按 OrderIndex 排序的题目
func (r *ExerciseRepository) FindWithItems(ctx context.Context, id uint) (*model.Exercise, error) {
	var e model.Exercise
	err := r.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index asc")
		}).
		First(&e, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrExerciseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *ExerciseRepository) ListByCreator(ctx context.Context, creatorID uint, page, limit int) ([]model.Exercise, int64, error) {
	var exercises []model.Exercise
	var total int64
	query := r.DB.WithContext(ctx).Model(&model.Exercise{})
	if creatorID > 0 {
		query = query.Where("creator_id = ?", creatorID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&exercises).Error
	return exercises, total, err
}

// ChangeType 修改题型；已有题目时拒绝，因为题目内容与答案结构依赖题型
func (r *ExerciseRepository) ChangeType(ctx context.Context, id uint, t model.ExerciseType) (*model.Exercise, error) {
	var e model.Exercise
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&e, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrExerciseNotFound
			}
			return err
		}
		if e.Type == t {
			return nil
		}
		var items int64
		if err := tx.Model(&model.ExerciseItem{}).Where("exercise_id = ?", id).Count(&items).Error; err != nil {
			return err
		}
		if items > 0 {
			return util.ErrExerciseTypeLocked
		}
		e.Type = t
		return tx.Model(&e).Update("type", t).Error
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}
