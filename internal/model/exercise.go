package model

import (
	"gorm.io/datatypes"
)

// ExerciseType 练习题型，创建题目后不可再修改
type ExerciseType string

const (
	ExerciseMultipleChoice ExerciseType = "MULTIPLE_CHOICE"
	ExerciseTrueFalse      ExerciseType = "TRUE_FALSE"
	ExerciseFillBlanks     ExerciseType = "FILL_BLANKS"
	ExerciseMatching       ExerciseType = "MATCHING"
	ExerciseDragDrop       ExerciseType = "DRAG_DROP"
	ExerciseReorder        ExerciseType = "REORDER"
	ExerciseListening      ExerciseType = "LISTENING"
)

// ExerciseTypes 全部题型
var ExerciseTypes = []ExerciseType{
	ExerciseMultipleChoice,
	ExerciseTrueFalse,
	ExerciseFillBlanks,
	ExerciseMatching,
	ExerciseDragDrop,
	ExerciseReorder,
	ExerciseListening,
}

func (t ExerciseType) Valid() bool {
	for _, v := range ExerciseTypes {
		if v == t {
			return true
		}
	}
	return false
}

// swagger:model Exercise
type Exercise struct {
	BaseModel

	CreatorID           uint         `gorm:"index" json:"creatorId"`
	Title               string       `gorm:"size:255;not null" json:"title"`
	Type                ExerciseType `gorm:"size:32;not null;index" json:"type"`
	Language            string       `gorm:"size:16" json:"language"`
	CEFRLevel           string       `gorm:"size:4" json:"cefrLevel,omitempty"` // A1..C2，仅用于分类
	TimeLimitSeconds    *int         `json:"timeLimitSeconds,omitempty"`
	PassingScorePercent int          `gorm:"default:60" json:"passingScorePercent"`

	Items []ExerciseItem `gorm:"foreignKey:ExerciseID" json:"items,omitempty"`
}

func (Exercise) TableName() string {
	return "exercises"
}

// swagger:model ExerciseItem
type ExerciseItem struct {
	BaseModel

	ExerciseID    uint           `gorm:"not null;uniqueIndex:idx_exercise_item_order" json:"exerciseId"`
	OrderIndex    int            `gorm:"not null;uniqueIndex:idx_exercise_item_order" json:"orderIndex"`
	Content       datatypes.JSON `json:"content"`
	CorrectAnswer datatypes.JSON `json:"correctAnswer,omitempty"`
	Points        int            `gorm:"default:1" json:"points"`
	Hint          string         `gorm:"type:text" json:"hint,omitempty"`
	Explanation   string         `gorm:"type:text" json:"explanation,omitempty"`
	MediaRef      string         `gorm:"size:255" json:"mediaRef,omitempty"` // 听力音频等媒体对象名
}

func (ExerciseItem) TableName() string {
	return "exercise_items"
}
