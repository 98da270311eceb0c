package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptCompleted  AttemptStatus = "COMPLETED"
	AttemptAbandoned  AttemptStatus = "ABANDONED"
)

// Terminal 已完成或已放弃的尝试不再接受任何变更
func (s AttemptStatus) Terminal() bool {
	return s == AttemptCompleted || s == AttemptAbandoned
}

const (
	EndReasonCompleted = "completed"
	EndReasonTimeLimit = "time_limit"
	EndReasonAbandoned = "abandoned"
)

// ExerciseSnapshot 开始作答时复制的练习定义，之后的评分只读取快照
type ExerciseSnapshot struct {
	ExerciseID          uint           `json:"exerciseId"`
	Type                ExerciseType   `json:"type"`
	Title               string         `json:"title"`
	Language            string         `json:"language"`
	CEFRLevel           string         `json:"cefrLevel,omitempty"`
	TimeLimitSeconds    *int           `json:"timeLimitSeconds,omitempty"`
	PassingScorePercent int            `json:"passingScorePercent"`
	Items               []ItemSnapshot `json:"items"`
}

type ItemSnapshot struct {
	ID            uint            `json:"id"`
	OrderIndex    int             `json:"orderIndex"`
	Content       json.RawMessage `json:"content"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	Points        int             `json:"points"`
	Hint          string          `json:"hint,omitempty"`
	Explanation   string          `json:"explanation,omitempty"`
	MediaRef      string          `json:"mediaRef,omitempty"`
}

// NewExerciseSnapshot 复制练习及其题目；题目需已按 OrderIndex 排序
func NewExerciseSnapshot(e *Exercise) ExerciseSnapshot {
	snap := ExerciseSnapshot{
		ExerciseID:          e.ID,
		Type:                e.Type,
		Title:               e.Title,
		Language:            e.Language,
		CEFRLevel:           e.CEFRLevel,
		PassingScorePercent: e.PassingScorePercent,
		Items:               make([]ItemSnapshot, 0, len(e.Items)),
	}
	if e.TimeLimitSeconds != nil {
		limit := *e.TimeLimitSeconds
		snap.TimeLimitSeconds = &limit
	}
	for _, it := range e.Items {
		points := it.Points
		if points <= 0 {
			points = 1
		}
		snap.Items = append(snap.Items, ItemSnapshot{
			ID:            it.ID,
			OrderIndex:    it.OrderIndex,
			Content:       append(json.RawMessage(nil), it.Content...),
			CorrectAnswer: append(json.RawMessage(nil), it.CorrectAnswer...),
			Points:        points,
			Hint:          it.Hint,
			Explanation:   it.Explanation,
			MediaRef:      it.MediaRef,
		})
	}
	return snap
}

func (s ExerciseSnapshot) FindItem(itemID uint) (ItemSnapshot, bool) {
	for _, it := range s.Items {
		if it.ID == itemID {
			return it, true
		}
	}
	return ItemSnapshot{}, false
}

// swagger:model ExerciseAttempt
type ExerciseAttempt struct {
	UUIDBase

	ExerciseID uint          `gorm:"not null;index:idx_attempt_exercise_student" json:"exerciseId"`
	StudentID  uint          `gorm:"not null;index:idx_attempt_exercise_student" json:"studentId"`
	Status     AttemptStatus `gorm:"size:16;not null;index" json:"status"`
	// 进行中时为 "<exerciseId>:<studentId>"，结束后置空；唯一索引保证同一学生同一练习只有一个进行中的尝试
	ActiveKey   *string    `gorm:"size:64;uniqueIndex" json:"-"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	EndReason   string     `gorm:"size:16" json:"endReason,omitempty"`

	Snapshot datatypes.JSONType[ExerciseSnapshot] `json:"-"`

	// 以下字段仅在完成时写入一次
	Score            int  `json:"score"`
	MaxScore         int  `json:"maxScore"`
	Percentage       int  `json:"percentage"`
	Passed           bool `json:"passed"`
	PassingScore     int  `json:"passingScore"`
	TimeSpentSeconds int  `json:"timeSpentSeconds"`

	Version int `gorm:"not null" json:"-"`

	Answers []AnswerRecord `gorm:"foreignKey:AttemptID" json:"answers"`
}

func (ExerciseAttempt) TableName() string {
	return "exercise_attempts"
}

func ActiveKeyFor(exerciseID, studentID uint) *string {
	k := fmt.Sprintf("%d:%d", exerciseID, studentID)
	return &k
}

// FindAnswer 返回指定题目的作答记录下标，不存在时为 -1
func (a *ExerciseAttempt) FindAnswer(itemID uint) int {
	for i := range a.Answers {
		if a.Answers[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// swagger:model AnswerRecord
type AnswerRecord struct {
	BaseModel

	AttemptID    string         `gorm:"type:varchar(36);not null;uniqueIndex:idx_answer_attempt_item" json:"attemptId"`
	ItemID       uint           `gorm:"not null;uniqueIndex:idx_answer_attempt_item" json:"itemId"`
	Answer       datatypes.JSON `json:"answer"`
	IsCorrect    bool           `json:"isCorrect"`
	PointsEarned int            `json:"pointsEarned"`
	Explanation  string         `gorm:"type:text" json:"explanation,omitempty"`
	SubmittedAt  time.Time      `json:"submittedAt"`
}

func (AnswerRecord) TableName() string {
	return "exercise_answer_records"
}
