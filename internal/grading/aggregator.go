package grading

import (
	"math"

	"corptrain_backend/internal/model"
)

// Summary 一次尝试的最终成绩
type Summary struct {
	Score        int  `json:"score"`
	MaxScore     int  `json:"maxScore"`
	Percentage   int  `json:"percentage"`
	Passed       bool `json:"passed"`
	PassingScore int  `json:"passingScore"`
	Answered     int  `json:"answered"`
}

// Aggregate 汇总快照内全部题目的满分与已作答题目的得分。
// 未作答的题目计入满分、得分为 0；不属于快照的作答记录被忽略。
func Aggregate(snap model.ExerciseSnapshot, answers []model.AnswerRecord) Summary {
	sum := Summary{PassingScore: snap.PassingScorePercent}

	points := make(map[uint]int, len(snap.Items))
	for _, it := range snap.Items {
		p := it.Points
		if p <= 0 {
			p = 1
		}
		points[it.ID] = p
		sum.MaxScore += p
	}

	for _, a := range answers {
		limit, ok := points[a.ItemID]
		if !ok {
			continue
		}
		earned := a.PointsEarned
		if earned > limit {
			earned = limit
		}
		sum.Score += earned
		sum.Answered++
	}

	sum.Percentage = Percentage(sum.Score, sum.MaxScore)
	sum.Passed = sum.Percentage >= snap.PassingScorePercent
	return sum
}

// Percentage round(100*score/maxScore)，maxScore 为 0 时返回 0
func Percentage(score, maxScore int) int {
	if maxScore <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(score) / float64(maxScore)))
}
