package grading

import (
	"encoding/json"
	"fmt"
	"strings"

	"corptrain_backend/internal/model"
	"corptrain_backend/internal/util"
)

// Item 判分所需的题目视图
type Item struct {
	ID            uint
	Type          model.ExerciseType
	Content       json.RawMessage
	CorrectAnswer json.RawMessage
	Points        int
	Explanation   string
}

// ItemFromSnapshot 由尝试快照中的题目构造判分视图
func ItemFromSnapshot(t model.ExerciseType, it model.ItemSnapshot) Item {
	return Item{
		ID:            it.ID,
		Type:          t,
		Content:       it.Content,
		CorrectAnswer: it.CorrectAnswer,
		Points:        it.Points,
		Explanation:   it.Explanation,
	}
}

// EvaluationResult 单题判分结果，整题全对才得分
type EvaluationResult struct {
	ItemID       uint   `json:"itemId"`
	IsCorrect    bool   `json:"isCorrect"`
	PointsEarned int    `json:"pointsEarned"`
	MaxPoints    int    `json:"maxPoints"`
	Explanation  string `json:"explanation,omitempty"`
}

// EvaluateRaw 解析答案键与学生提交后判分
func EvaluateRaw(item Item, submitted json.RawMessage) (EvaluationResult, error) {
	ans, err := DecodeAnswer(item.Type, submitted)
	if err != nil {
		return EvaluationResult{}, err
	}
	return Evaluate(item, ans)
}

// Evaluate 对单题判分。相同输入总是得到相同结果。
func Evaluate(item Item, submitted Answer) (EvaluationResult, error) {
	points := item.Points
	if points <= 0 {
		points = 1
	}
	res := EvaluationResult{ItemID: item.ID, MaxPoints: points}

	if submitted == nil || submitted.Type() != item.Type {
		return res, fmt.Errorf("%w: %s expects %s", util.ErrInvalidAnswerShape, item.Type, shapeOf(item.Type))
	}

	key, err := DecodeAnswer(item.Type, item.CorrectAnswer)
	if err != nil {
		return res, fmt.Errorf("item %d: %w", item.ID, util.ErrInvalidAnswerKey)
	}

	var (
		correct bool
		note    string
	)
	if submitted.Empty() {
		note = "no answer submitted"
	} else {
		switch k := key.(type) {
		case MultipleChoiceAnswer:
			correct, note = matchChoice(k, submitted.(MultipleChoiceAnswer), item.Content)
		case TrueFalseAnswer:
			correct = submitted.(TrueFalseAnswer).Value == k.Value
		case FillBlanksAnswer:
			correct, note = matchBlanks(k.Blanks, submitted.(FillBlanksAnswer).Blanks)
		case MatchingAnswer:
			correct, note = matchPairs(k.Pairs, submitted.(MatchingAnswer).Pairs)
		case DragDropAnswer:
			correct, note = matchZones(k.Zones, submitted.(DragDropAnswer).Zones)
		case ReorderAnswer:
			correct, note = matchOrder(k.Order, submitted.(ReorderAnswer).Order)
		case ListeningAnswer:
			correct = normalizedEqual(k.Value, submitted.(ListeningAnswer).Value)
		default:
			return res, fmt.Errorf("%w: %q", util.ErrUnknownExerciseType, item.Type)
		}
	}

	res.IsCorrect = correct
	if correct {
		res.PointsEarned = points
	}
	res.Explanation = item.Explanation
	if res.Explanation == "" && !correct {
		res.Explanation = note
	}
	return res, nil
}

func normalizedEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func matchChoice(key, got MultipleChoiceAnswer, content json.RawMessage) (bool, string) {
	if got.Value == key.Value {
		return true, ""
	}
	if opts := offeredOptions(content); len(opts) > 0 {
		if _, ok := opts[got.Value]; !ok {
			return false, fmt.Sprintf("%q is not one of the offered options", got.Value)
		}
	}
	return false, ""
}

// offeredOptions 读取选择题 content.options，选项可以是字符串或带 value/id 的对象
func offeredOptions(content json.RawMessage) map[string]struct{} {
	var c struct {
		Options []json.RawMessage `json:"options"`
	}
	if len(content) == 0 || json.Unmarshal(content, &c) != nil {
		return nil
	}
	out := make(map[string]struct{}, len(c.Options))
	for _, raw := range c.Options {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			out[s] = struct{}{}
			continue
		}
		var obj struct {
			Value string `json:"value"`
			ID    string `json:"id"`
		}
		if json.Unmarshal(raw, &obj) == nil {
			if obj.Value != "" {
				out[obj.Value] = struct{}{}
			} else if obj.ID != "" {
				out[obj.ID] = struct{}{}
			}
		}
	}
	return out
}

func matchBlanks(key, got []string) (bool, string) {
	if len(key) != len(got) {
		return false, fmt.Sprintf("expected %d blanks, got %d", len(key), len(got))
	}
	wrong := 0
	for i := range key {
		if !normalizedEqual(key[i], got[i]) {
			wrong++
		}
	}
	if wrong > 0 {
		return false, fmt.Sprintf("%d of %d blanks are incorrect", wrong, len(key))
	}
	return true, ""
}

func matchPairs(key, got []MatchPair) (bool, string) {
	want := make(map[MatchPair]struct{}, len(key))
	for _, p := range key {
		want[p] = struct{}{}
	}
	if len(got) != len(want) {
		return false, fmt.Sprintf("expected %d pairs, got %d", len(want), len(got))
	}
	seen := make(map[MatchPair]struct{}, len(got))
	for _, p := range got {
		if _, ok := want[p]; !ok {
			return false, "one or more pairs are incorrect"
		}
		if _, dup := seen[p]; dup {
			return false, "duplicate pair submitted"
		}
		seen[p] = struct{}{}
	}
	return true, ""
}

// matchZones 只接受答案键中声明过的区域；答案键中为空的区域可以省略，区域内标签顺序无关
func matchZones(key, got map[string][]string) (bool, string) {
	for zone := range got {
		if _, ok := key[zone]; !ok {
			return false, fmt.Sprintf("zone %q is not part of this item", zone)
		}
	}
	want := nonEmptyZones(key)
	have := nonEmptyZones(got)
	if len(want) != len(have) {
		return false, fmt.Sprintf("expected %d zones, got %d", len(want), len(have))
	}
	for zone, labels := range want {
		placed, ok := have[zone]
		if !ok {
			return false, fmt.Sprintf("zone %q is missing", zone)
		}
		if !sameSet(labels, placed) {
			return false, fmt.Sprintf("zone %q has incorrect items", zone)
		}
	}
	return true, ""
}

func nonEmptyZones(zones map[string][]string) map[string][]string {
	out := make(map[string][]string, len(zones))
	for zone, labels := range zones {
		if len(labels) > 0 {
			out[zone] = labels
		}
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, s := range a {
		counts[s]++
	}
	for _, s := range b {
		counts[s]--
		if counts[s] < 0 {
			return false
		}
	}
	return true
}

func matchOrder(key, got []string) (bool, string) {
	if len(key) != len(got) {
		return false, fmt.Sprintf("expected %d items, got %d", len(key), len(got))
	}
	for i := range key {
		if key[i] != got[i] {
			return false, fmt.Sprintf("position %d is out of order", i+1)
		}
	}
	return true, ""
}
