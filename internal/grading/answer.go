// Package grading 实现各题型的判分规则与成绩汇总，不做任何 I/O。
package grading

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"corptrain_backend/internal/model"
	"corptrain_backend/internal/util"
)

// Answer 是七种题型作答内容的封闭集合，只有本包内的类型可以实现它。
// 答案键和学生提交使用同一套结构。
type Answer interface {
	Type() model.ExerciseType
	// Empty 未作答（null、空串、空数组等）
	Empty() bool
	sealed()
}

type MultipleChoiceAnswer struct {
	Value string
}

type TrueFalseAnswer struct {
	Value   bool
	Present bool
}

type FillBlanksAnswer struct {
	Blanks []string
}

type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

type MatchingAnswer struct {
	Pairs []MatchPair
}

type DragDropAnswer struct {
	Zones map[string][]string
}

type ReorderAnswer struct {
	Order []string
}

type ListeningAnswer struct {
	Value string
}

func (MultipleChoiceAnswer) Type() model.ExerciseType { return model.ExerciseMultipleChoice }
func (TrueFalseAnswer) Type() model.ExerciseType      { return model.ExerciseTrueFalse }
func (FillBlanksAnswer) Type() model.ExerciseType     { return model.ExerciseFillBlanks }
func (MatchingAnswer) Type() model.ExerciseType       { return model.ExerciseMatching }
func (DragDropAnswer) Type() model.ExerciseType       { return model.ExerciseDragDrop }
func (ReorderAnswer) Type() model.ExerciseType        { return model.ExerciseReorder }
func (ListeningAnswer) Type() model.ExerciseType      { return model.ExerciseListening }

func (a MultipleChoiceAnswer) Empty() bool { return strings.TrimSpace(a.Value) == "" }
func (a TrueFalseAnswer) Empty() bool      { return !a.Present }
func (a MatchingAnswer) Empty() bool       { return len(a.Pairs) == 0 }
func (a ReorderAnswer) Empty() bool        { return len(a.Order) == 0 }
func (a ListeningAnswer) Empty() bool      { return strings.TrimSpace(a.Value) == "" }

func (a FillBlanksAnswer) Empty() bool {
	for _, b := range a.Blanks {
		if strings.TrimSpace(b) != "" {
			return false
		}
	}
	return true
}

func (a DragDropAnswer) Empty() bool {
	for _, labels := range a.Zones {
		if len(labels) > 0 {
			return false
		}
	}
	return true
}

func (MultipleChoiceAnswer) sealed() {}
func (TrueFalseAnswer) sealed()      {}
func (FillBlanksAnswer) sealed()     {}
func (MatchingAnswer) sealed()       {}
func (DragDropAnswer) sealed()       {}
func (ReorderAnswer) sealed()        {}
func (ListeningAnswer) sealed()      {}

// shapeOf 用于错误信息中描述期望的 JSON 结构
func shapeOf(t model.ExerciseType) string {
	switch t {
	case model.ExerciseMultipleChoice, model.ExerciseListening:
		return "a string"
	case model.ExerciseTrueFalse:
		return "a boolean"
	case model.ExerciseFillBlanks, model.ExerciseReorder:
		return "an array of strings"
	case model.ExerciseMatching:
		return `an array of {"left","right"} pairs`
	case model.ExerciseDragDrop:
		return "an object mapping zone to an array of labels"
	}
	return "unknown"
}

// DecodeAnswer 按题型解析 JSON 作答内容。
// 结构不符时返回 util.ErrInvalidAnswerShape；null 或缺省解析为空作答，不报错。
func DecodeAnswer(t model.ExerciseType, raw json.RawMessage) (Answer, error) {
	trimmed := bytes.TrimSpace(raw)
	empty := len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))

	var (
		ans Answer
		err error
	)
	switch t {
	case model.ExerciseMultipleChoice:
		var v string
		if !empty {
			err = strictUnmarshal(trimmed, &v)
		}
		ans = MultipleChoiceAnswer{Value: v}
	case model.ExerciseTrueFalse:
		var v bool
		if !empty {
			err = strictUnmarshal(trimmed, &v)
		}
		ans = TrueFalseAnswer{Value: v, Present: !empty}
	case model.ExerciseFillBlanks:
		var v []string
		if !empty {
			err = strictUnmarshal(trimmed, &v)
		}
		ans = FillBlanksAnswer{Blanks: v}
	case model.ExerciseMatching:
		var v []MatchPair
		if !empty {
			err = strictUnmarshal(trimmed, &v)
		}
		ans = MatchingAnswer{Pairs: v}
	case model.ExerciseDragDrop:
		var v map[string][]string
		if !empty {
			err = strictUnmarshal(trimmed, &v)
		}
		ans = DragDropAnswer{Zones: v}
	case model.ExerciseReorder:
		var v []string
		if !empty {
			err = strictUnmarshal(trimmed, &v)
		}
		ans = ReorderAnswer{Order: v}
	case model.ExerciseListening:
		var v string
		if !empty {
			err = strictUnmarshal(trimmed, &v)
		}
		ans = ListeningAnswer{Value: v}
	default:
		return nil, fmt.Errorf("%w: %q", util.ErrUnknownExerciseType, t)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s expects %s", util.ErrInvalidAnswerShape, t, shapeOf(t))
	}
	return ans, nil
}

func strictUnmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after answer")
	}
	return nil
}
