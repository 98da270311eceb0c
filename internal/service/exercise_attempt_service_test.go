package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"corptrain_backend/internal/config"
	"corptrain_backend/internal/model"
	"corptrain_backend/internal/util"
)

const student = uint(42)

func multipleChoice(limit *int) *model.Exercise {
	return exercise(1, model.ExerciseMultipleChoice, 60, limit,
		item(11, 0, `"B"`, 1),
		item(12, 1, `"A"`, 1),
		item(13, 2, `"C"`, 1),
	)
}

func start(t *testing.T, f *fixture, exerciseID uint) *model.ExerciseAttempt {
	t.Helper()
	res, err := f.svc.StartOrResume(context.Background(), exerciseID, student)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	return res.Attempt
}

func submit(t *testing.T, f *fixture, attemptID string, itemID uint, answer string) bool {
	t.Helper()
	res, err := f.svc.SubmitAnswer(context.Background(), attemptID, student, itemID, json.RawMessage(answer))
	if err != nil {
		t.Fatalf("SubmitAnswer(%d, %s) error = %v", itemID, answer, err)
	}
	return res.IsCorrect
}

func TestStartOrResumeReturnsActiveAttempt(t *testing.T) {
	f := newFixture(true, multipleChoice(nil))
	ctx := context.Background()

	first, err := f.svc.StartOrResume(ctx, 1, student)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	if first.Resumed {
		t.Error("first start reported as resumed")
	}
	if first.Attempt.Status != model.AttemptInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", first.Attempt.Status)
	}
	if len(first.Exercise.Items) != 3 {
		t.Errorf("snapshot items = %d, want 3", len(first.Exercise.Items))
	}

	f.clock.Advance(30 * time.Second)
	second, err := f.svc.StartOrResume(ctx, 1, student)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !second.Resumed || second.Attempt.ID != first.Attempt.ID {
		t.Errorf("second start = %s (resumed=%v), want resume of %s", second.Attempt.ID, second.Resumed, first.Attempt.ID)
	}
	if !second.Attempt.StartedAt.Equal(first.Attempt.StartedAt) {
		t.Errorf("resume changed startedAt")
	}

	other, err := f.svc.StartOrResume(ctx, 1, student+1)
	if err != nil {
		t.Fatalf("other student start: %v", err)
	}
	if other.Attempt.ID == first.Attempt.ID {
		t.Error("different students share one attempt")
	}
}

func TestStartOrResumeMissingExercise(t *testing.T) {
	empty := exercise(2, model.ExerciseTrueFalse, 50, nil)
	f := newFixture(true, empty)

	for _, id := range []uint{2, 99} {
		_, err := f.svc.StartOrResume(context.Background(), id, student)
		if !errors.Is(err, util.ErrExerciseNotFound) {
			t.Errorf("exercise %d: err = %v, want ErrExerciseNotFound", id, err)
		}
	}
}

func TestConcurrentStartCreatesSingleAttempt(t *testing.T) {
	f := newFixture(true, multipleChoice(nil))

	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.StartOrResume(context.Background(), 1, student)
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			ids[i] = res.Attempt.ID
		}(i)
	}
	wg.Wait()

	for i, id := range ids {
		if id != ids[0] {
			t.Fatalf("worker %d got attempt %s, worker 0 got %s", i, id, ids[0])
		}
	}
	all, _ := f.store.ListByStudent(context.Background(), student, 1)
	if len(all) != 1 {
		t.Errorf("stored attempts = %d, want 1", len(all))
	}
}

func TestSubmitAndCompleteScoresAttempt(t *testing.T) {
	f := newFixture(true, multipleChoice(nil))
	a := start(t, f, 1)

	if !submit(t, f, a.ID, 11, `"B"`) {
		t.Error("item 11 should be correct")
	}
	if !submit(t, f, a.ID, 12, `"A"`) {
		t.Error("item 12 should be correct")
	}
	if submit(t, f, a.ID, 13, `"A"`) {
		t.Error("item 13 should be incorrect")
	}

	f.clock.Advance(95 * time.Second)
	res, err := f.svc.Complete(context.Background(), a.ID, student)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	want := CompletionResult{
		AttemptID:    a.ID,
		Score:        2,
		MaxScore:     3,
		Percentage:   67,
		Passed:       true,
		PassingScore: 60,
		TimeSpent:    95,
		CompletedAt:  f.clock.Now(),
		EndReason:    model.EndReasonCompleted,
	}
	if *res != want {
		t.Errorf("Complete() = %+v, want %+v", *res, want)
	}

	stored, err := f.svc.GetAttempt(context.Background(), a.ID, student)
	if err != nil {
		t.Fatalf("GetAttempt() error = %v", err)
	}
	if stored.Status != model.AttemptCompleted || stored.ActiveKey != nil {
		t.Errorf("stored status = %s activeKey = %v", stored.Status, stored.ActiveKey)
	}
	if len(stored.Answers) != 3 {
		t.Errorf("answers = %d, want 3", len(stored.Answers))
	}
}

func TestSubmitAnswerErrors(t *testing.T) {
	f := newFixture(true, multipleChoice(nil))
	a := start(t, f, 1)
	ctx := context.Background()

	tests := []struct {
		name      string
		attemptID string
		studentID uint
		itemID    uint
		answer    string
		want      error
	}{
		{"unknown attempt", "missing", student, 11, `"B"`, util.ErrAttemptNotFound},
		{"other student", a.ID, student + 1, 11, `"B"`, util.ErrUnauthorized},
		{"item outside exercise", a.ID, student, 99, `"B"`, util.ErrItemNotFound},
		{"wrong shape", a.ID, student, 11, `["B"]`, util.ErrInvalidAnswerShape},
		{"boolean for choice", a.ID, student, 11, `true`, util.ErrInvalidAnswerShape},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.SubmitAnswer(ctx, tc.attemptID, tc.studentID, tc.itemID, json.RawMessage(tc.answer))
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}

	got, _ := f.store.FindByID(ctx, a.ID)
	if len(got.Answers) != 0 {
		t.Errorf("rejected submissions were recorded: %+v", got.Answers)
	}

	if _, err := f.svc.Complete(ctx, a.ID, student); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	_, err := f.svc.SubmitAnswer(ctx, a.ID, student, 11, json.RawMessage(`"B"`))
	if !errors.Is(err, util.ErrAttemptAlreadyTerminal) {
		t.Errorf("submit after complete: err = %v, want ErrAttemptAlreadyTerminal", err)
	}
}

func TestEmptyAnswerRecordedAsIncorrect(t *testing.T) {
	f := newFixture(true, multipleChoice(nil))
	a := start(t, f, 1)

	for _, raw := range []string{`null`, `""`} {
		res, err := f.svc.SubmitAnswer(context.Background(), a.ID, student, 11, json.RawMessage(raw))
		if err != nil {
			t.Fatalf("SubmitAnswer(%s) error = %v", raw, err)
		}
		if res.IsCorrect || res.PointsEarned != 0 {
			t.Errorf("SubmitAnswer(%s) = %+v, want incorrect", raw, res)
		}
	}
}

func TestResubmissionPolicy(t *testing.T) {
	t.Run("last write wins", func(t *testing.T) {
		f := newFixture(true, multipleChoice(nil))
		a := start(t, f, 1)

		submit(t, f, a.ID, 11, `"A"`)
		if !submit(t, f, a.ID, 11, `"B"`) {
			t.Fatal("resubmission should be graded")
		}
		got, _ := f.store.FindByID(context.Background(), a.ID)
		if len(got.Answers) != 1 {
			t.Fatalf("answers = %d, want a single record per item", len(got.Answers))
		}
		if !got.Answers[0].IsCorrect || string(got.Answers[0].Answer) != `"B"` {
			t.Errorf("record = %+v, want latest submission", got.Answers[0])
		}

		res, err := f.svc.Complete(context.Background(), a.ID, student)
		if err != nil {
			t.Fatal(err)
		}
		if res.Score != 1 {
			t.Errorf("score = %d, want 1", res.Score)
		}
	})

	t.Run("rejected when disabled", func(t *testing.T) {
		f := newFixture(false, multipleChoice(nil))
		a := start(t, f, 1)

		submit(t, f, a.ID, 11, `"A"`)
		_, err := f.svc.SubmitAnswer(context.Background(), a.ID, student, 11, json.RawMessage(`"B"`))
		if !errors.Is(err, util.ErrItemAlreadyAnswered) {
			t.Fatalf("err = %v, want ErrItemAlreadyAnswered", err)
		}

		cfg := &config.Config{}
		cfg.Grading.AllowResubmission = true
		f.svc.ApplyConfig(cfg)
		if !submit(t, f, a.ID, 11, `"B"`) {
			t.Error("resubmission after config reload should be graded")
		}
	})
}

func TestSnapshotIsolatesExerciseEdits(t *testing.T) {
	f := newFixture(true, multipleChoice(nil))
	a := start(t, f, 1)

	edited := multipleChoice(seconds(10))
	edited.Items[0].CorrectAnswer = []byte(`"D"`)
	edited.PassingScorePercent = 100
	f.catalog.put(edited)

	if !submit(t, f, a.ID, 11, `"B"`) {
		t.Error("answer should be graded against the key captured at start")
	}
	f.clock.Advance(time.Hour)
	res, err := f.svc.Complete(context.Background(), a.ID, student)
	if err != nil {
		t.Fatal(err)
	}
	if res.EndReason != model.EndReasonCompleted || res.PassingScore != 60 {
		t.Errorf("Complete() = %+v, want snapshot time limit and passing score", res)
	}
}

func TestTimeLimitRejectsLateSubmission(t *testing.T) {
	f := newFixture(true, multipleChoice(seconds(60)))
	a := start(t, f, 1)
	ctx := context.Background()

	f.clock.Advance(59 * time.Second)
	submit(t, f, a.ID, 11, `"B"`)

	f.clock.Advance(time.Second)
	_, err := f.svc.SubmitAnswer(ctx, a.ID, student, 12, json.RawMessage(`"A"`))
	if !errors.Is(err, util.ErrAttemptAlreadyTerminal) {
		t.Fatalf("late submit: err = %v, want ErrAttemptAlreadyTerminal", err)
	}

	got, err := f.svc.GetAttempt(ctx, a.ID, student)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.AttemptCompleted || got.EndReason != model.EndReasonTimeLimit {
		t.Fatalf("attempt = %s/%s, want COMPLETED/time_limit", got.Status, got.EndReason)
	}
	if got.Score != 1 || got.MaxScore != 3 || len(got.Answers) != 1 {
		t.Errorf("score %d/%d with %d answers, want 1/3 with 1 answer", got.Score, got.MaxScore, len(got.Answers))
	}
	if got.TimeSpentSeconds != 60 {
		t.Errorf("timeSpent = %d, want 60", got.TimeSpentSeconds)
	}

	f.clock.Advance(time.Minute)
	res, err := f.svc.Complete(ctx, a.ID, student)
	if err != nil {
		t.Fatalf("Complete() after time limit: %v", err)
	}
	if !res.CompletedAt.Equal(*got.CompletedAt) || res.EndReason != model.EndReasonTimeLimit {
		t.Errorf("Complete() = %+v, want stored time-limit result", res)
	}
}

func TestCompleteAfterTimeLimitReturnsResult(t *testing.T) {
	f := newFixture(true, multipleChoice(seconds(30)))
	a := start(t, f, 1)
	submit(t, f, a.ID, 11, `"B"`)
	submit(t, f, a.ID, 12, `"A"`)

	f.clock.Advance(45 * time.Second)
	res, err := f.svc.Complete(context.Background(), a.ID, student)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if res.EndReason != model.EndReasonTimeLimit || res.Score != 2 || res.Percentage != 67 || !res.Passed {
		t.Errorf("Complete() = %+v", res)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	f := newFixture(true, multipleChoice(nil))
	a := start(t, f, 1)
	submit(t, f, a.ID, 11, `"B"`)

	first, err := f.svc.Complete(context.Background(), a.ID, student)
	if err != nil {
		t.Fatal(err)
	}
	writes := f.store.writes()

	f.clock.Advance(10 * time.Minute)
	if _, err := f.svc.SubmitAnswer(context.Background(), a.ID, student, 12, json.RawMessage(`"A"`)); !errors.Is(err, util.ErrAttemptAlreadyTerminal) {
		t.Fatalf("submit after completion: err = %v", err)
	}

	second, err := f.svc.Complete(context.Background(), a.ID, student)
	if err != nil {
		t.Fatal(err)
	}
	if *first != *second {
		t.Errorf("second Complete() = %+v, want %+v", *second, *first)
	}
	if f.store.writes() != writes {
		t.Errorf("repeated completion wrote the attempt again")
	}
}

func TestAbandon(t *testing.T) {
	f := newFixture(true, multipleChoice(nil))
	ctx := context.Background()
	a := start(t, f, 1)
	submit(t, f, a.ID, 11, `"B"`)

	if _, err := f.svc.Abandon(ctx, a.ID, student+1); !errors.Is(err, util.ErrUnauthorized) {
		t.Errorf("abandon by other student: err = %v", err)
	}

	got, err := f.svc.Abandon(ctx, a.ID, student)
	if err != nil {
		t.Fatalf("Abandon() error = %v", err)
	}
	if got.Status != model.AttemptAbandoned || got.EndReason != model.EndReasonAbandoned {
		t.Errorf("attempt = %s/%s", got.Status, got.EndReason)
	}
	if got.Score != 0 || got.MaxScore != 0 || got.Passed {
		t.Errorf("abandoned attempt carries a score: %+v", got)
	}

	if _, err := f.svc.Abandon(ctx, a.ID, student); err != nil {
		t.Errorf("second Abandon() error = %v, want nil", err)
	}
	if _, err := f.svc.Complete(ctx, a.ID, student); !errors.Is(err, util.ErrAttemptAlreadyTerminal) {
		t.Errorf("Complete() after abandon: err = %v", err)
	}

	next := start(t, f, 1)
	if next.ID == a.ID {
		t.Error("start after abandon resumed the abandoned attempt")
	}
}

func TestAbandonCompletedAttemptConflicts(t *testing.T) {
	f := newFixture(true, multipleChoice(nil))
	a := start(t, f, 1)
	if _, err := f.svc.Complete(context.Background(), a.ID, student); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Abandon(context.Background(), a.ID, student); !errors.Is(err, util.ErrAttemptAlreadyTerminal) {
		t.Errorf("err = %v, want ErrAttemptAlreadyTerminal", err)
	}
}

func TestAbandonExpiredAttemptCompletesIt(t *testing.T) {
	f := newFixture(true, multipleChoice(seconds(20)))
	a := start(t, f, 1)
	submit(t, f, a.ID, 11, `"B"`)
	f.clock.Advance(time.Minute)

	returned, err := f.svc.Abandon(context.Background(), a.ID, student)
	if err != nil {
		t.Fatalf("Abandon() error = %v", err)
	}
	if returned.Status != model.AttemptCompleted || returned.EndReason != model.EndReasonTimeLimit || returned.Score != 1 {
		t.Errorf("returned = %s/%s score %d, want COMPLETED/time_limit score 1", returned.Status, returned.EndReason, returned.Score)
	}
	got, _ := f.store.FindByID(context.Background(), a.ID)
	if got.Status != model.AttemptCompleted || got.EndReason != model.EndReasonTimeLimit {
		t.Errorf("attempt = %s/%s, want COMPLETED/time_limit", got.Status, got.EndReason)
	}

	// 再次放弃时尝试已完成
	if _, err := f.svc.Abandon(context.Background(), a.ID, student); !errors.Is(err, util.ErrAttemptAlreadyTerminal) {
		t.Errorf("second abandon err = %v, want ErrAttemptAlreadyTerminal", err)
	}
}

func TestStartAfterExpiryFinalizesAndStartsFresh(t *testing.T) {
	f := newFixture(true, multipleChoice(seconds(60)))
	a := start(t, f, 1)
	submit(t, f, a.ID, 11, `"B"`)

	f.clock.Advance(2 * time.Minute)
	res, err := f.svc.StartOrResume(context.Background(), 1, student)
	if err != nil {
		t.Fatal(err)
	}
	if res.Resumed || res.Attempt.ID == a.ID {
		t.Fatalf("expired attempt was resumed")
	}

	old, _ := f.store.FindByID(context.Background(), a.ID)
	if old.Status != model.AttemptCompleted || old.EndReason != model.EndReasonTimeLimit || old.Score != 1 {
		t.Errorf("old attempt = %s/%s score %d", old.Status, old.EndReason, old.Score)
	}
}

func TestGetAttemptOwnership(t *testing.T) {
	f := newFixture(true, multipleChoice(nil))
	a := start(t, f, 1)

	if _, err := f.svc.GetAttempt(context.Background(), a.ID, student+1); !errors.Is(err, util.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	if _, err := f.svc.GetAttemptForReview(context.Background(), a.ID); err != nil {
		t.Errorf("review err = %v", err)
	}
}

func TestConcurrentSubmissionsKeepEveryAnswer(t *testing.T) {
	var items []model.ExerciseItem
	for i := 0; i < 8; i++ {
		items = append(items, item(uint(100+i), i, `true`, 1))
	}
	f := newFixture(true, exercise(3, model.ExerciseTrueFalse, 50, nil, items...))
	a := start(t, f, 3)

	var wg sync.WaitGroup
	for _, it := range items {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			if _, err := f.svc.SubmitAnswer(context.Background(), a.ID, student, id, json.RawMessage(`true`)); err != nil {
				t.Errorf("item %d: %v", id, err)
			}
		}(it.ID)
	}
	wg.Wait()

	res, err := f.svc.Complete(context.Background(), a.ID, student)
	if err != nil {
		t.Fatal(err)
	}
	if res.Score != len(items) || res.Percentage != 100 {
		t.Errorf("Complete() = %+v, want every concurrent answer counted", res)
	}
}

func TestListAttemptsAndStats(t *testing.T) {
	f := newFixture(true, multipleChoice(nil))
	ctx := context.Background()

	for i, answers := range [][]string{{`"B"`, `"A"`, `"C"`}, {`"A"`, `"A"`, `"A"`}} {
		a := start(t, f, 1)
		for j, ans := range answers {
			submit(t, f, a.ID, uint(11+j), ans)
		}
		f.clock.Advance(time.Minute)
		if _, err := f.svc.Complete(ctx, a.ID, student); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	abandoned := start(t, f, 1)
	if _, err := f.svc.Abandon(ctx, abandoned.ID, student); err != nil {
		t.Fatal(err)
	}

	list, err := f.svc.ListAttempts(ctx, student, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("attempts = %d, want 3", len(list))
	}

	stats, err := f.svc.GetAttemptStats(ctx, 1, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := fmt.Sprintf("%d/%d/%d pass=%.2f", stats.TotalAttempts, stats.CompletedAttempts, stats.AbandonedAttempts, stats.PassRate)
	if got != "3/2/1 pass=0.50" {
		t.Errorf("stats = %s", got)
	}
}

func TestElapsedSeconds(t *testing.T) {
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	a := &model.ExerciseAttempt{StartedAt: base}
	tests := []struct {
		now  time.Time
		want int
	}{
		{base, 0},
		{base.Add(1500 * time.Millisecond), 1},
		{base.Add(10 * time.Minute), 600},
		{base.Add(-time.Second), 0},
	}
	for _, tc := range tests {
		if got := ElapsedSeconds(a, tc.now); got != tc.want {
			t.Errorf("ElapsedSeconds(%v) = %d, want %d", tc.now.Sub(base), got, tc.want)
		}
	}
}
