package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"corptrain_backend/internal/config"
	"corptrain_backend/internal/model"
	"corptrain_backend/internal/repository"
	"corptrain_backend/internal/util"

	"gorm.io/datatypes"
)

var errDuplicateActive = errors.New("duplicate active attempt")

// memoryAttemptStore 按值保存尝试，模拟数据库的隔离与版本号
type memoryAttemptStore struct {
	mu       sync.Mutex
	attempts map[string]model.ExerciseAttempt
	nextID   uint
	mutates  int
}

func newMemoryAttemptStore() *memoryAttemptStore {
	return &memoryAttemptStore{attempts: make(map[string]model.ExerciseAttempt)}
}

func cloneAttempt(a model.ExerciseAttempt) model.ExerciseAttempt {
	out := a
	out.Answers = append([]model.AnswerRecord(nil), a.Answers...)
	if a.ActiveKey != nil {
		k := *a.ActiveKey
		out.ActiveKey = &k
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

func (m *memoryAttemptStore) Create(ctx context.Context, attempt *model.ExerciseAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if attempt.ActiveKey != nil {
		for _, a := range m.attempts {
			if a.ActiveKey != nil && *a.ActiveKey == *attempt.ActiveKey {
				return errDuplicateActive
			}
		}
	}
	if attempt.ID == "" {
		attempt.ID = model.GenerateUUID()
	}
	attempt.Version = 1
	m.attempts[attempt.ID] = cloneAttempt(*attempt)
	return nil
}

func (m *memoryAttemptStore) FindByID(ctx context.Context, id string) (*model.ExerciseAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil, util.ErrAttemptNotFound
	}
	out := cloneAttempt(a)
	return &out, nil
}

func (m *memoryAttemptStore) FindActive(ctx context.Context, exerciseID, studentID uint) (*model.ExerciseAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := *model.ActiveKeyFor(exerciseID, studentID)
	for _, a := range m.attempts {
		if a.ActiveKey != nil && *a.ActiveKey == key {
			out := cloneAttempt(a)
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memoryAttemptStore) ListByStudent(ctx context.Context, studentID, exerciseID uint) ([]model.ExerciseAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExerciseAttempt
	for _, a := range m.attempts {
		if a.StudentID == studentID && (exerciseID == 0 || a.ExerciseID == exerciseID) {
			out = append(out, cloneAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (m *memoryAttemptStore) Mutate(ctx context.Context, id string, fn func(a *model.ExerciseAttempt) error) (*model.ExerciseAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil, util.ErrAttemptNotFound
	}
	work := cloneAttempt(a)
	if err := fn(&work); err != nil {
		return nil, err
	}
	for i := range work.Answers {
		if work.Answers[i].ID == 0 {
			m.nextID++
			work.Answers[i].ID = m.nextID
		}
	}
	work.Version = a.Version + 1
	m.attempts[id] = cloneAttempt(work)
	m.mutates++
	return &work, nil
}

func (m *memoryAttemptStore) Stats(ctx context.Context, exerciseID uint, start, end *time.Time) (*repository.AttemptStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &repository.AttemptStats{}
	var pct, passed int
	for _, a := range m.attempts {
		if a.ExerciseID != exerciseID {
			continue
		}
		stats.TotalAttempts++
		switch a.Status {
		case model.AttemptCompleted:
			stats.CompletedAttempts++
			pct += a.Percentage
			if a.Passed {
				passed++
			}
		case model.AttemptAbandoned:
			stats.AbandonedAttempts++
		}
	}
	if stats.CompletedAttempts > 0 {
		stats.AvgPercentage = float64(pct) / float64(stats.CompletedAttempts)
		stats.PassRate = float64(passed) / float64(stats.CompletedAttempts)
	}
	return stats, nil
}

func (m *memoryAttemptStore) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutates
}

// memoryCatalog 可在测试中途修改练习定义
type memoryCatalog struct {
	mu        sync.Mutex
	exercises map[uint]*model.Exercise
}

func (c *memoryCatalog) GetExercise(ctx context.Context, id uint) (*model.Exercise, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.exercises[id]
	if !ok {
		return nil, util.ErrExerciseNotFound
	}
	cp := *e
	cp.Items = append([]model.ExerciseItem(nil), e.Items...)
	return &cp, nil
}

func (c *memoryCatalog) put(e *model.Exercise) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exercises[e.ID] = e
}

// fakeClock 手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func item(id uint, order int, correct string, points int) model.ExerciseItem {
	it := model.ExerciseItem{
		ExerciseID:    1,
		OrderIndex:    order,
		Content:       datatypes.JSON(`{"prompt":"q"}`),
		CorrectAnswer: datatypes.JSON(correct),
		Points:        points,
	}
	it.ID = id
	return it
}

func exercise(id uint, t model.ExerciseType, passing int, limit *int, items ...model.ExerciseItem) *model.Exercise {
	e := &model.Exercise{
		Title:               "Workplace email",
		Type:                t,
		Language:            "en",
		TimeLimitSeconds:    limit,
		PassingScorePercent: passing,
		Items:               items,
	}
	e.ID = id
	return e
}

func seconds(n int) *int { return &n }

type fixture struct {
	svc     *ExerciseAttemptService
	store   *memoryAttemptStore
	catalog *memoryCatalog
	clock   *fakeClock
}

func newFixture(allowResubmission bool, exercises ...*model.Exercise) *fixture {
	store := newMemoryAttemptStore()
	catalog := &memoryCatalog{exercises: make(map[uint]*model.Exercise)}
	for _, e := range exercises {
		catalog.put(e)
	}
	clock := &fakeClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}

	cfg := &config.Config{}
	cfg.Grading.AllowResubmission = allowResubmission
	svc := NewExerciseAttemptService(store, catalog, cfg)
	svc.Now = clock.Now
	return &fixture{svc: svc, store: store, catalog: catalog, clock: clock}
}
