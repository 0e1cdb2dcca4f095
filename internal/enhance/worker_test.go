package enhance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/uvp-engine/internal/llm"
	"github.com/sells-group/uvp-engine/internal/model"
	"github.com/sells-group/uvp-engine/internal/quality"
	"github.com/sells-group/uvp-engine/internal/resilience"
	"github.com/sells-group/uvp-engine/pkg/anthropic"
)

// memStore records task and synthesis writes in memory.
type memStore struct {
	mu        sync.Mutex
	tasks     map[string]model.EnhancementTask
	synthesis []*model.SynthesisResult
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[string]model.EnhancementTask)}
}

func (m *memStore) SaveTask(ctx context.Context, task model.EnhancementTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
	return nil
}

func (m *memStore) UpdateTask(ctx context.Context, task model.EnhancementTask) error {
	return m.SaveTask(ctx, task)
}

func (m *memStore) SaveSynthesis(ctx context.Context, res *model.SynthesisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synthesis = append(m.synthesis, res)
	return nil
}

func (m *memStore) task(id string) model.EnhancementTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id]
}

// fixedBackend returns the same completion for every call.
type fixedBackend struct {
	text string
	err  error
}

func (b *fixedBackend) Model() string { return "sonnet-test" }

func (b *fixedBackend) Complete(ctx context.Context, task llm.Task) (string, anthropic.TokenUsage, error) {
	return b.text, anthropic.TokenUsage{InputTokens: 50, OutputTokens: 30}, b.err
}

func poolFor(b llm.Backend, store TaskStore) *Pool {
	breakers := resilience.NewTierBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: 100,
		ResetTimeout:     time.Minute,
	})
	router := llm.NewRouter(map[llm.Tier]llm.Backend{llm.TierMid: b, llm.TierLow: b}, breakers, 1000, 1000)
	caller := llm.NewCaller(router, resilience.RetryConfig{MaxAttempts: 1})
	return NewPool(caller, quality.NewScorer(85, 70), store, Config{
		Workers:        2,
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		TaskTimeout:    2 * time.Second,
	})
}

func taskFixture(id string, priority float64) model.EnhancementTask {
	return model.EnhancementTask{
		ID:             id,
		SubjectID:      "biz-1",
		TargetResultID: "res-1",
		Dimension:      model.DimensionClarity,
		Priority:       priority,
		Status:         model.TaskStatusQueued,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}

func resultFixture() *model.SynthesisResult {
	return &model.SynthesisResult{
		ID:               "res-1",
		SubjectID:        "biz-1",
		PrimaryStatement: "We leverage best-in-class synergy for turnkey books.",
		SecondaryStatements: []string{
			"Monthly reconciliation included.",
		},
	}
}

func TestQueue_PriorityOrder(t *testing.T) {
	q := newQueue(16)
	q.push(item{task: taskFixture("low", 5)})
	q.push(item{task: taskFixture("high", 20)})
	q.push(item{task: taskFixture("mid", 10)})

	var order []string
	for {
		it, ok := q.pop()
		if !ok {
			break
		}
		order = append(order, it.task.ID)
	}
	assert.Equal(t, []string{"high", "mid", "low"}, order)
}

func TestQueue_EqualPriorityOldestFirst(t *testing.T) {
	q := newQueue(16)
	older := taskFixture("older", 10)
	older.CreatedAt = time.Now().Add(-time.Hour)
	q.push(item{task: taskFixture("newer", 10)})
	q.push(item{task: older})

	it, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "older", it.task.ID)
}

func TestQueue_DropSubject(t *testing.T) {
	q := newQueue(16)
	other := taskFixture("other", 10)
	other.SubjectID = "biz-2"
	q.push(item{task: taskFixture("a", 10)})
	q.push(item{task: taskFixture("b", 5)})
	q.push(item{task: other})

	dropped := q.dropSubject("biz-1")
	assert.Len(t, dropped, 2)
	assert.Equal(t, 1, q.len())

	it, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "other", it.task.ID)
}

const improvedCompletion = `{"primary_statement": "Your books, closed accurately every month.", "secondary_statements": ["Monthly reconciliation is always included.", "You see where every dollar went."]}`

func TestPool_ProcessesTaskToCompletion(t *testing.T) {
	store := newMemStore()
	p := poolFor(&fixedBackend{text: improvedCompletion}, store)

	updates, unsub := p.Subscribe("biz-1")
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	task := taskFixture("t1", 10)
	p.Enqueue(ctx, []model.EnhancementTask{task}, resultFixture(), nil)

	var final model.EnhancementUpdate
	deadline := time.After(5 * time.Second)
	for final.Status != model.TaskStatusComplete {
		select {
		case u := <-updates:
			final = u
		case <-deadline:
			t.Fatalf("timed out waiting for completion; last status %q", final.Status)
		}
	}

	require.NotNil(t, final.Result)
	assert.Equal(t, "Your books, closed accurately every month.", final.Result.PrimaryStatement)
	assert.True(t, final.Result.Enhanced)
	assert.NotEqual(t, "res-1", final.Result.ID, "an improved result is a successor, not a mutation")
	require.NotNil(t, final.Result.Quality, "improved results are re-scored")

	stored := store.task("t1")
	assert.Equal(t, model.TaskStatusComplete, stored.Status)
	assert.Equal(t, 1, stored.Attempts)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.synthesis, 1)
	assert.Equal(t, final.Result.ID, store.synthesis[0].ID)
}

func TestPool_FailsAfterMaxAttempts(t *testing.T) {
	store := newMemStore()
	p := poolFor(&fixedBackend{text: "not json at all"}, store)

	updates, unsub := p.Subscribe("biz-1")
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	p.Enqueue(ctx, []model.EnhancementTask{taskFixture("t1", 10)}, resultFixture(), nil)

	var final model.EnhancementUpdate
	deadline := time.After(5 * time.Second)
	for final.Status != model.TaskStatusFailed {
		select {
		case u := <-updates:
			final = u
		case <-deadline:
			t.Fatalf("timed out waiting for failure; last status %q", final.Status)
		}
	}

	stored := store.task("t1")
	assert.Equal(t, model.TaskStatusFailed, stored.Status)
	assert.Equal(t, 2, stored.Attempts)
	assert.NotEmpty(t, stored.LastError)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.synthesis, "a failed task must not replace the original result")
}

func TestPool_CancelSubjectMarksFailed(t *testing.T) {
	store := newMemStore()
	p := poolFor(&fixedBackend{text: improvedCompletion}, store)
	// Workers not started: tasks stay queued.

	ctx := context.Background()
	p.Enqueue(ctx, []model.EnhancementTask{taskFixture("t1", 10), taskFixture("t2", 5)}, resultFixture(), nil)
	require.Equal(t, 2, p.Depth())

	n := p.CancelSubject(ctx, "biz-1")
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, p.Depth())

	for _, id := range []string{"t1", "t2"} {
		stored := store.task(id)
		assert.Equal(t, model.TaskStatusFailed, stored.Status)
		assert.Equal(t, "cancelled by caller", stored.LastError)
	}
}

func TestPool_SubscribeUnsubscribe(t *testing.T) {
	p := poolFor(&fixedBackend{text: improvedCompletion}, newMemStore())

	ch, unsub := p.Subscribe("biz-1")
	p.publish(model.EnhancementUpdate{SubjectID: "biz-1", TaskID: "t1", Status: model.TaskStatusProcessing})

	select {
	case u := <-ch:
		assert.Equal(t, "t1", u.TaskID)
	case <-time.After(time.Second):
		t.Fatal("expected an update")
	}

	unsub()
	// Publishing after unsubscribe must not panic or block.
	p.publish(model.EnhancementUpdate{SubjectID: "biz-1", TaskID: "t2", Status: model.TaskStatusComplete})
}
