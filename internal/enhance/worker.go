package enhance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/uvp-engine/internal/llm"
	"github.com/sells-group/uvp-engine/internal/model"
	"github.com/sells-group/uvp-engine/internal/quality"
)

// TaskStore persists enhancement tasks and improved results. Tasks are
// written before processing so a crash mid-enhancement never loses the
// original (pre-enhancement) result.
type TaskStore interface {
	SaveTask(ctx context.Context, task model.EnhancementTask) error
	UpdateTask(ctx context.Context, task model.EnhancementTask) error
	SaveSynthesis(ctx context.Context, res *model.SynthesisResult) error
}

// Config holds the worker pool tunables.
type Config struct {
	// Workers bounds concurrent enhancement to protect cost and rate
	// limits. Default: 3.
	Workers        int
	MaxAttempts    int
	InitialBackoff time.Duration
	TaskTimeout    time.Duration
	QueueDepth     int
}

// Pool consumes the enhancement queue with a bounded set of workers.
// Enhancement is decoupled from the request path: it never blocks the
// caller, and a failed task leaves the original result valid.
type Pool struct {
	caller *llm.Caller
	scorer *quality.Scorer
	store  TaskStore
	queue  *queue
	cfg    Config

	mu   sync.Mutex
	subs map[string]map[string]chan model.EnhancementUpdate

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPool creates a worker pool. Call Start to begin processing.
func NewPool(caller *llm.Caller, scorer *quality.Scorer, store TaskStore, cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	return &Pool{
		caller: caller,
		scorer: scorer,
		store:  store,
		queue:  newQueue(cfg.QueueDepth),
		cfg:    cfg,
		subs:   make(map[string]map[string]chan model.EnhancementUpdate),
	}
}

// Start launches the workers. They run until Stop or ctx cancellation.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop cancels the workers and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Depth returns the number of queued tasks, for diagnostics.
func (p *Pool) Depth() int { return p.queue.len() }

// Enqueue persists and queues tasks for background processing. Errors on
// individual tasks are logged, not propagated — enqueueing must not fail
// the request path.
func (p *Pool) Enqueue(ctx context.Context, tasks []model.EnhancementTask, res *model.SynthesisResult, extraction *model.CombinedExtractionResult) {
	for _, t := range tasks {
		if err := p.store.SaveTask(ctx, t); err != nil {
			zap.L().Warn("enhance: failed to persist task",
				zap.String("task", t.ID),
				zap.Error(err),
			)
		}
		p.queue.push(item{task: t, result: res, extraction: extraction})
	}
	if len(tasks) > 0 {
		zap.L().Info("enhance: tasks queued",
			zap.String("subject", res.SubjectID),
			zap.Int("count", len(tasks)),
		)
	}
}

// CancelSubject drops queued (not yet processing) tasks for a subject,
// e.g. when the caller navigates away. Already-displayed content is
// unaffected; dropped tasks are retained as failed for diagnostics.
func (p *Pool) CancelSubject(ctx context.Context, subjectID string) int {
	dropped := p.queue.dropSubject(subjectID)
	for _, it := range dropped {
		it.task.Status = model.TaskStatusFailed
		it.task.LastError = "cancelled by caller"
		it.task.UpdatedAt = time.Now()
		if err := p.store.UpdateTask(ctx, it.task); err != nil {
			zap.L().Warn("enhance: failed to record cancellation", zap.Error(err))
		}
	}
	return len(dropped)
}

// Subscribe returns a channel of enhancement updates for a subject and an
// unsubscribe function. Slow consumers miss updates rather than blocking
// the workers.
func (p *Pool) Subscribe(subjectID string) (<-chan model.EnhancementUpdate, func()) {
	ch := make(chan model.EnhancementUpdate, 16)
	id := uuid.NewString()

	p.mu.Lock()
	if p.subs[subjectID] == nil {
		p.subs[subjectID] = make(map[string]chan model.EnhancementUpdate)
	}
	p.subs[subjectID][id] = ch
	p.mu.Unlock()

	return ch, func() {
		p.mu.Lock()
		if m, ok := p.subs[subjectID]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(p.subs, subjectID)
			}
		}
		p.mu.Unlock()
		close(ch)
	}
}

func (p *Pool) publish(update model.EnhancementUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs[update.SubjectID] {
		select {
		case ch <- update:
		default: // drop for slow consumers
		}
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := zap.L().With(zap.Int("worker", id))
	for {
		// Drain before waiting: ready signals are lossy when the queue
		// backs up past the channel depth.
		if it, ok := p.queue.pop(); ok {
			p.process(ctx, it, log)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-p.queue.ready:
		}
	}
}

// process runs one task through its attempt loop: up to MaxAttempts with
// exponential backoff, then terminal failure. Task failure is non-fatal;
// the original result stays displayable.
func (p *Pool) process(ctx context.Context, it item, log *zap.Logger) {
	task := it.task
	task.Status = model.TaskStatusProcessing
	task.UpdatedAt = time.Now()
	if err := p.store.UpdateTask(ctx, task); err != nil {
		log.Warn("enhance: failed to mark processing", zap.Error(err))
	}
	p.publish(model.EnhancementUpdate{
		SubjectID: task.SubjectID,
		TaskID:    task.ID,
		Dimension: task.Dimension,
		Status:    task.Status,
		Timestamp: time.Now(),
	})

	backoff := p.cfg.InitialBackoff
	var lastErr error
	for task.Attempts < p.cfg.MaxAttempts {
		task.Attempts++

		improved, err := p.enhanceOnce(ctx, it)
		if err == nil {
			task.Status = model.TaskStatusComplete
			task.UpdatedAt = time.Now()
			if uErr := p.store.UpdateTask(ctx, task); uErr != nil {
				log.Warn("enhance: failed to mark complete", zap.Error(uErr))
			}
			p.publish(model.EnhancementUpdate{
				SubjectID: task.SubjectID,
				TaskID:    task.ID,
				Dimension: task.Dimension,
				Status:    task.Status,
				Result:    improved,
				Timestamp: time.Now(),
			})
			log.Info("enhance: task complete",
				zap.String("task", task.ID),
				zap.String("dimension", string(task.Dimension)),
				zap.Int("attempts", task.Attempts),
			)
			return
		}

		lastErr = err
		task.LastError = err.Error()
		log.Warn("enhance: attempt failed",
			zap.String("task", task.ID),
			zap.Int("attempt", task.Attempts),
			zap.Error(err),
		)

		if ctx.Err() != nil || task.Attempts >= p.cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
		backoff *= 2
	}

	task.Status = model.TaskStatusFailed
	task.UpdatedAt = time.Now()
	if lastErr != nil {
		task.LastError = lastErr.Error()
	}
	if err := p.store.UpdateTask(ctx, task); err != nil {
		log.Warn("enhance: failed to mark failed", zap.Error(err))
	}
	p.publish(model.EnhancementUpdate{
		SubjectID: task.SubjectID,
		TaskID:    task.ID,
		Dimension: task.Dimension,
		Status:    task.Status,
		Timestamp: time.Now(),
	})
}

const enhanceSystemText = `You are a copy editor improving one specific weakness in a piece of marketing copy. Change only what the weakness requires; keep everything else intact. Return valid JSON only.`

const enhancePromptTmpl = `Improve the %s of this value proposition. %s

Current copy:
Primary: %s
Secondary:
%s

Return a JSON object with the improved copy:
{"primary_statement": "...", "secondary_statements": ["..."]}`

var dimensionGuidance = map[model.Dimension]string{
	model.DimensionClarity:      "Shorten sentences, remove jargon, use plain words.",
	model.DimensionCoherence:    "Make the statements reinforce one consistent story.",
	model.DimensionCompleteness: "Make sure it names who is served, what is offered, and why it is different.",
	model.DimensionConfidence:   "Remove claims that sound speculative; keep only well-supported ones.",
	model.DimensionResonance:    "Make the benefits vivid and customer-facing; speak to the reader directly.",
}

// enhanceOnce makes one mid-tier model call targeting the weak dimension
// and merges the patch into a new result. Enhancement never runs against
// the high tier — that is the primary cost-control lever.
func (p *Pool) enhanceOnce(ctx context.Context, it item) (*model.SynthesisResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.TaskTimeout)
	defer cancel()

	resp, err := p.caller.CallWithResilience(callCtx, llm.Task{
		Operation: "enhance." + string(it.task.Dimension),
		System:    enhanceSystemText,
		Prompt: fmt.Sprintf(enhancePromptTmpl,
			it.task.Dimension,
			dimensionGuidance[it.task.Dimension],
			it.result.PrimaryStatement,
			"- "+strings.Join(it.result.SecondaryStatements, "\n- "),
		),
		MaxTokens: 1024,
	}, llm.TierMid)
	if err != nil {
		return nil, eris.Wrap(err, "enhance: model call")
	}

	var wire struct {
		PrimaryStatement    string   `json:"primary_statement"`
		SecondaryStatements []string `json:"secondary_statements"`
	}
	raw := resp.Text
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, eris.Wrap(err, "enhance: parse response")
	}
	if strings.TrimSpace(wire.PrimaryStatement) == "" {
		return nil, eris.New("enhance: empty improved statement")
	}

	// Merge the patch into a successor result and re-score.
	merged := *it.result
	merged.ID = uuid.NewString()
	merged.PrimaryStatement = strings.TrimSpace(wire.PrimaryStatement)
	if len(wire.SecondaryStatements) > 0 {
		merged.SecondaryStatements = nil
		for _, s := range wire.SecondaryStatements {
			if s = strings.TrimSpace(s); s != "" {
				merged.SecondaryStatements = append(merged.SecondaryStatements, s)
			}
		}
	}
	merged.Enhanced = true
	merged.TierUsed = string(resp.TierUsed)
	merged.GeneratedAt = time.Now()

	score := p.scorer.Score(&merged, it.extraction)
	merged.Quality = &score

	if err := p.store.SaveSynthesis(ctx, &merged); err != nil {
		return nil, eris.Wrap(err, "enhance: persist improved result")
	}
	return &merged, nil
}
