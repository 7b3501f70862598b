// Package tagging runs background classification jobs over utterance pairs.
// Jobs are fire-and-forget from the caller's side; results are polled by id
// so the socket loop never blocks on them.
package tagging

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"voicebridge/core"
)

// Classifier produces the tag payload for one utterance pair.
type Classifier interface {
	Classify(ctx context.Context, pair string, role core.MessageRole, sessionID string) (string, error)
}

// Config controls the worker pool.
type Config struct {
	Workers    int           `json:"workers"`
	QueueDepth int           `json:"queue_depth"`
	JobTimeout time.Duration `json:"job_timeout"`
	// ResultTTL bounds how long an unclaimed result is retained. Hardware
	// peers and interrupted turns never poll their job ids.
	ResultTTL time.Duration `json:"result_ttl"`
}

func DefaultConfig() Config {
	return Config{
		Workers:    2,
		QueueDepth: 64,
		JobTimeout: 20 * time.Second,
		ResultTTL:  5 * time.Minute,
	}
}

type job struct {
	id        string
	pair      string
	role      core.MessageRole
	sessionID string
}

type storedResult struct {
	payload string
	expires time.Time
}

// Pool implements convo.Tagger over a fixed set of worker goroutines.
type Pool struct {
	cfg        Config
	classifier Classifier
	logger     *core.Logger

	jobs chan job
	wg   sync.WaitGroup

	mu      sync.Mutex
	results map[string]storedResult
}

func NewPool(cfg Config, classifier Classifier, logger *core.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 64
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 20 * time.Second
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 5 * time.Minute
	}
	return &Pool{
		cfg:        cfg,
		classifier: classifier,
		logger:     logger.With(map[string]interface{}{"component": "tagging"}),
		jobs:       make(chan job, cfg.QueueDepth),
		results:    make(map[string]storedResult),
	}
}

// Start launches the workers. They drain until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() { p.wg.Wait() }

// Submit enqueues a job and returns its id immediately. When the queue is
// full the job is recorded as failed rather than blocking the caller.
func (p *Pool) Submit(pair string, role core.MessageRole, sessionID string) string {
	id := uuid.New().String()
	select {
	case p.jobs <- job{id: id, pair: pair, role: role, sessionID: sessionID}:
	default:
		p.logger.Warn("tagging queue full, dropping job")
		p.store(id, errorResult("tagging queue full"))
	}
	return id
}

// TryResult returns the job result without blocking. The result is removed
// once observed; an expired result reads as absent.
func (p *Pool) TryResult(jobID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	result, ok := p.results[jobID]
	if !ok {
		return "", false
	}
	delete(p.results, jobID)
	if time.Now().After(result.expires) {
		return "", false
	}
	return result.payload, true
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			jobCtx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
			result, err := p.classifier.Classify(jobCtx, j.pair, j.role, j.sessionID)
			cancel()
			if err != nil {
				p.logger.Errorf("job %s failed: %v", j.id, err)
				result = errorResult(err.Error())
			}
			p.store(j.id, result)
		}
	}
}

// store records a result and sweeps out expired ones, keeping the map bounded
// when submitters never poll (hardware peers, ids dropped on interruption).
func (p *Pool) store(id, result string) {
	now := time.Now()
	p.mu.Lock()
	for key, r := range p.results {
		if now.After(r.expires) {
			delete(p.results, key)
		}
	}
	p.results[id] = storedResult{payload: result, expires: now.Add(p.cfg.ResultTTL)}
	p.mu.Unlock()
}

func errorResult(msg string) string {
	out, err := sonic.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"tagging failed"}`
	}
	return string(out)
}
