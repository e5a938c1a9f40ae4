package tasks

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrQueueFull   = errors.New("task queue is full")
	ErrQueueClosed = errors.New("task queue is closed")
)

// Enqueuer accepts fire-and-forget tasks addressed by url.
type Enqueuer interface {
	Enqueue(url string, params map[string]string) error
}

type HandlerFunc func(ctx context.Context, params map[string]string) error

type Task struct {
	ID     string
	URL    string
	Params map[string]string
}

type Config struct {
	Workers        int
	Size           int
	MaxAttempts    uint
	InitialBackoff time.Duration
}

// Queue dispatches tasks to registered handlers on a fixed pool of workers. A task whose
// handler fails is retried with exponential backoff until it succeeds or MaxAttempts is
// reached, so handlers must tolerate running more than once. Tasks still buffered when the
// queue stops are dropped.
type Queue struct {
	cfg    Config
	logger *zap.Logger
	tasks  chan Task

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	closed   bool
}

func NewQueue(cfg Config, logger *zap.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Size <= 0 {
		cfg.Size = 64
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	return &Queue{
		cfg:      cfg,
		logger:   logger.Named("tasks"),
		tasks:    make(chan Task, cfg.Size),
		handlers: map[string]HandlerFunc{},
	}
}

func (q *Queue) Handle(url string, handler HandlerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[url] = handler
}

// Enqueue never blocks; it fails when the buffer is full or the queue is closed.
func (q *Queue) Enqueue(url string, params map[string]string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if _, ok := q.handlers[url]; !ok {
		return fmt.Errorf("no handler for task %q", url)
	}

	task := Task{ID: uuid.NewString(), URL: url, Params: maps.Clone(params)}
	select {
	case q.tasks <- task:
		q.logger.Debug("task enqueued", zap.String("task", task.ID), zap.String("url", url))
		return nil
	default:
		return ErrQueueFull
	}
}

// Close makes further Enqueue calls fail. Run keeps going until its context is cancelled.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Run processes tasks until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		g.Go(func() error {
			q.work(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (q *Queue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-q.tasks:
			q.process(ctx, task)
		}
	}
}

func (q *Queue) process(ctx context.Context, task Task) {
	q.mu.RLock()
	handler := q.handlers[task.URL]
	q.mu.RUnlock()

	log := q.logger.With(zap.String("task", task.ID), zap.String("url", task.URL))
	ctx, span := otel.Tracer("conference-central/tasks").Start(ctx, task.URL,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("task.id", task.ID)))
	defer span.End()

	b := backoff.NewExponentialBackOff()
	if q.cfg.InitialBackoff > 0 {
		b.InitialInterval = q.cfg.InitialBackoff
	}

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		return struct{}{}, safeCall(ctx, handler, task.Params)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(q.cfg.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("task failed, retrying", zap.Error(err), zap.Duration("in", next))
		}),
	)
	span.SetAttributes(attribute.Int("task.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "task dropped")
		log.Error("task dropped", zap.Error(err), zap.Int("attempts", attempts))
		return
	}
	log.Debug("task done", zap.Int("attempts", attempts))
}

func safeCall(ctx context.Context, handler HandlerFunc, params map[string]string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panicked: %v", r)
		}
	}()
	return handler(ctx, params)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
