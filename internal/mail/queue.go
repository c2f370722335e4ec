// Package mail delivers HTML notifications through a background worker pool.
package mail

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/utils"
)

// Sender accepts messages for asynchronous delivery. Enqueue never blocks on
// delivery and never reports delivery failures.
type Sender interface {
	Enqueue(html, email, name, subject string)
}

// Message is one outbound e-mail.
type Message struct {
	HTML    string `json:"html"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
}

// Transport delivers a single message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// QueueConfig sizes a Queue. Zero values fall back to defaults.
type QueueConfig struct {
	Workers      int
	Size         int
	MaxRetries   int
	RetryBackoff time.Duration
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.Size <= 0 {
		c.Size = 64
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	}
	return c
}

// Queue is a Sender backed by a buffered channel and a fixed set of workers.
type Queue struct {
	transport Transport
	cfg       QueueConfig
	logger    *zap.Logger
	wait      func(context.Context, time.Duration) error

	mu      sync.RWMutex
	ch      chan Message
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewQueue does not start any worker; call Start.
func NewQueue(t Transport, cfg QueueConfig, l *zap.Logger) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		transport: t,
		cfg:       cfg,
		logger:    logger.WithComponent(l, "mail"),
		wait:      utils.WaitFor,
		ch:        make(chan Message, cfg.Size),
	}
}

// Start launches the workers. They run until Close drains the queue.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go func(worker int) {
			defer q.wg.Done()
			for msg := range q.ch {
				q.deliver(ctx, worker, msg)
			}
		}(i + 1)
	}
}

func (q *Queue) Enqueue(html, email, name, subject string) {
	msg := Message{HTML: html, Email: email, Name: name, Subject: subject}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.logger.Warn("mail queue closed, message dropped", zap.String("to", email), zap.String("subject", subject))
		return
	}

	select {
	case q.ch <- msg:
	default:
		q.logger.Error("mail queue full, message dropped", zap.String("to", email), zap.String("subject", subject))
	}
}

// Close stops accepting messages and waits for queued ones to be handled.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	started := q.started
	q.mu.Unlock()

	if !started {
		for msg := range q.ch {
			q.logger.Warn("mail queue never started, message dropped", zap.String("to", msg.Email))
		}
		return
	}

	q.wg.Wait()
}

func (q *Queue) deliver(ctx context.Context, worker int, msg Message) {
	log := q.logger.With(
		zap.Int("worker", worker),
		zap.String("to", msg.Email),
		zap.String("subject", msg.Subject),
	)

	for attempt := 1; attempt <= q.cfg.MaxRetries; attempt++ {
		err := q.transport.Send(ctx, msg)
		if err == nil {
			log.Debug("mail sent", zap.Int(logger.FieldAttempt, attempt))
			return
		}

		if attempt == q.cfg.MaxRetries {
			log.Error("mail delivery failed, message dropped", zap.Int(logger.FieldAttempt, attempt), zap.Error(err))
			return
		}

		delay := utils.Backoff(attempt, q.cfg.RetryBackoff, 8*q.cfg.RetryBackoff)
		log.Warn("mail delivery failed, retrying",
			zap.Int(logger.FieldAttempt, attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := q.wait(ctx, delay); err != nil {
			log.Error("mail delivery abandoned", zap.Error(err))
			return
		}
	}
}
