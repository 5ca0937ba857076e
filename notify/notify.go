package notify

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Queue is the outbound notification sink, consumed by an external delivery
// worker.
type Queue interface {
	EnqueueNotification(ctx context.Context, tenant, userID, text string) error
}

type job struct {
	tenant string
	userID string
	text   string
}

// Dispatcher hands notifications to the queue on background workers so the
// mutation path never waits on a queue round trip. Delivery is best effort:
// when the buffer is saturated the notification is dropped and logged.
type Dispatcher struct {
	queue   Queue
	jobs    chan job
	timeout time.Duration
	log     *log.Logger
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDispatcher starts the worker pool. Workers and buffer must be positive.
func NewDispatcher(queue Queue, workers, buffer int, timeout time.Duration, logger *log.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if buffer <= 0 {
		buffer = 1024
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	d := &Dispatcher{
		queue:   queue,
		jobs:    make(chan job, buffer),
		timeout: timeout,
		log:     logger,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	logger.Infof("notification dispatcher started, workers: %d, buffer: %d, timeout: %v", workers, buffer, timeout)
	return d
}

// Notify queues one notification without blocking the caller.
func (d *Dispatcher) Notify(tenant, userID, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.jobs <- job{tenant: tenant, userID: userID, text: text}:
	default:
		d.log.WithFields(log.Fields{"tenant": tenant, "user": userID}).Warn("notification buffer saturated, dropping")
	}
}

// Close stops accepting notifications and waits for in-flight jobs to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.queue.EnqueueNotification(ctx, j.tenant, j.userID, j.text)
		cancel()
		if err != nil {
			d.log.Errorf("enqueue notification failed, err: %v, tenant: %s, user: %s", err, j.tenant, j.userID)
		}
	}
}
