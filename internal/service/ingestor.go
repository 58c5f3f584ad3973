package service

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"device_triggers/internal/engine"
	"device_triggers/internal/logger"
)

// Subscriber is the inbound side of the device broker.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, h func(topic string, payload []byte)) error
	Unsubscribe(ctx context.Context, topic string) error
}

// Ingestor feeds broker messages into the engine, one goroutine per message,
// with at most maxInFlight passes running at once.
type Ingestor struct {
	sub    Subscriber
	events Events
	sem    *semaphore.Weighted
	log    *logger.Logger
	wg     sync.WaitGroup

	// mu orders wg.Add against Stop, so Wait never races a late Add.
	mu     sync.Mutex
	closed bool
	topic  string
}

func NewIngestor(sub Subscriber, events Events, maxInFlight int64, log *logger.Logger) *Ingestor {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Ingestor{sub: sub, events: events, sem: semaphore.NewWeighted(maxInFlight), log: log}
}

// IngestTopic is the wildcard covering every device under root.
func IngestTopic(root string) string { return root + "/+/#" }

// Start subscribes to all device topics under root. Passes use ctx, so
// cancelling it stops in-flight work.
func (i *Ingestor) Start(ctx context.Context, root string) error {
	topic := IngestTopic(root)
	i.mu.Lock()
	i.topic = topic
	i.mu.Unlock()
	return i.sub.Subscribe(ctx, topic, func(topic string, payload []byte) {
		i.handle(ctx, topic, payload)
	})
}

// Stop refuses further messages and drops the broker subscription. Call
// Wait afterwards to drain passes already started.
func (i *Ingestor) Stop(ctx context.Context) error {
	i.mu.Lock()
	i.closed = true
	topic := i.topic
	i.mu.Unlock()
	if topic == "" {
		return nil
	}
	return i.sub.Unsubscribe(ctx, topic)
}

func (i *Ingestor) handle(ctx context.Context, topic string, payload []byte) {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		i.log.Warnw("ingest_dropped", "topic", topic, "err", "ingestor stopped")
		return
	}
	i.wg.Add(1)
	i.mu.Unlock()

	if err := ctx.Err(); err != nil {
		i.wg.Done()
		i.log.Warnw("ingest_dropped", "topic", topic, "err", err)
		return
	}
	if err := i.sem.Acquire(ctx, 1); err != nil {
		i.wg.Done()
		i.log.Warnw("ingest_dropped", "topic", topic, "err", err)
		return
	}
	payload = append([]byte(nil), payload...)

	go func() {
		defer i.wg.Done()
		defer i.sem.Release(1)

		summary, err := i.events.HandleMessage(ctx, topic, payload)
		var nerr *engine.NormalizationError
		switch {
		case errors.As(err, &nerr):
			i.log.Debugw("ingest_rejected", "topic", topic, "err", err)
		case err != nil:
			i.log.Errorw("ingest_failed", "topic", topic, "err", err)
		case summary.Triggered > 0:
			i.log.Infow("ingest_triggered",
				"device_id", summary.DeviceID,
				"evaluated", summary.Evaluated,
				"triggered", summary.Triggered,
			)
		}
	}()
}

// Wait blocks until every started pass has returned.
func (i *Ingestor) Wait() { i.wg.Wait() }
