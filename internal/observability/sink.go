package observability

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/metrics"
)

// Sink receives a copy of every event for external audit storage
type Sink interface {
	Write(ctx context.Context, ev Event) error
	Close() error
}

const (
	defaultSinkQueueSize = 1024
	sinkWriteTimeout     = 2 * time.Second
	sinkDrainTimeout     = 5 * time.Second
)

// sinkQueue moves events to the sink on a single background worker so
// LogEvent never waits on network I/O.
type sinkQueue struct {
	sink   Sink
	logger *zap.Logger
	queue  chan Event
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func newSinkQueue(sink Sink, size int, logger *zap.Logger) *sinkQueue {
	if size <= 0 {
		size = defaultSinkQueueSize
	}
	q := &sinkQueue{
		sink:   sink,
		logger: logger,
		queue:  make(chan Event, size),
		stopCh: make(chan struct{}),
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

// enqueue never blocks; a full queue drops the event
func (q *sinkQueue) enqueue(ev Event) {
	select {
	case <-q.stopCh:
		return
	default:
	}

	select {
	case q.queue <- ev:
	default:
		metrics.SinkDropped.Inc()
		q.logger.Warn("Observability sink queue full, dropping event",
			zap.Uint64("seq", ev.Seq),
			zap.String("event_type", string(ev.Type)))
	}
}

func (q *sinkQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			q.drain()
			return
		case ev := <-q.queue:
			q.write(ev)
		}
	}
}

func (q *sinkQueue) write(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
	defer cancel()
	if err := q.sink.Write(ctx, ev); err != nil {
		q.logger.Error("Failed to write event to sink",
			zap.Uint64("seq", ev.Seq),
			zap.Error(err))
	}
}

func (q *sinkQueue) drain() {
	timeout := time.After(sinkDrainTimeout)
	for {
		select {
		case ev := <-q.queue:
			q.write(ev)
		case <-timeout:
			q.logger.Warn("Timeout draining observability sink queue")
			return
		default:
			return
		}
	}
}

func (q *sinkQueue) close() error {
	var err error
	q.once.Do(func() {
		close(q.stopCh)
		q.wg.Wait()
		err = q.sink.Close()
	})
	return err
}
