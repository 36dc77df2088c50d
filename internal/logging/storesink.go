package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrijs2005/registryauth/internal/server/models"
)

const (
	sinkQueueSize     = 256
	sinkBatchSize     = 32
	sinkFlushInterval = 2 * time.Second
)

// Flusher persists a batch of log records. Implementations are expected to
// write all records atomically or not at all.
type Flusher func(ctx context.Context, records []models.LogRecord) error

// StoreSink is an slog.Handler that forwards every record to the wrapped
// handler and additionally queues it for persistence through a Flusher.
//
// Persistence is best effort: Handle never blocks, records are dropped when
// the queue is full, and flush failures are ignored. The rest of the service
// must not depend on the sink succeeding.
type StoreSink struct {
	next  slog.Handler
	flush Flusher
	queue chan models.LogRecord
}

func NewStoreSink(next slog.Handler, flush Flusher) *StoreSink {
	return &StoreSink{
		next:  next,
		flush: flush,
		queue: make(chan models.LogRecord, sinkQueueSize),
	}
}

func (s *StoreSink) Enabled(ctx context.Context, level slog.Level) bool {
	return s.next.Enabled(ctx, level)
}

func (s *StoreSink) Handle(ctx context.Context, r slog.Record) error {
	err := s.next.Handle(ctx, r)

	rec := models.LogRecord{Time: r.Time, Level: r.Level.String(), Message: r.Message}
	select {
	case s.queue <- rec:
	default:
		// queue full, drop the row rather than block the caller
	}

	return err
}

func (s *StoreSink) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &StoreSink{next: s.next.WithAttrs(attrs), flush: s.flush, queue: s.queue}
}

func (s *StoreSink) WithGroup(name string) slog.Handler {
	return &StoreSink{next: s.next.WithGroup(name), flush: s.flush, queue: s.queue}
}

// Run drains the queue in batches until ctx is cancelled, then performs one
// final flush of whatever is still queued.
func (s *StoreSink) Run(ctx context.Context) {
	ticker := time.NewTicker(sinkFlushInterval)
	defer ticker.Stop()

	batch := make([]models.LogRecord, 0, sinkBatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// detached context so a shutdown flush still gets a chance to run
		fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = s.flush(fctx, batch)
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-s.queue:
			batch = append(batch, rec)
			if len(batch) >= sinkBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case rec := <-s.queue:
					batch = append(batch, rec)
				default:
					flush()
					return
				}
			}
		}
	}
}
