package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const persistTimeout = 5 * time.Second

// AsyncStore decouples audit persistence from the query path: Append
// enqueues and returns immediately while a background goroutine drains the
// buffer into the wrapped store. Reads go straight through. When the buffer
// is full the record is dropped rather than blocking a query.
type AsyncStore struct {
	store  Store
	inbox  chan *PlateQuery
	logger *slog.Logger
	done   chan struct{}
}

func NewAsyncStore(store Store, buffer int, logger *slog.Logger) *AsyncStore {
	if buffer <= 0 {
		buffer = 256
	}
	return &AsyncStore{
		store:  store,
		inbox:  make(chan *PlateQuery, buffer),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run drains the inbox until ctx is cancelled, then flushes whatever is
// still buffered before returning.
func (s *AsyncStore) Run(ctx context.Context) error {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.flushBuffered()
			return ctx.Err()
		case record := <-s.inbox:
			s.persist(record)
		}
	}
}

// Wait blocks until Run has returned.
func (s *AsyncStore) Wait() {
	<-s.done
}

func (s *AsyncStore) flushBuffered() {
	for {
		select {
		case record := <-s.inbox:
			s.persist(record)
		default:
			return
		}
	}
}

func (s *AsyncStore) persist(record *PlateQuery) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.store.Append(ctx, record); err != nil {
		s.logger.Warn("audit append failed",
			"session_id", record.SessionID,
			"error", err)
	}
}

func (s *AsyncStore) Append(ctx context.Context, record *PlateQuery) error {
	select {
	case s.inbox <- record:
	default:
		s.logger.Warn("audit buffer full, dropping record",
			"session_id", record.SessionID)
	}
	return nil
}

func (s *AsyncStore) FindBySession(ctx context.Context, sessionID uuid.UUID) (*PlateQuery, error) {
	return s.store.FindBySession(ctx, sessionID)
}

func (s *AsyncStore) ListRecent(ctx context.Context, limit int) ([]*PlateQuery, error) {
	return s.store.ListRecent(ctx, limit)
}
