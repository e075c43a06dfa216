package preference

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/justchokingaround/shikiplay/internal/catalog"
)

// Writer persists preferences on a background goroutine. Pending writes are
// coalesced per series so the last one wins; Flush and Close are the points
// where they are guaranteed to reach the store.
type Writer struct {
	store  *Store
	logger *slog.Logger

	mu      sync.Mutex
	pending map[int]catalog.Translation
	// inflight holds the batch being stored so Get never sees a gap
	inflight map[int]catalog.Translation

	kick      chan struct{}
	flushes   chan chan error
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

// NewWriter starts a writer over store
func NewWriter(store *Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{
		store:   store,
		logger:  logger.With("component", "preference"),
		pending: make(map[int]catalog.Translation),
		kick:    make(chan struct{}, 1),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Enqueue schedules t as the preference of its series. It never blocks.
func (w *Writer) Enqueue(seriesID int, t catalog.Translation) {
	w.mu.Lock()
	w.pending[seriesID] = t
	w.mu.Unlock()

	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Get returns the preference of a series, pending writes included
func (w *Writer) Get(ctx context.Context, seriesID int) (*catalog.Translation, error) {
	w.mu.Lock()
	t, ok := w.pending[seriesID]
	if !ok {
		t, ok = w.inflight[seriesID]
	}
	w.mu.Unlock()
	if ok {
		return &t, nil
	}
	return w.store.Get(ctx, seriesID)
}

// Flush waits until every write enqueued before the call is stored
func (w *Writer) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case w.flushes <- reply:
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes what is pending and stops the goroutine
func (w *Writer) Close(ctx context.Context) error {
	w.closeOnce.Do(func() { close(w.done) })

	stopped := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		return w.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) loop() {
	defer w.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-w.kick:
			if err := w.drain(ctx); err != nil {
				w.logger.Error("failed to save preferences", "error", err)
			}
		case reply := <-w.flushes:
			reply <- w.drain(ctx)
		case <-w.done:
			w.closeErr = w.drain(ctx)
			return
		}
	}
}

// drain stores everything pending. Failed writes are put back unless a
// newer value was enqueued meanwhile.
func (w *Writer) drain(ctx context.Context) error {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[int]catalog.Translation)
	w.inflight = batch
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.inflight = nil
		w.mu.Unlock()
	}()

	var errs []error
	for seriesID, t := range batch {
		if err := w.store.Save(ctx, seriesID, t); err != nil {
			errs = append(errs, err)
			w.mu.Lock()
			if _, newer := w.pending[seriesID]; !newer {
				w.pending[seriesID] = t
			}
			w.mu.Unlock()
			continue
		}
		w.logger.Debug("preference saved", "series_id", seriesID, "translation_id", t.ID)
	}
	return errors.Join(errs...)
}
