package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/asakaida/relcalc/internal/repositories"
)

// Invalidator drops cached data
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// CatalogWatcher keeps cached reference data consistent across instances.
// It uses PostgreSQL LISTEN/NOTIFY: every catalog replacement raises a
// notification and each instance drops its cached catalog.
type CatalogWatcher struct {
	mu          sync.RWMutex
	version     string
	lastChange  time.Time
	invalidator Invalidator
	logger      *zap.Logger
	listener    *pq.Listener
	notify      <-chan *pq.Notification
	connStr     string
	stopCh      chan struct{}
	doneCh      chan struct{}
	stopped     bool
}

// NewCatalogWatcher creates a new CatalogWatcher.
// connStr is the PostgreSQL connection string used for LISTEN.
func NewCatalogWatcher(connStr string, invalidator Invalidator, logger *zap.Logger) *CatalogWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogWatcher{
		connStr:     connStr,
		invalidator: invalidator,
		logger:      logger,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start starts listening for catalog change notifications
func (w *CatalogWatcher) Start() error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			// the listener reconnects on its own
			w.logger.Warn("catalog listener error", zap.Error(err))
		}
	}

	w.listener = pq.NewListener(w.connStr, 10*time.Second, time.Minute, reportProblem)
	if err := w.listener.Listen(repositories.CatalogChangedChannel); err != nil {
		_ = w.listener.Close()
		return fmt.Errorf("failed to listen on %s: %w", repositories.CatalogChangedChannel, err)
	}

	w.notify = w.listener.Notify
	go w.handleNotifications()
	return nil
}

// Stop stops the watcher and closes the listener connection
func (w *CatalogWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()

	if w.notify != nil {
		<-w.doneCh
	}
	if w.listener != nil {
		return w.listener.Close()
	}
	return nil
}

// Version returns the payload of the last catalog change notification
func (w *CatalogWatcher) Version() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.version
}

// LastChange returns when the last notification was received
func (w *CatalogWatcher) LastChange() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastChange
}

// handleNotifications processes incoming NOTIFY events.
func (w *CatalogWatcher) handleNotifications() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case notification, ok := <-w.notify:
			if !ok {
				return
			}
			// nil means the connection was re-established and changes
			// may have been missed
			version := ""
			if notification != nil {
				version = notification.Extra
			}
			w.apply(version)
		case <-time.After(90 * time.Second):
			if w.listener != nil {
				go func() {
					if err := w.listener.Ping(); err != nil {
						w.logger.Warn("catalog listener ping failed", zap.Error(err))
					}
				}()
			}
		}
	}
}

func (w *CatalogWatcher) apply(version string) {
	w.mu.Lock()
	if version != "" {
		w.version = version
	}
	w.lastChange = time.Now()
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.invalidator.Invalidate(ctx); err != nil {
		w.logger.Error("failed to invalidate catalog cache", zap.Error(err))
		return
	}
	w.logger.Info("catalog cache invalidated", zap.String("version", version))
}
