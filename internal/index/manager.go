package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Aman-CERP/feedsearch/internal/config"
	"github.com/Aman-CERP/feedsearch/internal/entity"
	fserrors "github.com/Aman-CERP/feedsearch/internal/errors"
	"github.com/Aman-CERP/feedsearch/internal/metrics"
	"github.com/Aman-CERP/feedsearch/internal/search"
	"github.com/Aman-CERP/feedsearch/internal/store"
)

// Names of the persisted state inside the data directory.
const (
	IndexDirName  = "articles.bleve"
	QueueFileName = "outstanding.db"
)

// DefaultFlushBatchSize is the number of entries applied per index batch.
const DefaultFlushBatchSize = 256

// State is the lifecycle state of a Manager.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Options configures a Manager.
type Options struct {
	// DataDir holds the index and the queue. Empty keeps both in memory
	// and skips the directory lock.
	DataDir string
	// QueueDriver is the database/sql driver of the queue.
	QueueDriver string

	MaxClauseCount int
	TokenCacheSize int
	MaxResults     int

	FlushBatchSize int
	// FlushInterval enables the background flush ticker when positive.
	FlushInterval   time.Duration
	FlushOnShutdown bool
	ReindexWorkers  int

	// OpenRetry is the backoff used while opening the index and queue.
	OpenRetry fserrors.RetryConfig

	Clock  search.Clock
	Logger *slog.Logger
}

// OptionsFromConfig maps the configuration onto Manager options.
func OptionsFromConfig(cfg *config.Config) Options {
	retry := fserrors.DefaultRetryConfig()
	retry.MaxRetries = cfg.Index.OpenRetries

	return Options{
		DataDir:         cfg.Paths.DataDir,
		QueueDriver:     cfg.Queue.Driver,
		MaxClauseCount:  cfg.Index.MaxClauseCount,
		TokenCacheSize:  cfg.Search.TokenCacheSize,
		MaxResults:      cfg.Search.MaxResults,
		FlushBatchSize:  cfg.Index.FlushBatchSize,
		FlushInterval:   cfg.FlushIntervalDuration(),
		FlushOnShutdown: cfg.Index.FlushOnShutdown,
		ReindexWorkers:  cfg.Index.ReindexWorkers,
		OpenRetry:       retry,
	}
}

// FlushResult summarizes one flush.
type FlushResult struct {
	Upserted int
	Deleted  int
	Acked    int
}

// ReindexResult summarizes one full rebuild.
type ReindexResult struct {
	Documents int
	Duration  time.Duration
}

// Status is a point-in-time view of the manager.
type Status struct {
	State       State
	DataDir     string
	Documents   uint64
	Outstanding int
	Recovered   bool
}

// Manager keeps the article index consistent with the entity store.
//
// Entity events are turned into durable outstanding entries as they
// happen. Flush applies those entries in batches by re-reading each
// article: visible articles are upserted, everything else is deleted.
// Entries are acknowledged only when their sequence is unchanged, so work
// recorded during a flush is never lost. Search flushes first.
//
// Operations hold the read side of mu for their whole duration, so
// Shutdown waits for them. Flush and reindex are serialized by flushMu.
// A search holds the read side of rebuildMu from its flush until its
// query completes, so a rebuild never resets the index under it.
type Manager struct {
	opts        Options
	store       entity.Store
	docs        *DocumentBuilder
	logger      *slog.Logger
	unsubscribe func()

	mu        sync.RWMutex
	state     State
	index     *store.ArticleIndex
	queue     *store.OutstandingQueue
	searcher  *search.Searcher
	lock      *DataDirLock
	recovered bool
	stopTick  context.CancelFunc
	tickDone  chan struct{}

	flushMu   sync.Mutex
	rebuildMu sync.RWMutex
	reindex   singleflight.Group
}

// NewManager creates a stopped manager subscribed to st. Events that
// arrive while it is stopped are rejected with EngineUnavailable.
func NewManager(st entity.Store, opts Options) *Manager {
	if opts.FlushBatchSize <= 0 {
		opts.FlushBatchSize = DefaultFlushBatchSize
	}
	if opts.OpenRetry == (fserrors.RetryConfig{}) {
		opts.OpenRetry = fserrors.DefaultRetryConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	m := &Manager{
		opts:   opts,
		store:  st,
		docs:   NewDocumentBuilder(st),
		logger: opts.Logger,
	}
	m.unsubscribe = st.Subscribe(m)
	return m
}

func (m *Manager) checkRunning() error {
	if m.state != Running {
		return fserrors.EngineUnavailable("index manager is not running", nil).
			WithSuggestion("call Startup before using the index")
	}
	return nil
}

// OnEvent records the index work implied by ev. It returns once the work
// is durable.
func (m *Manager) OnEvent(ctx context.Context, ev entity.Event) error {
	p, ok := classify(ev)
	if !ok {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state != Running {
		return fserrors.EngineUnavailable(
			fmt.Sprintf("index manager is stopped, %s for %d article(s) not recorded", ev.Kind, len(p.ids)), nil)
	}
	if err := m.queue.RecordMany(ctx, p.ids, p.event); err != nil {
		return err
	}
	m.logger.Debug("outstanding_recorded",
		slog.String("event", ev.Kind.String()),
		slog.String("queued_as", p.event.String()),
		slog.Int("articles", len(p.ids)))
	return nil
}

// Startup opens the index and the queue and locks the data directory.
// A fresh or recovered index is rebuilt before Startup returns. Calling
// Startup on a running manager does nothing.
func (m *Manager) Startup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Running {
		return nil
	}

	var indexPath, queuePath string
	fresh := true
	if dir := m.opts.DataDir; dir != "" {
		lock := NewDataDirLock(dir)
		acquired, err := lock.TryLock()
		if err != nil {
			return fserrors.New(fserrors.ErrCodeDataDirLock, "cannot lock data directory "+dir, err)
		}
		if !acquired {
			return fserrors.New(fserrors.ErrCodeDataDirLock,
				fmt.Sprintf("data directory %s is in use by another process", dir), nil).
				WithSuggestion("stop the other feedsearch process or point paths.data_dir elsewhere")
		}
		m.lock = lock

		indexPath = filepath.Join(dir, IndexDirName)
		queuePath = filepath.Join(dir, QueueFileName)
		if _, err := os.Stat(indexPath); err == nil {
			fresh = false
		}
	}

	if err := m.open(ctx, indexPath, queuePath); err != nil {
		if m.lock != nil {
			_ = m.lock.Unlock()
			m.lock = nil
		}
		return err
	}
	m.state = Running
	m.recovered = m.index.Recovered() || m.queue.Recovered()

	trigger := ""
	switch {
	case m.recovered:
		trigger = "recovery"
	case fresh:
		trigger = "startup"
	}
	if trigger != "" {
		if _, err := m.rebuild(ctx, trigger); err != nil {
			_ = m.closeLocked()
			return err
		}
	}

	m.startTicker()
	m.refreshGauges(ctx)
	m.logger.Info("index_manager_started",
		slog.String("data_dir", m.opts.DataDir),
		slog.Bool("recovered", m.recovered))
	return nil
}

func (m *Manager) open(ctx context.Context, indexPath, queuePath string) error {
	idx, err := fserrors.RetryWithResult(ctx, m.opts.OpenRetry, func() (*store.ArticleIndex, error) {
		return store.OpenArticleIndex(indexPath, m.logger)
	})
	if err != nil {
		return fserrors.EngineUnavailable("failed to open article index", err)
	}

	q, err := fserrors.RetryWithResult(ctx, m.opts.OpenRetry, func() (*store.OutstandingQueue, error) {
		return store.OpenOutstandingQueue(m.opts.QueueDriver, queuePath, m.logger)
	})
	if err != nil {
		_ = idx.Close()
		return fserrors.EngineUnavailable("failed to open outstanding queue", err)
	}

	m.index = idx
	m.queue = q
	m.searcher = search.NewSearcher(m.store, idx, search.Options{
		MaxClauseCount: m.opts.MaxClauseCount,
		TokenCacheSize: m.opts.TokenCacheSize,
		MaxResults:     m.opts.MaxResults,
		Clock:          m.opts.Clock,
	})
	return nil
}

// Shutdown stops the background ticker, flushes when configured to, and
// closes the index and queue. Unflushed entries stay queued on disk.
// Calling Shutdown on a stopped manager does nothing.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Running {
		return nil
	}
	m.stopTicker()

	if m.opts.FlushOnShutdown {
		if _, err := m.flushLocked(ctx); err != nil {
			m.logger.Warn("shutdown_flush_failed", slog.Any("error", fserrors.FormatForLog(err)))
		}
	}

	err := m.closeLocked()
	m.logger.Info("index_manager_stopped", slog.String("data_dir", m.opts.DataDir))
	return err
}

func (m *Manager) closeLocked() error {
	errs := []error{m.index.Close(), m.queue.Close()}
	if m.lock != nil {
		errs = append(errs, m.lock.Unlock())
	}
	m.index, m.queue, m.searcher, m.lock = nil, nil, nil, nil
	m.state = Stopped
	return errors.Join(errs...)
}

// Close shuts the manager down and unsubscribes it from the store.
func (m *Manager) Close(ctx context.Context) error {
	err := m.Shutdown(ctx)
	m.unsubscribe()
	return err
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Flush applies every entry queued before the call.
func (m *Manager) Flush(ctx context.Context) (FlushResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkRunning(); err != nil {
		return FlushResult{}, err
	}
	return m.flushLocked(ctx)
}

func (m *Manager) flushLocked(ctx context.Context) (FlushResult, error) {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	start := time.Now()
	var res FlushResult
	err := m.drain(ctx, m.queue.Watermark(), &res)
	metrics.ObserveFlush(res.Upserted, res.Deleted, time.Since(start), err)
	m.refreshGauges(ctx)

	if err != nil {
		m.logger.Warn("flush_failed",
			slog.Int("applied", res.Upserted+res.Deleted),
			slog.Any("error", fserrors.FormatForLog(err)))
		return res, err
	}
	if res.Upserted+res.Deleted > 0 {
		m.logger.Info("flush_complete",
			slog.Int("upserted", res.Upserted),
			slog.Int("deleted", res.Deleted),
			slog.Int("acked", res.Acked),
			slog.Duration("duration", time.Since(start)))
	}
	return res, nil
}

// drain applies batches of entries with seq <= watermark. An entry that is
// rewritten while its batch is applied gets a higher seq, stays queued and
// is left for the next flush.
func (m *Manager) drain(ctx context.Context, watermark int64, res *FlushResult) error {
	for {
		entries, err := m.queue.List(ctx, m.opts.FlushBatchSize)
		if err != nil {
			return err
		}
		batch := entries
		for i, e := range entries {
			if e.Seq > watermark {
				batch = entries[:i]
				break
			}
		}
		if len(batch) == 0 {
			return nil
		}

		docs, deletes, err := m.prepare(ctx, batch)
		if err != nil {
			return fserrors.New(fserrors.ErrCodeFlushFailed, "failed to prepare index batch", err)
		}
		if err := m.index.Apply(ctx, docs, deletes); err != nil {
			return fserrors.New(fserrors.ErrCodeFlushFailed, "failed to apply index batch", err)
		}
		acked, err := m.queue.Ack(ctx, batch)
		if err != nil {
			return err
		}

		res.Upserted += len(docs)
		res.Deleted += len(deletes)
		res.Acked += acked

		if len(entries) < m.opts.FlushBatchSize {
			return nil
		}
	}
}

// prepare re-reads every entry's article and decides its fate from the
// current state only.
func (m *Manager) prepare(ctx context.Context, entries []store.OutstandingEntry) ([]*store.ArticleDocument, []string, error) {
	var (
		docs    []*store.ArticleDocument
		deletes []string
	)
	for _, e := range entries {
		a, err := m.store.Article(ctx, e.EntityID)
		switch {
		case errors.Is(err, entity.ErrNotFound):
			deletes = append(deletes, store.DocID(e.EntityID))
		case err != nil:
			return nil, nil, fmt.Errorf("failed to read article %d: %w", e.EntityID, err)
		case !a.Visible():
			deletes = append(deletes, store.DocID(e.EntityID))
		default:
			doc, err := m.docs.Build(ctx, a)
			if err != nil {
				return nil, nil, err
			}
			docs = append(docs, doc)
		}
	}
	return docs, deletes, nil
}

// Search flushes outstanding work and returns the articles matching the
// conditions. Invalid conditions fail before anything is flushed.
func (m *Manager) Search(ctx context.Context, conditions []search.Condition, scope *search.Condition, requireAll bool) ([]search.Hit, error) {
	start := time.Now()
	hits, err := m.search(ctx, conditions, scope, requireAll)

	status := metrics.StatusOK
	switch {
	case fserrors.GetCategory(err) == fserrors.CategoryValidation:
		status = metrics.StatusInvalid
	case err != nil:
		status = metrics.StatusError
	}
	metrics.ObserveSearch(requireAll, status, len(hits), time.Since(start))
	return hits, err
}

func (m *Manager) search(ctx context.Context, conditions []search.Condition, scope *search.Condition, requireAll bool) ([]search.Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkRunning(); err != nil {
		return nil, err
	}
	q, err := m.searcher.Assemble(ctx, conditions, scope, requireAll)
	if err != nil {
		return nil, err
	}
	m.rebuildMu.RLock()
	defer m.rebuildMu.RUnlock()
	if _, err := m.flushLocked(ctx); err != nil {
		return nil, err
	}
	return m.searcher.Execute(ctx, q)
}

// ReindexAll rebuilds the index from the entity store. Concurrent calls
// share one rebuild.
func (m *Manager) ReindexAll(ctx context.Context) (ReindexResult, error) {
	v, err, _ := m.reindex.Do("reindex", func() (any, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		if err := m.checkRunning(); err != nil {
			return ReindexResult{}, err
		}
		return m.rebuild(ctx, "request")
	})
	if err != nil {
		return ReindexResult{}, err
	}
	return v.(ReindexResult), nil
}

// rebuild replaces the index contents with documents for every visible
// article. Documents are built before the index is reset, so a failed
// build leaves the old index in place. Queue entries recorded before the
// rebuild started are acknowledged; later ones are applied by the next
// flush.
func (m *Manager) rebuild(ctx context.Context, trigger string) (res ReindexResult, err error) {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	start := time.Now()
	defer func() {
		metrics.ObserveReindex(trigger, err)
		m.refreshGauges(ctx)
	}()

	watermark := m.queue.Watermark()

	var articles []*entity.Article
	err = m.store.ForEachArticle(ctx, func(a *entity.Article) error {
		if a.Visible() {
			articles = append(articles, a)
		}
		return nil
	})
	if err != nil {
		return res, fserrors.New(fserrors.ErrCodeIndexFailed, "failed to read articles", err)
	}

	docs, err := m.docs.BuildAll(ctx, articles, m.opts.ReindexWorkers)
	if err != nil {
		return res, fserrors.New(fserrors.ErrCodeIndexFailed, "failed to build documents", err)
	}

	if err = m.index.Reset(ctx); err != nil {
		return res, fserrors.New(fserrors.ErrCodeIndexFailed, "failed to reset index", err)
	}
	m.logger.Info("index_cleared", slog.String("trigger", trigger))

	for i := 0; i < len(docs); i += m.opts.FlushBatchSize {
		end := min(i+m.opts.FlushBatchSize, len(docs))
		if err = m.index.Apply(ctx, docs[i:end], nil); err != nil {
			return res, fserrors.New(fserrors.ErrCodeIndexFailed, "failed to index documents", err)
		}
	}

	acked, err := m.queue.AckThrough(ctx, watermark)
	if err != nil {
		return res, err
	}

	res = ReindexResult{Documents: len(docs), Duration: time.Since(start)}
	m.logger.Info("reindex_complete",
		slog.String("trigger", trigger),
		slog.Int("documents", res.Documents),
		slog.Int("acked", acked),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// Optimize compacts the index.
func (m *Manager) Optimize(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkRunning(); err != nil {
		return err
	}
	start := time.Now()
	if err := m.index.Optimize(ctx); err != nil {
		return fserrors.New(fserrors.ErrCodeIndexFailed, "failed to optimize index", err)
	}
	m.logger.Info("index_optimized", slog.Duration("duration", time.Since(start)))
	return nil
}

// Check flushes, then compares visible articles with indexed documents.
// With repair set, every inconsistency is queued and flushed again.
func (m *Manager) Check(ctx context.Context, repair bool) (*CheckResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkRunning(); err != nil {
		return nil, err
	}
	if _, err := m.flushLocked(ctx); err != nil {
		return nil, err
	}

	checker := NewChecker(m.store, m.index, m.queue, m.logger)
	result, err := checker.Check(ctx)
	if err != nil || !repair || len(result.Inconsistencies) == 0 {
		return result, err
	}
	if err := checker.Repair(ctx, result.Inconsistencies); err != nil {
		return result, err
	}
	if _, err := m.flushLocked(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// Status reports the lifecycle state and index counters.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{State: m.state, DataDir: m.opts.DataDir, Recovered: m.recovered}
	if m.state != Running {
		return st, nil
	}

	docs, err := m.index.DocCount()
	if err != nil {
		return st, err
	}
	outstanding, err := m.queue.Count(ctx)
	if err != nil {
		return st, err
	}
	st.Documents = docs
	st.Outstanding = outstanding
	return st, nil
}

// Outstanding returns the queued entries in sequence order.
func (m *Manager) Outstanding(ctx context.Context) ([]store.OutstandingEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkRunning(); err != nil {
		return nil, err
	}
	return m.queue.List(ctx, 0)
}

func (m *Manager) refreshGauges(ctx context.Context) {
	if n, err := m.queue.Count(ctx); err == nil {
		metrics.OutstandingEntries.Set(float64(n))
	}
	if n, err := m.index.DocCount(); err == nil {
		metrics.IndexedDocuments.Set(float64(n))
	}
}

func (m *Manager) startTicker() {
	if m.opts.FlushInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.stopTick, m.tickDone = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.opts.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.backgroundFlush(ctx)
			}
		}
	}()
}

// backgroundFlush skips the tick while Startup or Shutdown hold the lock.
func (m *Manager) backgroundFlush(ctx context.Context) {
	if !m.mu.TryRLock() {
		return
	}
	defer m.mu.RUnlock()

	if m.state != Running {
		return
	}
	if _, err := m.flushLocked(ctx); err != nil && ctx.Err() == nil {
		m.logger.Warn("background_flush_failed", slog.Any("error", fserrors.FormatForLog(err)))
	}
}

func (m *Manager) stopTicker() {
	if m.stopTick == nil {
		return
	}
	m.stopTick()
	<-m.tickDone
	m.stopTick, m.tickDone = nil, nil
}
