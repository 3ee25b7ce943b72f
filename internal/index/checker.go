package index

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Aman-CERP/feedsearch/internal/entity"
	"github.com/Aman-CERP/feedsearch/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyMissing is a visible article without a document.
	InconsistencyMissing InconsistencyType = iota
	// InconsistencyOrphan is a document whose article is gone or hidden.
	InconsistencyOrphan
)

func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyMissing:
		return "missing_document"
	case InconsistencyOrphan:
		return "orphan_document"
	default:
		return "unknown"
	}
}

// Inconsistency is one article whose index state is wrong.
type Inconsistency struct {
	Type      InconsistencyType
	ArticleID int64
	Details   string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of visible articles verified.
	Checked int
	// Documents is the number of documents in the index.
	Documents       int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// Consistent reports whether no issue was found.
func (r *CheckResult) Consistent() bool {
	return len(r.Inconsistencies) == 0
}

// DocumentIDs lists the ids held by the index.
type DocumentIDs interface {
	AllIDs(ctx context.Context) ([]string, error)
}

// WorkRecorder queues index work.
type WorkRecorder interface {
	RecordMany(ctx context.Context, entityIDs []int64, event store.IndexEvent) error
}

// Checker compares the entity store (the source of truth) with the index.
type Checker struct {
	store  entity.Store
	index  DocumentIDs
	queue  WorkRecorder
	logger *slog.Logger
}

// NewChecker creates a Checker.
func NewChecker(st entity.Store, idx DocumentIDs, queue WorkRecorder, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{store: st, index: idx, queue: queue, logger: logger}
}

// Check reports visible articles missing from the index and documents
// without a visible article. Queued work that has not been flushed shows
// up as inconsistencies too.
func (c *Checker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	visible := make(map[int64]bool)
	err := c.store.ForEachArticle(ctx, func(a *entity.Article) error {
		if a.Visible() {
			visible[a.ID] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	docIDs, err := c.index.AllIDs(ctx)
	if err != nil {
		return nil, err
	}

	var issues []Inconsistency
	indexed := make(map[int64]bool, len(docIDs))
	for _, raw := range docIDs {
		id, err := store.ParseDocID(raw)
		if err != nil {
			c.logger.Warn("unparseable_document_id", slog.String("id", raw))
			continue
		}
		indexed[id] = true
		if !visible[id] {
			issues = append(issues, Inconsistency{
				Type:      InconsistencyOrphan,
				ArticleID: id,
				Details:   "document without a visible article",
			})
		}
	}
	for id := range visible {
		if !indexed[id] {
			issues = append(issues, Inconsistency{
				Type:      InconsistencyMissing,
				ArticleID: id,
				Details:   "visible article missing from index",
			})
		}
	}
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Type != issues[j].Type {
			return issues[i].Type < issues[j].Type
		}
		return issues[i].ArticleID < issues[j].ArticleID
	})

	return &CheckResult{
		Checked:         len(visible),
		Documents:       len(docIDs),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// Repair queues missing articles as Persisted and orphans as Removed.
// The next flush applies the fix.
func (c *Checker) Repair(ctx context.Context, issues []Inconsistency) error {
	var missing, orphans []int64
	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyMissing:
			missing = append(missing, issue.ArticleID)
		case InconsistencyOrphan:
			orphans = append(orphans, issue.ArticleID)
		}
	}

	if err := c.queue.RecordMany(ctx, missing, store.EventPersisted); err != nil {
		return err
	}
	if err := c.queue.RecordMany(ctx, orphans, store.EventRemoved); err != nil {
		return err
	}
	if len(missing)+len(orphans) > 0 {
		c.logger.Info("consistency_repair_queued",
			slog.Int("missing", len(missing)),
			slog.Int("orphans", len(orphans)))
	}
	return nil
}
