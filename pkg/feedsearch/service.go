// Package feedsearch is the public entry point of the article search core.
//
// A Service owns one index.Manager bound to an entity store. Applications
// call Startup once, search and mutate the store concurrently, and call
// Shutdown (or Close) on exit:
//
//	svc, err := feedsearch.New(store, cfg)
//	if err != nil { ... }
//	if err := svc.Startup(ctx); err != nil { ... }
//	defer svc.Close(ctx)
//
//	hits, err := svc.SearchArticles(ctx, []feedsearch.Condition{
//	    feedsearch.NewCondition(feedsearch.FieldTitle, feedsearch.Contains, feedsearch.TextValue("golang")),
//	}, true)
package feedsearch

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/feedsearch/internal/config"
	"github.com/Aman-CERP/feedsearch/internal/entity"
	fserrors "github.com/Aman-CERP/feedsearch/internal/errors"
	"github.com/Aman-CERP/feedsearch/internal/index"
	"github.com/Aman-CERP/feedsearch/internal/search"
)

// Re-exported query types.
type (
	Condition   = search.Condition
	Hit         = search.Hit
	FieldID     = search.FieldID
	Specifier   = search.Specifier
	Value       = search.Value
	LocationSet = search.LocationSet

	Status        = index.Status
	ReindexResult = index.ReindexResult
	FlushResult   = index.FlushResult
	CheckResult   = index.CheckResult
)

// Fields.
const (
	FieldAllFields          = search.FieldAllFields
	FieldTitle              = search.FieldTitle
	FieldDescription        = search.FieldDescription
	FieldAuthor             = search.FieldAuthor
	FieldCategories         = search.FieldCategories
	FieldAttachmentsContent = search.FieldAttachmentsContent
	FieldLabel              = search.FieldLabel
	FieldState              = search.FieldState
	FieldIsFlagged          = search.FieldIsFlagged
	FieldAge                = search.FieldAge
	FieldLocation           = search.FieldLocation
	FieldFeed               = search.FieldFeed
	FieldHasAttachments     = search.FieldHasAttachments
)

// Specifiers.
const (
	Is            = search.Is
	IsNot         = search.IsNot
	Contains      = search.Contains
	ContainsAll   = search.ContainsAll
	ContainsNot   = search.ContainsNot
	BeginsWith    = search.BeginsWith
	EndsWith      = search.EndsWith
	IsLessThan    = search.IsLessThan
	IsGreaterThan = search.IsGreaterThan
	Scope         = search.Scope
)

// Value constructors.
var (
	NewCondition   = search.NewCondition
	TextValue      = search.TextValue
	StatesValue    = search.StatesValue
	BoolValue      = search.BoolValue
	IntValue       = search.IntValue
	LocationsValue = search.LocationsValue
)

// ScopeCondition restricts a search to the given containers.
func ScopeCondition(set LocationSet) Condition {
	return search.NewCondition(search.FieldLocation, search.Scope, search.LocationsValue(set))
}

// Option customizes a Service.
type Option func(*index.Options)

// WithLogger sets the logger used by the index manager.
func WithLogger(logger *slog.Logger) Option {
	return func(o *index.Options) { o.Logger = logger }
}

// WithClock sets the clock used to resolve relative ages.
func WithClock(clock search.Clock) Option {
	return func(o *index.Options) { o.Clock = clock }
}

// WithDataDir overrides the configured data directory. An empty dir keeps
// the index in memory.
func WithDataDir(dir string) Option {
	return func(o *index.Options) { o.DataDir = dir }
}

// Service is the search core for one entity store.
type Service struct {
	manager *index.Manager
}

// New creates a stopped Service over st. A nil cfg uses defaults.
func New(st entity.Store, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fserrors.ConfigError("invalid configuration", err)
	}
	o := index.OptionsFromConfig(cfg)
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{manager: index.NewManager(st, o)}, nil
}

// Startup opens the index and the outstanding-work queue.
func (s *Service) Startup(ctx context.Context) error {
	return s.manager.Startup(ctx)
}

// Shutdown closes the index. The service can be started again.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.manager.Shutdown(ctx)
}

// Close shuts down and detaches from the entity store.
func (s *Service) Close(ctx context.Context) error {
	return s.manager.Close(ctx)
}

// SearchArticles returns articles matching all (requireAll) or any of the
// conditions.
func (s *Service) SearchArticles(ctx context.Context, conditions []Condition, requireAll bool) ([]Hit, error) {
	return s.manager.Search(ctx, conditions, nil, requireAll)
}

// SearchArticlesInScope is SearchArticles intersected with scope.
func (s *Service) SearchArticlesInScope(ctx context.Context, conditions []Condition, scope Condition, requireAll bool) ([]Hit, error) {
	return s.manager.Search(ctx, conditions, &scope, requireAll)
}

// ReindexAll rebuilds the index from the entity store.
func (s *Service) ReindexAll(ctx context.Context) (ReindexResult, error) {
	return s.manager.ReindexAll(ctx)
}

// Optimize compacts the index.
func (s *Service) Optimize(ctx context.Context) error {
	return s.manager.Optimize(ctx)
}

// Flush applies outstanding work to the index.
func (s *Service) Flush(ctx context.Context) (FlushResult, error) {
	return s.manager.Flush(ctx)
}

// Status reports lifecycle state, document count and queue depth.
func (s *Service) Status(ctx context.Context) (Status, error) {
	return s.manager.Status(ctx)
}

// Check compares the index with the entity store and, with repair,
// queues and applies the work that fixes every difference.
func (s *Service) Check(ctx context.Context, repair bool) (*CheckResult, error) {
	return s.manager.Check(ctx, repair)
}
