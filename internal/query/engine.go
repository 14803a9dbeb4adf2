package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/imagevault/imagevault/internal/distance"
	verrors "github.com/imagevault/imagevault/internal/errors"
	"github.com/imagevault/imagevault/internal/extract"
	"github.com/imagevault/imagevault/internal/store"
)

// DefaultReferenceCacheSize bounds the similarity reference cache.
const DefaultReferenceCacheSize = 16

// SearchState is the engine's session state: the last executed token list,
// the filter it compiled to, and the ordered result set.
type SearchState struct {
	Tokens  []string
	Filter  store.Filter
	Results []*store.Image
}

// Config wires an Engine.
type Config struct {
	Store     store.Store
	Extractor *extract.Extractor

	// MaxResults caps the result set. Zero means 100.
	MaxResults int
	// MaxDistance excludes ranked rows beyond this distance. Zero means
	// 1000.
	MaxDistance float64
	// ReferenceCacheSize bounds the similar: reference cache. Zero means
	// DefaultReferenceCacheSize.
	ReferenceCacheSize int
}

// Engine executes text queries against the store. Safe for concurrent use.
type Engine struct {
	store     store.Store
	extractor *extract.Extractor

	maxResults  int
	maxDistance float64

	// refs caches extracted reference images keyed by the lowercased
	// user-supplied path, so repeating a similar: term skips the embedding
	// step entirely.
	refs *lru.Cache[string, *store.Image]

	mu    sync.Mutex
	state SearchState
}

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, verrors.New(verrors.ErrCodeInternal, "query engine requires a store", nil)
	}
	if cfg.Extractor == nil {
		cfg.Extractor = extract.New()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = 1000
	}
	if cfg.ReferenceCacheSize <= 0 {
		cfg.ReferenceCacheSize = DefaultReferenceCacheSize
	}

	refs, err := lru.New[string, *store.Image](cfg.ReferenceCacheSize)
	if err != nil {
		return nil, verrors.New(verrors.ErrCodeInternal, "cannot create reference cache", err)
	}

	return &Engine{
		store:       cfg.Store,
		extractor:   cfg.Extractor,
		maxResults:  cfg.MaxResults,
		maxDistance: cfg.MaxDistance,
		refs:        refs,
	}, nil
}

// Search tokenizes and executes text. Empty or whitespace-only input is a
// no-op that returns the previous result set unchanged. A tokenizer or
// reference failure also leaves the previous results intact.
func (e *Engine) Search(ctx context.Context, text string) ([]*store.Image, error) {
	if strings.TrimSpace(text) == "" {
		return e.Results(), nil
	}

	tokens, err := Tokenize(text)
	if err != nil {
		return nil, err
	}

	compiled := Compile(tokens)

	var rank *store.RankSpec
	if compiled.HasReference {
		ref, err := e.resolveReference(compiled.ReferencePath)
		if err != nil {
			return nil, err
		}
		rank = &store.RankSpec{
			Function:    distance.FuncCosine,
			Reference:   ref.VisualHash,
			MaxDistance: e.maxDistance,
		}
	}

	results, err := e.store.Find(ctx, compiled.Filter, rank, e.maxResults)
	if err != nil {
		return nil, err
	}

	slog.Debug("query executed",
		slog.Int("tokens", len(tokens)),
		slog.Bool("ranked", rank != nil),
		slog.Int("results", len(results)))

	e.mu.Lock()
	e.state = SearchState{Tokens: tokens, Filter: compiled.Filter, Results: results}
	e.mu.Unlock()

	return results, nil
}

// Results returns the last result set.
func (e *Engine) Results() []*store.Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Results
}

// State returns a snapshot of the session state.
func (e *Engine) State() SearchState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// resolveReference returns the reference image for a similar: term,
// extracting it only when the (case-insensitively keyed) cache misses.
func (e *Engine) resolveReference(path string) (*store.Image, error) {
	key := strings.ToLower(path)
	if cached, ok := e.refs.Get(key); ok {
		return cached, nil
	}

	img, err := e.extractor.FromFile(path)
	if err != nil {
		return nil, verrors.New(verrors.ErrCodeBadReference,
			fmt.Sprintf("cannot load reference image %s", path), err)
	}
	if len(img.VisualHash) == 0 {
		return nil, verrors.New(verrors.ErrCodeBadReference,
			fmt.Sprintf("reference image %s has no visual hash", path), nil)
	}

	e.refs.Add(key, img)
	return img, nil
}
