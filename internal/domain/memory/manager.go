package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// DefaultQueryLimit is used when a query does not specify a limit.
const DefaultQueryLimit = 5

// ManagerConfig tunes the hybrid scoring of a Manager.
type ManagerConfig struct {
	Weights    valueobject.ScoreWeights
	HalfLifeMS int64
}

// Manager is the base memory manager. It owns the write path (embed, vector
// upsert, repository save, rollback on failure) and the hybrid-scored read
// path. Tenant isolation is layered on top by ScopedManager.
type Manager struct {
	store    VectorStore
	repo     Repository
	embedder EmbeddingProvider
	guard    PoisonGuard
	cfg      ManagerConfig
	logger   *zap.Logger
	now      func() time.Time
}

// ManagerOption customizes a Manager at construction.
type ManagerOption func(*Manager)

// WithPoisonGuard installs a guard consulted before every write.
func WithPoisonGuard(g PoisonGuard) ManagerOption {
	return func(m *Manager) { m.guard = g }
}

// WithClock overrides the manager's time source for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a Manager with default weights and half-life unless
// overridden in cfg.
func NewManager(store VectorStore, repo Repository, embedder EmbeddingProvider, cfg ManagerConfig, logger *zap.Logger, opts ...ManagerOption) *Manager {
	if cfg.Weights == (valueobject.ScoreWeights{}) {
		cfg.Weights = valueobject.DefaultScoreWeights()
	}
	if cfg.HalfLifeMS <= 0 {
		cfg.HalfLifeMS = valueobject.DefaultHalfLifeMS
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		store:    store,
		repo:     repo,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) nowMS() int64 {
	return m.now().UnixMilli()
}

// AddEpisodic stores an episodic memory.
func (m *Manager) AddEpisodic(ctx context.Context, id, content, eventType string, meta valueobject.MemoryMetadata) (*valueobject.MemoryItem, error) {
	item, err := valueobject.NewEpisodic(id, content, eventType, m.nowMS(), meta)
	if err != nil {
		return nil, err
	}
	if err := m.save(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// AddSemantic stores a semantic memory.
func (m *Manager) AddSemantic(ctx context.Context, id, content string, factConfidence float64, meta valueobject.MemoryMetadata) (*valueobject.MemoryItem, error) {
	item, err := valueobject.NewSemantic(id, content, factConfidence, m.nowMS(), meta)
	if err != nil {
		return nil, err
	}
	if err := m.save(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// AddProcedural stores a procedural memory.
func (m *Manager) AddProcedural(ctx context.Context, id, content, planSummary string, successRate float64, meta valueobject.MemoryMetadata) (*valueobject.MemoryItem, error) {
	item, err := valueobject.NewProcedural(id, content, planSummary, successRate, m.nowMS(), meta)
	if err != nil {
		return nil, err
	}
	if err := m.save(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// save runs the write path: guard, embed, vector upsert, repository save.
// The vector upsert happens first so that a repository failure can roll the
// vector entry back; the reverse order could leave a saved memory invisible
// to similarity search, breaking the vector ⊆ repository containment.
func (m *Manager) save(ctx context.Context, item *valueobject.MemoryItem) error {
	if m.guard != nil {
		if err := m.guard.Check(ctx, item); err != nil {
			return err
		}
	}

	vector, err := m.embedder.Embed(ctx, item.Content)
	if err != nil {
		return apperrors.NewUpstreamError("embedding failed", err)
	}

	meta := map[string]string{MetaType: string(item.Kind)}
	if item.Metadata.GoalID != "" {
		meta[MetaGoalID] = item.Metadata.GoalID
	}
	if scope, ok := scopeOf(item.ID); ok {
		meta[MetaScope] = scope
	}

	if err := m.store.Upsert(ctx, VectorRecord{ID: item.ID, Vector: vector, Metadata: meta}); err != nil {
		return apperrors.NewUpstreamError("vector store upsert failed", err)
	}

	if err := m.repo.Save(ctx, item); err != nil {
		// Best-effort rollback keeps the vector index a subset of the
		// repository; the original error is what the caller sees.
		if delErr := m.store.Delete(ctx, item.ID); delErr != nil {
			m.logger.Warn("vector rollback failed",
				zap.String("id", item.ID),
				zap.Error(delErr),
			)
		}
		return err
	}
	return nil
}

// scopeOf extracts the scope prefix of a physical id, if present.
func scopeOf(id string) (string, bool) {
	idx := strings.Index(id, valueobject.ScopeSeparator)
	if idx <= 0 {
		return "", false
	}
	return id[:idx], true
}

// Query embeds the text, searches the vector store with the pushed-down
// filter, scores each hit (similarity × time-decay × goal-relevance), marks
// the returned memories accessed, and returns the top results by aggregate
// score.
func (m *Manager) Query(ctx context.Context, req QueryRequest) ([]valueobject.SearchResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, apperrors.NewInvalidInputError("query text must not be empty")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	vector, err := m.embedder.Embed(ctx, req.Text)
	if err != nil {
		return nil, apperrors.NewUpstreamError("embedding failed", err)
	}

	filter := Filter{}
	if req.Scope != "" {
		filter[MetaScope] = []string{req.Scope}
	}
	if len(req.Kinds) > 0 {
		kinds := make([]string, len(req.Kinds))
		for i, k := range req.Kinds {
			kinds[i] = string(k)
		}
		filter[MetaType] = kinds
	}

	// The store performs filter push-down, so no over-sampling here.
	matches, err := m.store.Search(ctx, vector, limit, filter)
	if err != nil {
		return nil, apperrors.NewUpstreamError("vector search failed", err)
	}

	nowMS := m.nowMS()
	results := make([]valueobject.SearchResult, 0, len(matches))
	for _, match := range matches {
		item, err := m.repo.Get(ctx, match.ID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				m.logger.Warn("vector hit without repository record", zap.String("id", match.ID))
				continue
			}
			return nil, err
		}

		decay := m.timeDecay(item, nowMS)
		relevance := goalRelevance(item.Content, req.Goals)
		results = append(results, valueobject.SearchResult{
			Memory:        item,
			Similarity:    match.Similarity,
			TimeDecay:     decay,
			GoalRelevance: relevance,
			Score:         m.cfg.Weights.Combine(match.Similarity, decay, relevance),
		})

		item.Touch(nowMS)
		if err := m.repo.UpdateAccess(ctx, item.ID, nowMS); err != nil {
			m.logger.Warn("updateAccess failed", zap.String("id", item.ID), zap.Error(err))
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// InjectForPrompt formats query results as "[<type>] <content>" lines for
// interpolation into an LLM prompt.
func (m *Manager) InjectForPrompt(ctx context.Context, req QueryRequest) (string, error) {
	return injectForPrompt(ctx, m, req)
}

func injectForPrompt(ctx context.Context, s Store, req QueryRequest) (string, error) {
	results, err := s.Query(ctx, req)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("[%s] %s", r.Memory.Kind, r.Memory.Content))
	}
	return strings.Join(lines, "\n"), nil
}

func (m *Manager) timeDecay(item *valueobject.MemoryItem, nowMS int64) float64 {
	age := nowMS - item.CreatedAt
	if age < 0 {
		age = 0
	}
	return math.Exp(-float64(age) / float64(m.cfg.HalfLifeMS))
}

// goalRelevance is the best token-overlap score of the content against any
// goal's title+description. Tokens are lowercased, split on non-alphanumeric
// runs, and must be at least two characters long.
func goalRelevance(content string, goals []*valueobject.Goal) float64 {
	if len(goals) == 0 {
		return 0
	}
	contentTokens := tokenize(content)
	if len(contentTokens) == 0 {
		return 0
	}
	best := 0.0
	for _, g := range goals {
		goalTokens := tokenize(g.Title + " " + g.Description)
		if score := jaccard(contentTokens, goalTokens); score > best {
			best = score
		}
	}
	return best
}

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(tok) >= 2 {
			tokens[tok] = true
		}
	}
	return tokens
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
