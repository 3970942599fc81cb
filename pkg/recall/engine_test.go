package recall

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajat1299/memoire/pkg/config"
	"github.com/rajat1299/memoire/pkg/llm"
	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/store"
)

func recallCfg() *config.RecallConfig {
	return &config.RecallConfig{
		MaxLimit:             20,
		VectorDistanceMax:    0.75,
		LexicalSimilarityMin: 30,
	}
}

// fakeStore serves scripted result sets and records the filters it saw.
type fakeStore struct {
	vectorHits  []models.Fact
	candidates  []models.Fact
	balanced    []models.Fact
	highConf    []models.Fact
	lastFilters store.FactFilters
}

func (s *fakeStore) VectorSearch(ctx context.Context, f store.FactFilters, embedding []float32, maxDistance float64, limit int) ([]models.Fact, error) {
	s.lastFilters = f
	if len(s.vectorHits) > limit {
		return s.vectorHits[:limit], nil
	}
	return s.vectorHits, nil
}

func (s *fakeStore) LexicalCandidates(ctx context.Context, f store.FactFilters, limit int) ([]models.Fact, error) {
	s.lastFilters = f
	return s.candidates, nil
}

func (s *fakeStore) BalancedFacts(ctx context.Context, f store.FactFilters, perCategory int) ([]models.Fact, error) {
	var out []models.Fact
	count := make(map[models.FactCategory]int)
	for _, fact := range s.balanced {
		if count[fact.Category] < perCategory {
			out = append(out, fact)
			count[fact.Category]++
		}
	}
	return out, nil
}

func (s *fakeStore) HighConfidenceFacts(ctx context.Context, f store.FactFilters, minConfidence float64, limit int) ([]models.Fact, error) {
	var out []models.Fact
	for _, fact := range s.highConf {
		if fact.Confidence >= minConfidence && len(out) < limit {
			out = append(out, fact)
		}
	}
	return out, nil
}

type fakeEmbedder struct {
	err error
}

func (g *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if g.err != nil {
		return nil, g.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (g *fakeEmbedder) ChatStructured(ctx context.Context, messages []llm.Message, schema llm.Schema, out any) error {
	return nil
}

func mkFact(category models.FactCategory, content string, confidence float64) models.Fact {
	return models.Fact{
		ID:            uuid.New(),
		Category:      category,
		Content:       content,
		Confidence:    confidence,
		TemporalState: models.TemporalCurrent,
	}
}

func TestRecallEmptyStoreReturnsEmpty(t *testing.T) {
	e := NewEngine(&fakeStore{}, &fakeEmbedder{}, recallCfg(), nil)
	out, err := e.Recall(context.Background(), Request{
		UserID: uuid.New(), Query: "Where do I live?", Limit: 5, CurrentViewOnly: true,
	})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRecallVectorHitsComeFirst(t *testing.T) {
	austin := mkFact(models.CategoryBiographical, "Lives in Austin", 0.9)
	st := &fakeStore{vectorHits: []models.Fact{austin}}
	e := NewEngine(st, &fakeEmbedder{}, recallCfg(), nil)

	out, err := e.Recall(context.Background(), Request{
		UserID: uuid.New(), Query: "Where do I live?", Limit: 5, CurrentViewOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Lives in Austin", out[0].Content)
	// The intent hint narrowed the SQL filter to biographical.
	assert.Equal(t, []models.FactCategory{models.CategoryBiographical}, st.lastFilters.Categories)
}

func TestRecallEmbeddingFailureFallsBackToLexical(t *testing.T) {
	austin := mkFact(models.CategoryBiographical, "Lives in Austin", 0.9)
	noise := mkFact(models.CategoryBiographical, "Born in Berlin", 0.9)
	st := &fakeStore{candidates: []models.Fact{noise, austin}}
	g := &fakeEmbedder{err: &llm.Error{Provider: "fake", Status: 503, Transient: true}}
	e := NewEngine(st, g, recallCfg(), nil)

	out, err := e.Recall(context.Background(), Request{
		UserID: uuid.New(), Query: "do i still live in austin", Limit: 2, CurrentViewOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Lives in Austin", out[0].Content)
}

func TestRecallLexicalDropsBelowSimilarityFloor(t *testing.T) {
	unrelated := mkFact(models.CategoryBiographical, "Born near the mountains", 0.99)
	st := &fakeStore{candidates: []models.Fact{unrelated}}
	g := &fakeEmbedder{err: &llm.Error{Provider: "fake", Status: 503, Transient: true}}
	e := NewEngine(st, g, recallCfg(), nil)

	out, err := e.Recall(context.Background(), Request{
		UserID: uuid.New(), Query: "coffee drink order", Limit: 5, CurrentViewOnly: true,
	})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRecallLexicalCompositeOrdering(t *testing.T) {
	// Equal similarity: confidence decides via the 30x term.
	strong := mkFact(models.CategoryWorkContext, "Works at Google", 0.95)
	weak := mkFact(models.CategoryWorkContext, "Works at Google", 0.4)
	st := &fakeStore{candidates: []models.Fact{weak, strong}}
	g := &fakeEmbedder{err: &llm.Error{Provider: "fake", Status: 503, Transient: true}}
	e := NewEngine(st, g, recallCfg(), nil)

	out, err := e.Recall(context.Background(), Request{
		UserID: uuid.New(), Query: "works at google", Limit: 2, CurrentViewOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 0.95, out[0].Confidence, 1e-9)
}

func TestRecallHintGatesLexicalPool(t *testing.T) {
	work := mkFact(models.CategoryWorkContext, "Job is data engineer", 0.9)
	pref := mkFact(models.CategoryUserPreference, "Likes job hunting", 0.9)
	st := &fakeStore{candidates: []models.Fact{work, pref}}
	g := &fakeEmbedder{err: &llm.Error{Provider: "fake", Status: 503, Transient: true}}
	e := NewEngine(st, g, recallCfg(), nil)

	out, err := e.Recall(context.Background(), Request{
		UserID: uuid.New(), Query: "what is my job", Limit: 5, CurrentViewOnly: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, out)
	for _, f := range out {
		assert.Equal(t, models.CategoryWorkContext, f.Category)
	}
}

func TestRecallGenericFallbackBalancedSlate(t *testing.T) {
	st := &fakeStore{
		balanced: []models.Fact{
			mkFact(models.CategoryUserPreference, "Prefers dark mode", 0.9),
			mkFact(models.CategoryBiographical, "Lives in Austin", 0.9),
			mkFact(models.CategoryWorkContext, "Works at Google", 0.9),
			mkFact(models.CategoryRelationship, "Manager is Sarah", 0.9),
			mkFact(models.CategoryLearning, "Learning Spanish", 0.9),
		},
		highConf: []models.Fact{
			mkFact(models.CategoryBiographical, "Born in Berlin", 0.95),
		},
	}
	e := NewEngine(st, &fakeEmbedder{}, recallCfg(), nil)

	out, err := e.Recall(context.Background(), Request{
		UserID: uuid.New(), Query: "Tell me about myself.", Limit: 5, CurrentViewOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, out, 5)

	// One fact per category: breadth over depth for generic queries.
	seen := make(map[models.FactCategory]int)
	for _, f := range out {
		seen[f.Category]++
	}
	assert.Len(t, seen, 5)
}

func TestRecallGenericIgnoresIntentHints(t *testing.T) {
	// "know about me" contains no category tokens, but even a query with
	// both generic shape and hint tokens must not narrow the filter.
	st := &fakeStore{}
	e := NewEngine(st, &fakeEmbedder{}, recallCfg(), nil)

	_, err := e.Recall(context.Background(), Request{
		UserID: uuid.New(), Query: "what do you know about me and where I live", Limit: 5, CurrentViewOnly: true,
	})
	require.NoError(t, err)
	assert.Empty(t, st.lastFilters.Categories)
}

func TestRecallTemporalStateDefaultsToCurrent(t *testing.T) {
	f := mkFact(models.CategoryBiographical, "Lives in Austin", 0.9)
	f.TemporalState = ""
	st := &fakeStore{vectorHits: []models.Fact{f}}
	e := NewEngine(st, &fakeEmbedder{}, recallCfg(), nil)

	out, err := e.Recall(context.Background(), Request{
		UserID: uuid.New(), Query: "where do i live", Limit: 1, CurrentViewOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, models.TemporalCurrent, out[0].TemporalState)
}

func TestRecallMaxAgeFilterReachesStore(t *testing.T) {
	st := &fakeStore{}
	e := NewEngine(st, &fakeEmbedder{}, recallCfg(), nil)

	days := 30
	_, err := e.Recall(context.Background(), Request{
		UserID: uuid.New(), Query: "where do i live", Limit: 5,
		CurrentViewOnly: true, MaxAgeDays: &days,
	})
	require.NoError(t, err)
	require.NotNil(t, st.lastFilters.CreatedAfter)
}
