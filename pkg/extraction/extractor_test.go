package extraction

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajat1299/memoire/pkg/config"
	"github.com/rajat1299/memoire/pkg/llm"
	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/queue"
	"github.com/rajat1299/memoire/pkg/store"
)

func factCfg() *config.FactConfig {
	return &config.FactConfig{
		WindowSize:        5,
		MinConfidence:     0.5,
		DupThreshold:      75,
		SemanticThreshold: 0.92,
	}
}

// fakeStore records the commit it receives.
type fakeStore struct {
	session  *models.Session
	messages []models.ChatLog
	facts    []models.Fact

	inserts       []*models.Fact
	refreshes     []store.FactRefresh
	supersessions []store.FactSupersession
	committed     bool
}

func (s *fakeStore) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return s.session, nil
}

func (s *fakeStore) RecentMessages(ctx context.Context, sessionID uuid.UUID, n int) ([]models.ChatLog, error) {
	if len(s.messages) > n {
		return s.messages[len(s.messages)-n:], nil
	}
	return s.messages, nil
}

func (s *fakeStore) LiveFactsByUser(ctx context.Context, userID uuid.UUID) ([]models.Fact, error) {
	return s.facts, nil
}

func (s *fakeStore) CommitExtraction(ctx context.Context, inserts []*models.Fact, refreshes []store.FactRefresh, supersessions []store.FactSupersession) error {
	s.inserts = inserts
	s.refreshes = refreshes
	s.supersessions = supersessions
	s.committed = true
	return nil
}

// fakeLLM returns a scripted extraction response.
type fakeLLM struct {
	response extractionResponse
	chatErr  error
	embedErr error
	dim      int
}

func (g *fakeLLM) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if g.embedErr != nil {
		return nil, g.embedErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, g.dim)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}

func (g *fakeLLM) ChatStructured(ctx context.Context, messages []llm.Message, schema llm.Schema, out any) error {
	if g.chatErr != nil {
		return g.chatErr
	}
	raw, _ := json.Marshal(g.response)
	return json.Unmarshal(raw, out)
}

func newSessionStore() *fakeStore {
	userID := uuid.New()
	sessionID := uuid.New()
	return &fakeStore{
		session: &models.Session{ID: sessionID, UserID: userID},
		messages: []models.ChatLog{
			{ID: uuid.New(), SessionID: sessionID, Role: models.RoleUser, Content: "Some context", Timestamp: time.Now().Add(-time.Minute)},
			{ID: uuid.New(), SessionID: sessionID, Role: models.RoleUser, Content: "The latest message", Timestamp: time.Now()},
		},
	}
}

func strptr(s string) *string { return &s }

func TestRunNoMessages(t *testing.T) {
	st := &fakeStore{session: &models.Session{}}
	w := NewWorker(st, &fakeLLM{}, factCfg())

	result, err := w.Run(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "no_messages", result.Status)
	assert.False(t, st.committed)
}

func TestRunInsertsValidatedFacts(t *testing.T) {
	st := newSessionStore()
	g := &fakeLLM{
		dim: 4,
		response: extractionResponse{Facts: []extractedFact{
			{Category: models.CategoryWorkContext, Content: "Works at Google", Confidence: 0.9, SlotHint: strptr("employer")},
			{Category: models.CategoryWorkContext, Content: "Is a senior engineer", Confidence: 0.85, SlotHint: strptr("role")},
			{Category: models.CategoryBiographical, Content: "Austin", Confidence: 0.2}, // below C_min
			{Category: models.CategoryLearning, Content: "Spanish?", Confidence: 0.9},   // question
		}},
	}
	w := NewWorker(st, g, factCfg())

	result, err := w.Run(context.Background(), st.session.ID)
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, 4, result.Extracted)
	assert.Equal(t, 2, result.Saved)

	require.Len(t, st.inserts, 2)
	for _, f := range st.inserts {
		assert.Equal(t, st.session.UserID, f.UserID)
		assert.Len(t, f.Embedding, 4)
		require.NotNil(t, f.SourceMessageID)
		assert.Equal(t, st.messages[len(st.messages)-1].ID, *f.SourceMessageID)
	}
	// Different slots: no supersessions between the two staged facts.
	assert.Empty(t, st.supersessions)
}

func TestRunSupersessionBySlot(t *testing.T) {
	st := newSessionStore()
	employer := "employer"
	role := "role"
	google := models.Fact{
		ID: uuid.New(), UserID: st.session.UserID,
		Category: models.CategoryWorkContext, Content: "Works at Google",
		Confidence: 0.9, SlotHint: &employer, TemporalState: models.TemporalCurrent,
	}
	engineer := models.Fact{
		ID: uuid.New(), UserID: st.session.UserID,
		Category: models.CategoryWorkContext, Content: "Is a senior engineer",
		Confidence: 0.85, SlotHint: &role, TemporalState: models.TemporalCurrent,
	}
	st.facts = []models.Fact{google, engineer}

	g := &fakeLLM{
		dim: 4,
		response: extractionResponse{Facts: []extractedFact{
			{Category: models.CategoryWorkContext, Content: "Works at OpenAI", Confidence: 0.9, SlotHint: strptr("employer")},
		}},
	}
	w := NewWorker(st, g, factCfg())

	result, err := w.Run(context.Background(), st.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Saved)

	require.Len(t, st.supersessions, 1)
	assert.Equal(t, google.ID, st.supersessions[0].ExistingID)
	assert.Equal(t, st.inserts[0].ID, st.supersessions[0].NewID)
}

func TestRunSupersessionConfidenceGate(t *testing.T) {
	st := newSessionStore()
	employer := "employer"
	st.facts = []models.Fact{{
		ID: uuid.New(), UserID: st.session.UserID,
		Category: models.CategoryWorkContext, Content: "Works at Google",
		Confidence: 0.95, SlotHint: &employer, TemporalState: models.TemporalCurrent,
	}}

	g := &fakeLLM{
		dim: 4,
		response: extractionResponse{Facts: []extractedFact{
			// 0.5 < 0.95 - 0.15: the weaker incoming fact must not displace.
			{Category: models.CategoryWorkContext, Content: "Works at a startup", Confidence: 0.5, SlotHint: strptr("employer")},
		}},
	}
	w := NewWorker(st, g, factCfg())

	_, err := w.Run(context.Background(), st.session.ID)
	require.NoError(t, err)
	assert.Empty(t, st.supersessions)
	assert.Len(t, st.inserts, 1)
}

func TestRunDedupRefreshesExisting(t *testing.T) {
	st := newSessionStore()
	sf := models.Fact{
		ID: uuid.New(), UserID: st.session.UserID,
		Category: models.CategoryBiographical, Content: "Lives in San Francisco",
		Confidence: 0.7, TemporalState: models.TemporalCurrent,
	}
	st.facts = []models.Fact{sf}

	g := &fakeLLM{
		dim: 4,
		response: extractionResponse{Facts: []extractedFact{
			{Category: models.CategoryBiographical, Content: "Lives in San Francisco now", Confidence: 0.9},
		}},
	}
	w := NewWorker(st, g, factCfg())

	result, err := w.Run(context.Background(), st.session.ID)
	require.NoError(t, err)
	assert.Zero(t, result.Saved)
	require.Len(t, st.refreshes, 1)
	assert.Equal(t, sf.ID, st.refreshes[0].ID)
	assert.InDelta(t, 0.9, st.refreshes[0].Confidence, 1e-9)
}

func TestRunPastFactDoesNotClaimSlot(t *testing.T) {
	st := newSessionStore()
	location := "location"
	g := &fakeLLM{
		dim: 4,
		response: extractionResponse{Facts: []extractedFact{
			{Category: models.CategoryBiographical, Content: "Previously lived in Dallas", Confidence: 0.8, SlotHint: &location, TemporalState: models.TemporalPast},
			{Category: models.CategoryBiographical, Content: "Lives in Austin", Confidence: 0.9, SlotHint: &location, TemporalState: models.TemporalCurrent},
		}},
	}
	w := NewWorker(st, g, factCfg())

	result, err := w.Run(context.Background(), st.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Saved)
	// The past fact stays alive alongside the current one.
	assert.Empty(t, st.supersessions)
}

func TestRunEmbedFailureStillCommits(t *testing.T) {
	st := newSessionStore()
	g := &fakeLLM{
		embedErr: &llm.Error{Provider: "fake", Status: 500, Transient: true},
		response: extractionResponse{Facts: []extractedFact{
			{Category: models.CategoryUserPreference, Content: "Prefers dark mode", Confidence: 0.8},
		}},
	}
	w := NewWorker(st, g, factCfg())

	result, err := w.Run(context.Background(), st.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Saved)
	require.Len(t, st.inserts, 1)
	assert.Nil(t, st.inserts[0].Embedding)
}

func TestHandleJobTransientErrorRequestsRetry(t *testing.T) {
	st := newSessionStore()
	g := &fakeLLM{chatErr: &llm.Error{Provider: "fake", Status: 429, Transient: true}}
	w := NewWorker(st, g, factCfg())

	args, _ := json.Marshal(models.ExtractFactsArgs{SessionID: st.session.ID})
	err := w.HandleJob(context.Background(), &models.Job{Args: args})

	var retryErr *queue.RetryError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, 30*time.Second, retryErr.Defer)
}

func TestHandleJobPermanentErrorConsumesJob(t *testing.T) {
	st := newSessionStore()
	g := &fakeLLM{chatErr: &llm.Error{Provider: "fake", Status: 400}}
	w := NewWorker(st, g, factCfg())

	args, _ := json.Marshal(models.ExtractFactsArgs{SessionID: st.session.ID})
	assert.NoError(t, w.HandleJob(context.Background(), &models.Job{Args: args}))
}

func TestRunIsIdempotentOverReplay(t *testing.T) {
	st := newSessionStore()
	g := &fakeLLM{
		dim: 4,
		response: extractionResponse{Facts: []extractedFact{
			{Category: models.CategoryBiographical, Content: "Lives in Austin", Confidence: 0.9, SlotHint: strptr("location")},
		}},
	}
	w := NewWorker(st, g, factCfg())

	_, err := w.Run(context.Background(), st.session.ID)
	require.NoError(t, err)
	require.Len(t, st.inserts, 1)

	// Replay with the first run's insert now part of the live set: the same
	// extraction dedups into a refresh instead of a second row.
	st.facts = append(st.facts, *st.inserts[0])
	result, err := w.Run(context.Background(), st.session.ID)
	require.NoError(t, err)
	assert.Zero(t, result.Saved)
	assert.Equal(t, 1, result.Refreshed)
}
