package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway scripts a sequence of errors before succeeding.
type fakeGateway struct {
	embedErrs []error
	chatErrs  []error
	embedCall int
	chatCall  int
	vectors   [][]float32
	reply     string
}

func (f *fakeGateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.embedCall++
	if len(f.embedErrs) > 0 {
		err := f.embedErrs[0]
		f.embedErrs = f.embedErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.vectors, nil
}

func (f *fakeGateway) ChatStructured(ctx context.Context, messages []Message, schema Schema, out any) error {
	f.chatCall++
	if len(f.chatErrs) > 0 {
		err := f.chatErrs[0]
		f.chatErrs = f.chatErrs[1:]
		if err != nil {
			return err
		}
	}
	return decodeStructured("fake", f.reply, out)
}

func transientErr() error {
	return &Error{Provider: "fake", Status: 429, Message: "rate limited", Transient: true}
}

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	fake := &fakeGateway{
		embedErrs: []error{transientErr(), transientErr()},
		vectors:   [][]float32{{0.1, 0.2}},
	}
	g := &retryGateway{inner: fake, maxAttempts: 3, baseDelay: 0}

	vecs, err := g.Embed(context.Background(), []string{"Lives in Austin"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, 3, fake.embedCall)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	fake := &fakeGateway{
		embedErrs: []error{transientErr(), transientErr(), transientErr()},
	}
	g := &retryGateway{inner: fake, maxAttempts: 3, baseDelay: 0}

	_, err := g.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 3, fake.embedCall)
}

func TestRetryDoesNotRetryPermanentErrors(t *testing.T) {
	fake := &fakeGateway{
		chatErrs: []error{&Error{Provider: "fake", Status: 400, Message: "bad request"}},
	}
	g := &retryGateway{inner: fake, maxAttempts: 3, baseDelay: 0}

	var out struct{}
	err := g.ChatStructured(context.Background(), nil, Schema{}, &out)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Equal(t, 1, fake.chatCall)
}

func TestIsTransientClassification(t *testing.T) {
	assert.True(t, IsTransient(&Error{Status: 429, Transient: true}))
	assert.False(t, IsTransient(&Error{Status: 400}))
	assert.False(t, IsTransient(errors.New("plain error")))
	assert.True(t, transientStatus(503))
	assert.True(t, transientStatus(408))
	assert.False(t, transientStatus(404))
}

func TestDecodeStructuredHandlesFences(t *testing.T) {
	var out struct {
		Summary string `json:"summary"`
	}
	err := decodeStructured("fake", "```json\n{\"summary\": \"ok\"}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Summary)
}

func TestDecodeStructuredRejectsNonJSON(t *testing.T) {
	var out struct{}
	err := decodeStructured("fake", "I could not produce JSON, sorry.", &out)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}
