package answercache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFastStore struct {
	answers map[string]string
	ttls    map[string]time.Duration
	deps    map[uuid.UUID][]string
}

func newFakeFastStore() *fakeFastStore {
	return &fakeFastStore{
		answers: make(map[string]string),
		ttls:    make(map[string]time.Duration),
		deps:    make(map[uuid.UUID][]string),
	}
}

func (f *fakeFastStore) GetAnswer(_ context.Context, hash string) (string, error) {
	answer, ok := f.answers[hash]
	if !ok {
		return "", ErrNotFound
	}
	return answer, nil
}

func (f *fakeFastStore) SetAnswer(_ context.Context, hash, answer string, ttl time.Duration) error {
	f.answers[hash] = answer
	f.ttls[hash] = ttl
	return nil
}

func (f *fakeFastStore) AddDependency(_ context.Context, documentID uuid.UUID, hash string) error {
	f.deps[documentID] = append(f.deps[documentID], hash)
	return nil
}

func (f *fakeFastStore) InvalidateDocument(_ context.Context, documentID uuid.UUID) error {
	for _, hash := range f.deps[documentID] {
		delete(f.answers, hash)
		delete(f.ttls, hash)
	}
	delete(f.deps, documentID)
	return nil
}

type fakeDurableStore struct {
	entries map[string]string
}

func (f *fakeDurableStore) GetByHash(_ context.Context, hash string) (string, error) {
	answer, ok := f.entries[hash]
	if !ok {
		return "", ErrNotFound
	}
	return answer, nil
}

func TestKey_DependsOnQuestionAndContext(t *testing.T) {
	base := Key("pergunta", "contexto")

	assert.Len(t, base, 64)
	assert.Equal(t, base, Key("pergunta", "contexto"))
	assert.NotEqual(t, base, Key("pergunta", "outro contexto"))
	assert.NotEqual(t, base, Key("outra pergunta", "contexto"))
}

func TestLookup_FastTierHit(t *testing.T) {
	fast := newFakeFastStore()
	fast.answers["h1"] = "resposta rápida"
	cache := New(fast, &fakeDurableStore{entries: map[string]string{}}, time.Hour, nil)

	answer, err := cache.Lookup(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "resposta rápida", answer)
}

func TestLookup_DurableHitBackfillsWithoutExpiry(t *testing.T) {
	fast := newFakeFastStore()
	durable := &fakeDurableStore{entries: map[string]string{"h2": "resposta durável"}}
	cache := New(fast, durable, time.Hour, nil)

	answer, err := cache.Lookup(context.Background(), "h2")
	require.NoError(t, err)
	assert.Equal(t, "resposta durável", answer)

	// Backfilled into the fast tier with no expiry.
	assert.Equal(t, "resposta durável", fast.answers["h2"])
	assert.Equal(t, time.Duration(0), fast.ttls["h2"])
}

func TestLookup_FullMiss(t *testing.T) {
	cache := New(newFakeFastStore(), &fakeDurableStore{entries: map[string]string{}}, time.Hour, nil)

	_, err := cache.Lookup(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreFast_SetsTTLAndDependencies(t *testing.T) {
	fast := newFakeFastStore()
	cache := New(fast, &fakeDurableStore{entries: map[string]string{}}, 24*time.Hour, nil)

	docA := uuid.New()
	docB := uuid.New()
	cache.StoreFast(context.Background(), "h3", "resposta gerada", []uuid.UUID{docA, docB})

	assert.Equal(t, "resposta gerada", fast.answers["h3"])
	assert.Equal(t, 24*time.Hour, fast.ttls["h3"])
	assert.Equal(t, []string{"h3"}, fast.deps[docA])
	assert.Equal(t, []string{"h3"}, fast.deps[docB])
}

func TestInvalidateDocument_PurgesFastTierOnly(t *testing.T) {
	fast := newFakeFastStore()
	durable := &fakeDurableStore{entries: map[string]string{"h4": "resposta durável"}}
	cache := New(fast, durable, 24*time.Hour, nil)

	doc := uuid.New()
	cache.StoreFast(context.Background(), "h4", "resposta gerada", []uuid.UUID{doc})
	require.NoError(t, cache.InvalidateDocument(context.Background(), doc))

	_, ok := fast.answers["h4"]
	assert.False(t, ok)
	assert.Empty(t, fast.deps[doc])

	// The durable tier keeps its entry: it is not indexed by document.
	answer, err := durable.GetByHash(context.Background(), "h4")
	require.NoError(t, err)
	assert.Equal(t, "resposta durável", answer)
}
