package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore — управляемое хранилище: содержимое и инъекция ошибок.
type fakeStore struct {
	mu   sync.Mutex
	ids  map[string]struct{}
	fail error
}

func newFakeStore(ids ...string) *fakeStore {
	s := &fakeStore{ids: make(map[string]struct{})}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *fakeStore) SelectAll(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out, nil
}

func (s *fakeStore) Insert(ctx context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.ids[channelID] = struct{}{}
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	delete(s.ids, channelID)
	return nil
}

func TestAddRemoveLookup(t *testing.T) {
	ctx := context.Background()
	r := New(newFakeStore(), zap.NewNop())

	assert.False(t, r.IsHoneypot("c1"))

	require.NoError(t, r.Add(ctx, "c1"))
	assert.True(t, r.IsHoneypot("c1"))
	assert.False(t, r.IsHoneypot("c2"))

	// Повторное добавление идемпотентно
	require.NoError(t, r.Add(ctx, "c1"))
	assert.True(t, r.IsHoneypot("c1"))
	assert.Len(t, r.List(), 1)

	require.NoError(t, r.Remove(ctx, "c1"))
	assert.False(t, r.IsHoneypot("c1"))

	// Удаление несуществующего — тоже no-op без ошибки
	require.NoError(t, r.Remove(ctx, "c1"))
}

func TestColdLoad(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("c1", "c2", "c3")
	r := New(store, zap.NewNop())

	require.NoError(t, r.Load(ctx))
	assert.True(t, r.IsHoneypot("c1"))
	assert.True(t, r.IsHoneypot("c3"))
	assert.Len(t, r.List(), 3)

	// Повторная загрузка замещает состояние целиком, а не дополняет
	store.mu.Lock()
	store.ids = map[string]struct{}{"c9": {}}
	store.mu.Unlock()
	require.NoError(t, r.Load(ctx))
	assert.False(t, r.IsHoneypot("c1"))
	assert.True(t, r.IsHoneypot("c9"))
}

func TestColdLoadFailure(t *testing.T) {
	store := newFakeStore()
	store.fail = errors.New("connection refused")
	r := New(store, zap.NewNop())

	err := r.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cold load failed")
}

func TestWriteThroughFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	r := New(store, zap.NewNop())

	store.fail = errors.New("disk full")
	err := r.Add(ctx, "c1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))
	// Память обновлена несмотря на отказ хранилища: ловушка уже действует
	assert.True(t, r.IsHoneypot("c1"))

	err = r.Remove(ctx, "c1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.False(t, r.IsHoneypot("c1"))
}

func TestRestartRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	first := New(store, zap.NewNop())
	require.NoError(t, first.Add(ctx, "c1"))
	require.NoError(t, first.Add(ctx, "c2"))
	require.NoError(t, first.Remove(ctx, "c2"))

	// «Рестарт»: новый реестр на том же хранилище
	second := New(store, zap.NewNop())
	require.NoError(t, second.Load(ctx))
	assert.True(t, second.IsHoneypot("c1"))
	assert.False(t, second.IsHoneypot("c2"))
}
