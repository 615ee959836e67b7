package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrPersistence — долговременное хранилище недоступно или отвергло запись.
// In-memory состояние при этом уже обновлено: энфорсмент важнее durability,
// вызывающий логирует и живёт дальше.
var ErrPersistence = errors.New("registry: persistence failure")

// Store — долговременное хранилище множества ловушек.
type Store interface {
	SelectAll(ctx context.Context) ([]string, error)
	Insert(ctx context.Context, channelID string) error
	Delete(ctx context.Context, channelID string) error
}

// Registry — реестр honeypot-каналов.
//
// Hot path (IsHoneypot) работает только с RAM и не умеет падать.
// Мутации — write-through: сначала память, затем Store. Холодная загрузка
// из Store выполняется синхронно до старта обработки событий, чтобы реестр
// никогда не ответил ложное «не ловушка» из-за гонки со стартом.
type Registry struct {
	mu     sync.RWMutex
	set    map[string]struct{}
	store  Store
	logger *zap.Logger
}

func New(store Store, logger *zap.Logger) *Registry {
	return &Registry{
		set:    make(map[string]struct{}),
		store:  store,
		logger: logger.Named("registry"),
	}
}

// Load выполняет холодную загрузку всего множества при старте.
func (r *Registry) Load(ctx context.Context) error {
	ids, err := r.store.SelectAll(ctx)
	if err != nil {
		return fmt.Errorf("registry: cold load failed: %w", err)
	}

	r.mu.Lock()
	r.set = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		r.set[id] = struct{}{}
	}
	r.mu.Unlock()

	r.logger.Info("honeypot registry loaded", zap.Int("count", len(ids)))
	return nil
}

// IsHoneypot — O(1), не блокирует и не падает.
func (r *Registry) IsHoneypot(channelID string) bool {
	r.mu.RLock()
	_, ok := r.set[channelID]
	r.mu.RUnlock()
	return ok
}

// Add идемпотентно добавляет канал. Ошибка Store оборачивается в
// ErrPersistence; память при этом уже обновлена.
func (r *Registry) Add(ctx context.Context, channelID string) error {
	r.mu.Lock()
	_, existed := r.set[channelID]
	r.set[channelID] = struct{}{}
	r.mu.Unlock()

	if err := r.store.Insert(ctx, channelID); err != nil {
		r.logger.Error("durable insert failed, in-memory state kept",
			zap.String("channel_id", channelID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if !existed {
		r.logger.Info("honeypot registered", zap.String("channel_id", channelID))
	}
	return nil
}

// Remove — зеркало Add.
func (r *Registry) Remove(ctx context.Context, channelID string) error {
	r.mu.Lock()
	_, existed := r.set[channelID]
	delete(r.set, channelID)
	r.mu.Unlock()

	if err := r.store.Delete(ctx, channelID); err != nil {
		r.logger.Error("durable delete failed, in-memory state kept",
			zap.String("channel_id", channelID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if existed {
		r.logger.Info("honeypot removed", zap.String("channel_id", channelID))
	}
	return nil
}

// List — снимок всех ловушек (служебный эндпоинт).
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.set))
	for id := range r.set {
		out = append(out, id)
	}
	return out
}
