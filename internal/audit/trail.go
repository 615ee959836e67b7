package audit

/*
Файл trail.go реализует след энфорсмента — неблокирующий сборщик записей
аудита с пакетной записью в PostgreSQL.

Ключевые свойства:
- Non-blocking Logging: события уходят в буферизованный канал, задержки БД
  не влияют на обработку событий шлюза.
- Batching: накопление в памяти и пакетная вставка по таймеру или при
  достижении лимита (100 записей).
- Drain Pattern: при остановке сервиса канал запирается, воркер вычитывает
  остатки и делает финальный flush — записи не теряются на рестарте.
*/

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически сохраняются записи.
type StorageInterface interface {
	// WriteBatch сохраняет пачку записей за один раз.
	WriteBatch(ctx context.Context, events []Event) error
}

type Auditor interface {
	Log(event Event)
}

type Trail struct {
	ch     chan Event
	repo   StorageInterface
	logger *zap.Logger
	wg     sync.WaitGroup

	// mu сериализует отправку в канал с его закрытием: Log, гонящийся
	// со Stop, не может отправить в уже закрытый канал.
	mu     sync.Mutex
	closed bool
}

func NewTrail(repo StorageInterface, logger *zap.Logger) *Trail {
	return &Trail{
		ch:     make(chan Event, 4096),
		repo:   repo,
		logger: logger.With(zap.String("mod", "audit-trail")),
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop запирает вход в канал и ждёт, пока воркер всё допишет.
func (t *Trail) Stop() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.logger.Info("stopping audit trail: closing channel and flushing buffer...")
	close(t.ch)
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Info("audit trail stopped gracefully")
}

// Len — текущая заполненность буфера (для метрики backpressure).
func (t *Trail) Len() int { return len(t.ch) }

func (t *Trail) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		t.logger.Warn("audit event dropped: trail is stopping", zap.String("id", event.ID))
		return
	}

	// Load Shedding: при переполненном буфере событие не блокирует шлюз,
	// а уходит в обычный лог, чтобы не потерять данные молча.
	select {
	case t.ch <- event:
	default:
		t.logger.Error("audit_buffer_overflow",
			zap.String("kind", event.Kind),
			zap.String("guild_id", event.GuildID),
			zap.String("target_id", event.TargetID),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]Event, 0, 100)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст на shutdown уже закрыт
			if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("audit flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop(): вычитали остатки, финальный flush
				flush()
				t.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
