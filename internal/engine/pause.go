package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis-ключи паузы. Префикс изолирует данные проекта.
const (
	redisKeyPausedGuilds = "trapgate:pause:guilds"
	redisKeyPausedAll    = "trapgate:pause:all"
	// RedisChanPauseSignal — канал Pub/Sub для трансляции сигналов паузы.
	// Формат payload: "guild_id:on" / "guild_id:off", "*" — глобально.
	RedisChanPauseSignal = "trapgate:pause-signal"
)

// PauseSwitch — оперативный рубильник энфорсмента.
//
// Если оператор пометил ловушкой не тот канал, баны нужно остановить
// мгновенно, не передеплоивая бота. Состояние держится в RAM (hot path),
// прогревается из Redis при старте и обновляется через Pub/Sub.
// Redis опционален: без него свитч всегда «взведён» и управляется только
// через служебный HTTP-эндпоинт текущего процесса.
type PauseSwitch struct {
	mu           sync.RWMutex
	pausedAll    bool
	pausedGuilds map[string]struct{}

	rdb    *redis.Client // nil — допустимое состояние
	logger *zap.Logger
}

func NewPauseSwitch(rdb *redis.Client, logger *zap.Logger) *PauseSwitch {
	return &PauseSwitch{
		pausedGuilds: make(map[string]struct{}),
		rdb:          rdb,
		logger:       logger.Named("pause"),
	}
}

// Init прогревает состояние паузы из Redis при старте сервиса.
func (p *PauseSwitch) Init(ctx context.Context) error {
	if p.rdb == nil {
		return nil
	}

	guilds, err := p.rdb.SMembers(ctx, redisKeyPausedGuilds).Result()
	if err != nil {
		return err
	}
	all, err := p.rdb.Get(ctx, redisKeyPausedAll).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	p.mu.Lock()
	for _, id := range guilds {
		p.pausedGuilds[id] = struct{}{}
	}
	p.pausedAll = all == "on"
	p.mu.Unlock()
	return nil
}

// IsPaused — O(1) проверка перед энфорсментом.
func (p *PauseSwitch) IsPaused(guildID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pausedAll {
		return true
	}
	_, ok := p.pausedGuilds[guildID]
	return ok
}

// Set переключает паузу локально и, если Redis есть, публикует сигнал
// и обновляет долговременное состояние.
func (p *PauseSwitch) Set(ctx context.Context, guildID string, paused bool) error {
	p.apply(guildID, paused)

	if p.rdb == nil {
		return nil
	}

	var err error
	if guildID == "*" {
		if paused {
			err = p.rdb.Set(ctx, redisKeyPausedAll, "on", 0).Err()
		} else {
			err = p.rdb.Del(ctx, redisKeyPausedAll).Err()
		}
	} else {
		if paused {
			err = p.rdb.SAdd(ctx, redisKeyPausedGuilds, guildID).Err()
		} else {
			err = p.rdb.SRem(ctx, redisKeyPausedGuilds, guildID).Err()
		}
	}
	if err != nil {
		return err
	}

	state := "off"
	if paused {
		state = "on"
	}
	return p.rdb.Publish(ctx, RedisChanPauseSignal, guildID+":"+state).Err()
}

func (p *PauseSwitch) apply(guildID string, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if guildID == "*" {
		p.pausedAll = paused
		return
	}
	if paused {
		p.pausedGuilds[guildID] = struct{}{}
	} else {
		delete(p.pausedGuilds, guildID)
	}
}

// StartListener — «живучая» подписка на сигналы паузы.
// Переподключается сама и на каждом успешном коннекте пересинхронизирует
// состояние через Init, чтобы не пропустить сигналы за время разрыва.
func (p *PauseSwitch) StartListener(ctx context.Context) {
	if p.rdb == nil {
		p.logger.Info("redis not configured, pause switch is local-only")
		return
	}

	for {
		pubsub := p.rdb.Subscribe(ctx, RedisChanPauseSignal)

		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("failed to subscribe", zap.String("chan", RedisChanPauseSignal), zap.Error(err))
			time.Sleep(5 * time.Second)
			continue
		}

		// Синхронизация при каждом успешном коннекте
		if err := p.Init(ctx); err != nil {
			p.logger.Error("pause state sync failed on reconnect", zap.Error(err))
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // канал закрыт, идём на переподключение
				}

				// Разбор формата "guild_id:on|off"
				idx := strings.LastIndex(msg.Payload, ":")
				if idx <= 0 {
					p.logger.Error("invalid pause signal", zap.String("payload", msg.Payload))
					continue
				}
				guildID := msg.Payload[:idx]
				paused := msg.Payload[idx+1:] == "on"

				p.logger.Warn("pause signal received",
					zap.String("guild_id", guildID), zap.Bool("paused", paused))
				p.apply(guildID, paused)
			}
		}

		pubsub.Close()
		time.Sleep(1 * time.Second)
	}
}
