package discord

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xela07ax/trapgate/internal/domain"
	"github.com/xela07ax/trapgate/internal/platform"
)

// Опкоды шлюза платформы.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatACK   = 11
)

// Интенты: гильдии + сообщения гильдий. Содержимое сообщений не нужно —
// факт публикации в ловушке сам по себе достаточное свидетельство.
const gatewayIntents = (1 << 0) | (1 << 9)

// EventHandler обрабатывает одно событие платформы.
type EventHandler func(ctx context.Context, ev domain.Event)

// Gateway — websocket-потребитель событий платформы.
//
// Живёт в цикле с передиалом: любой обрыв (сеть, op 7, op 9) приводит к
// новому подключению и повторному identify. Каждое прикладное событие
// обрабатывается в собственной горутине — медленный энфорсмент не
// задерживает чтение сокета и heartbeat.
type Gateway struct {
	url        string
	token      string
	handler    EventHandler
	logger     *zap.Logger
	reconnects prometheus.Counter

	seq atomic.Int64

	// knownGuilds отличает стартовую раздачу GUILD_CREATE (lazy load всех
	// гильдий после READY) от настоящего добавления бота в новую гильдию.
	knownGuilds map[string]struct{}
	knownMu     sync.Mutex
}

func NewGateway(url, token string, handler EventHandler, reconnects prometheus.Counter, logger *zap.Logger) *Gateway {
	return &Gateway{
		url:        url,
		token:      token,
		handler:    handler,
		logger:     logger.Named("gateway"),
		reconnects: reconnects,
	}
}

type payload struct {
	Op int             `json:"op"`
	T  string          `json:"t,omitempty"`
	S  *int64          `json:"s,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

// Run крутит подключение до отмены контекста.
func (g *Gateway) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := g.session(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			g.logger.Error("gateway session ended", zap.Error(err))
		}

		g.reconnects.Inc()
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

// session — одно подключение: hello -> identify -> heartbeat + read loop.
func (g *Gateway) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Контекст сессии: завершает heartbeat при выходе из read loop
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Писать в websocket может и heartbeat-горутина, и identify
	var writeMu sync.Mutex
	send := func(p payload) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(p)
	}

	// 1. Hello
	var hello payload
	if err := conn.ReadJSON(&hello); err != nil {
		return err
	}
	var helloData struct {
		HeartbeatInterval int `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.D, &helloData); err != nil {
		return err
	}

	// 2. Heartbeat loop
	go g.heartbeat(sessCtx, send, time.Duration(helloData.HeartbeatInterval)*time.Millisecond)

	// 3. Identify
	identify, _ := json.Marshal(map[string]any{
		"token":   g.token,
		"intents": gatewayIntents,
		"properties": map[string]string{
			"os":      "linux",
			"browser": "trapgate",
			"device":  "trapgate",
		},
	})
	if err := send(payload{Op: opIdentify, D: identify}); err != nil {
		return err
	}

	g.logger.Info("gateway connected")

	// 4. Read loop
	for {
		var p payload
		if err := conn.ReadJSON(&p); err != nil {
			return err
		}

		switch p.Op {
		case opDispatch:
			if p.S != nil {
				g.seq.Store(*p.S)
			}
			g.dispatch(ctx, p.T, p.D)
		case opHeartbeat:
			// Платформа попросила heartbeat вне расписания
			seq := g.seq.Load()
			data, _ := json.Marshal(seq)
			if err := send(payload{Op: opHeartbeat, D: data}); err != nil {
				return err
			}
		case opReconnect, opInvalidSession:
			g.logger.Warn("platform requested reconnect", zap.Int("op", p.Op))
			return nil
		case opHeartbeatACK:
			// ок
		}
	}
}

func (g *Gateway) heartbeat(ctx context.Context, send func(payload) error, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq := g.seq.Load()
			data, _ := json.Marshal(seq)
			if err := send(payload{Op: opHeartbeat, D: data}); err != nil {
				g.logger.Warn("heartbeat write failed", zap.Error(err))
				return
			}
		}
	}
}

// dispatch разворачивает wire-событие в доменное и отдаёт обработчику.
// Каждое событие — своя горутина; порядка между разными событиями нет,
// внутри одного энфорсмента порядок шагов обеспечивает исполнитель.
func (g *Gateway) dispatch(ctx context.Context, t string, d json.RawMessage) {
	switch t {
	case "READY":
		var ready struct {
			User   struct{ ID string } `json:"user"`
			Guilds []struct {
				ID string `json:"id"`
			} `json:"guilds"`
		}
		if err := json.Unmarshal(d, &ready); err != nil {
			g.logger.Error("bad READY payload", zap.Error(err))
			return
		}
		g.knownMu.Lock()
		g.knownGuilds = make(map[string]struct{}, len(ready.Guilds))
		for _, gd := range ready.Guilds {
			g.knownGuilds[gd.ID] = struct{}{}
		}
		g.knownMu.Unlock()
		g.logger.Info("gateway ready",
			zap.String("bot_id", ready.User.ID), zap.Int("guilds", len(ready.Guilds)))

	case "MESSAGE_CREATE":
		var m struct {
			ID        string `json:"id"`
			ChannelID string `json:"channel_id"`
			GuildID   string `json:"guild_id"`
			Author    struct {
				ID  string `json:"id"`
				Bot bool   `json:"bot"`
			} `json:"author"`
		}
		if err := json.Unmarshal(d, &m); err != nil {
			g.logger.Error("bad MESSAGE_CREATE payload", zap.Error(err))
			return
		}
		ev := domain.Event{
			Kind: domain.EventMessagePosted,
			Message: &domain.MessageEvent{
				MessageID:   m.ID,
				ChannelID:   m.ChannelID,
				GuildID:     m.GuildID,
				AuthorID:    m.Author.ID,
				AuthorIsBot: m.Author.Bot,
				// Тип канала в событии не приходит; роутер доверяет
				// реестру, в котором только текстовые каналы
				ChannelType: domain.ChannelTypeUnknown,
			},
		}
		go g.handler(ctx, ev)

	case "INTERACTION_CREATE":
		var i struct {
			ID      string `json:"id"`
			Token   string `json:"token"`
			Type    int    `json:"type"`
			GuildID string `json:"guild_id"`
			Member  struct {
				User        struct{ ID string } `json:"user"`
				Permissions string              `json:"permissions"`
			} `json:"member"`
			Data struct {
				Name    string `json:"name"`
				Options []struct {
					Name  string `json:"name"`
					Value string `json:"value"`
				} `json:"options"`
			} `json:"data"`
		}
		if err := json.Unmarshal(d, &i); err != nil {
			g.logger.Error("bad INTERACTION_CREATE payload", zap.Error(err))
			return
		}
		if i.Type != 2 { // только APPLICATION_COMMAND
			return
		}
		cmd := &domain.CommandEvent{
			InteractionID:      i.ID,
			InteractionToken:   i.Token,
			Name:               i.Data.Name,
			GuildID:            i.GuildID,
			InvokerID:          i.Member.User.ID,
			InvokerPermissions: platform.ParsePermissions(i.Member.Permissions),
		}
		for _, opt := range i.Data.Options {
			if opt.Name == "channel" {
				cmd.ChannelOption = opt.Value
			}
		}
		go g.handler(ctx, domain.Event{Kind: domain.EventCommandInvoked, Command: cmd})

	case "GUILD_CREATE":
		var gd struct {
			ID      string `json:"id"`
			OwnerID string `json:"owner_id"`
		}
		if err := json.Unmarshal(d, &gd); err != nil {
			g.logger.Error("bad GUILD_CREATE payload", zap.Error(err))
			return
		}

		// Стартовая раздача известных гильдий — не новое добавление
		g.knownMu.Lock()
		_, known := g.knownGuilds[gd.ID]
		if known {
			delete(g.knownGuilds, gd.ID)
		}
		g.knownMu.Unlock()
		if known {
			return
		}

		go g.handler(ctx, domain.Event{
			Kind:  domain.EventGuildJoined,
			Guild: &domain.GuildEvent{GuildID: gd.ID, OwnerID: gd.OwnerID},
		})
	}
}
