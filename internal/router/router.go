package router

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/trapgate/internal/domain"
	"github.com/xela07ax/trapgate/internal/engine"
	"github.com/xela07ax/trapgate/internal/platform"
	"github.com/xela07ax/trapgate/internal/provision"
	"github.com/xela07ax/trapgate/internal/registry"
)

// Имена slash-команд администратора.
const (
	CmdSetHoneypot    = "sethoneypot"
	CmdRemoveHoneypot = "removehoneypot"
)

// Enforcer — исполнитель энфорсмента (реализуется engine.Executor).
type Enforcer interface {
	Enforce(ctx context.Context, req domain.EnforcementRequest) domain.ExecutionReport
}

// PauseChecker — оперативный рубильник (реализуется engine.PauseSwitch).
type PauseChecker interface {
	IsPaused(guildID string) bool
}

// Router раскладывает события шлюза по обработчикам.
//
// Доминирующий путь — нерелевантное сообщение, он обязан быть дешёвым:
// пара сравнений полей и один O(1) взгляд в реестр, без сети.
type Router struct {
	registry *registry.Registry
	enforcer Enforcer
	pause    PauseChecker
	prov     *provision.Provisioner
	api      platform.API
	metrics  *engine.Metrics
	logger   *zap.Logger

	purgeWindow time.Duration
	banReason   string
}

func New(
	reg *registry.Registry,
	enforcer Enforcer,
	pause PauseChecker,
	prov *provision.Provisioner,
	api platform.API,
	metrics *engine.Metrics,
	logger *zap.Logger,
	purgeWindow time.Duration,
	banReason string,
) *Router {
	return &Router{
		registry:    reg,
		enforcer:    enforcer,
		pause:       pause,
		prov:        prov,
		api:         api,
		metrics:     metrics,
		logger:      logger.Named("router"),
		purgeWindow: purgeWindow,
		banReason:   banReason,
	}
}

// Dispatch — единая точка входа. Tagged-union диспетчеризация: по одному
// case на вид события, каждый case — чистое решение плюс вызов компонента.
func (r *Router) Dispatch(ctx context.Context, ev domain.Event) {
	switch ev.Kind {
	case domain.EventMessagePosted:
		r.metrics.EventsTotal.WithLabelValues("message").Inc()
		r.handleMessage(ctx, ev.Message)
	case domain.EventCommandInvoked:
		r.metrics.EventsTotal.WithLabelValues("command").Inc()
		r.handleCommand(ctx, ev.Command)
	case domain.EventGuildJoined:
		r.metrics.EventsTotal.WithLabelValues("guild_join").Inc()
		r.prov.OnGuildJoin(ctx, ev.Guild)
	default:
		r.logger.Warn("unknown event kind", zap.Int("kind", int(ev.Kind)))
	}
}

// handleMessage — горячий путь. Сообщение релевантно, только если автор не
// бот, есть контекст гильдии и канал текстовый (или тип неизвестен — тогда
// решает реестр: в нём только текстовые каналы).
func (r *Router) handleMessage(ctx context.Context, m *domain.MessageEvent) {
	if m == nil || m.AuthorIsBot || m.GuildID == "" {
		return
	}
	if m.ChannelType != domain.ChannelTypeGuildText && m.ChannelType != domain.ChannelTypeUnknown {
		return
	}
	if !r.registry.IsHoneypot(m.ChannelID) {
		return
	}

	if r.pause.IsPaused(m.GuildID) {
		r.logger.Warn("honeypot trip ignored: enforcement paused",
			zap.String("guild_id", m.GuildID), zap.String("author_id", m.AuthorID))
		return
	}

	r.logger.Info("honeypot tripped",
		zap.String("guild_id", m.GuildID),
		zap.String("channel_id", m.ChannelID),
		zap.String("author_id", m.AuthorID))

	report := r.enforcer.Enforce(ctx, domain.EnforcementRequest{
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		TargetID:    m.AuthorID,
		Reason:      r.banReason,
		PurgeWindow: r.purgeWindow,
	})

	r.logger.Info("enforcement finished",
		zap.String("report_id", report.ID),
		zap.String("ban", string(report.Ban.Outcome)),
		zap.String("purge", string(report.Purge.State)),
		zap.Int("purged", report.Purge.Removed))
}

// handleCommand обслуживает административные команды. Видимость команд уже
// ограничена платформой (default_member_permissions) — это первая линия;
// проверка здесь — вторая, на случай перекроенных прав.
func (r *Router) handleCommand(ctx context.Context, c *domain.CommandEvent) {
	if c == nil {
		return
	}

	if c.InvokerPermissions&platform.PermAdministrator == 0 {
		r.reply(ctx, c, "Need administrator.")
		return
	}

	if c.ChannelOption == "" {
		r.reply(ctx, c, "A text channel argument is required.")
		return
	}

	switch c.Name {
	case CmdSetHoneypot:
		err := r.prov.Mark(ctx, c.ChannelOption)
		if err != nil && !errors.Is(err, registry.ErrPersistence) {
			r.reply(ctx, c, "Failed to mark the channel.")
			return
		}
		// PersistenceFailure не показываем пользователю как провал:
		// ловушка уже действует, durability починят отдельно
		if err != nil {
			r.logger.Error("honeypot marked without durability", zap.Error(err))
		}
		r.reply(ctx, c, "<#"+c.ChannelOption+"> is now a honeypot.")

	case CmdRemoveHoneypot:
		err := r.prov.Unmark(ctx, c.ChannelOption)
		if err != nil && !errors.Is(err, registry.ErrPersistence) {
			r.reply(ctx, c, "Failed to remove the honeypot.")
			return
		}
		if err != nil {
			r.logger.Error("honeypot removed without durability", zap.Error(err))
		}
		r.reply(ctx, c, "<#"+c.ChannelOption+"> is no longer a honeypot.")

	default:
		// Без ответа платформа показала бы вызывающему таймаут
		r.logger.Warn("unknown command", zap.String("name", c.Name))
		r.reply(ctx, c, "Unknown command.")
	}
}

func (r *Router) reply(ctx context.Context, c *domain.CommandEvent, content string) {
	if err := r.api.RespondToInteraction(ctx, c.InteractionID, c.InteractionToken, content, true); err != nil {
		r.logger.Warn("interaction reply failed",
			zap.String("command", c.Name), zap.Error(err))
	}
}
