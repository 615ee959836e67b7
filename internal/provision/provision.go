package provision

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/trapgate/internal/audit"
	"github.com/xela07ax/trapgate/internal/domain"
	"github.com/xela07ax/trapgate/internal/platform"
	"github.com/xela07ax/trapgate/internal/registry"
)

// Тексты оформления ловушки. Дисклеймер честный: канал публично объявлен.
const (
	ChannelName   = "honeypot"
	TopicText     = "Honeypot channel. Messages here trigger an automatic ban."
	Disclaimer    = "This is a honeypot channel. Do not post here unless you want to be banned."
	OwnerGuidance = "trapgate is set up: posting in the honeypot channel bans the author. " +
		"Make sure the bot's role is ABOVE the roles of members it should be able to ban — " +
		"the platform rejects bans against equal or higher roles."
)

// Provisioner обустраивает ловушку в новой гильдии и оформляет каналы,
// назначенные ловушками вручную. Каждая мутация реестра и каждый
// провижининг оставляют запись в следе аудита.
type Provisioner struct {
	api      platform.API
	registry *registry.Registry
	auditor  audit.Auditor
	logger   *zap.Logger
}

func New(api platform.API, reg *registry.Registry, auditor audit.Auditor, logger *zap.Logger) *Provisioner {
	return &Provisioner{api: api, registry: reg, auditor: auditor, logger: logger.Named("provision")}
}

// OnGuildJoin — бот добавлен в сообщество: найти или создать канал
// "honeypot" и пометить его. Это best-effort удобство, не инвариант:
// без права на создание канала молча отступаем (только лог).
func (p *Provisioner) OnGuildJoin(ctx context.Context, ev *domain.GuildEvent) {
	detail := "channel reused"
	channel := p.findExisting(ctx, ev.GuildID)

	if channel == nil {
		created, err := p.api.CreateChannel(ctx, ev.GuildID, ChannelName, "Auto-created honeypot channel")
		if err != nil {
			p.logger.Warn("could not create honeypot channel, skipping provisioning",
				zap.String("guild_id", ev.GuildID), zap.Error(err))
			return
		}
		channel = created
		detail = "channel created"
	}

	if err := p.Mark(ctx, channel.ID); err != nil {
		// PersistenceFailure: память уже обновлена, ловушка работает
		p.logger.Error("honeypot registered in-memory only",
			zap.String("channel_id", channel.ID), zap.Error(err))
	}

	p.auditor.Log(audit.Event{
		ID:        uuid.New().String(),
		Kind:      audit.KindProvision,
		GuildID:   ev.GuildID,
		ChannelID: channel.ID,
		Detail:    detail,
	})

	p.notifyOwner(ctx, ev.OwnerID)
}

// Mark оформляет канал (топик + дисклеймер, каждый шаг best-effort)
// и регистрирует его. Регистрация авторитетна: провал оформления её
// не отменяет.
func (p *Provisioner) Mark(ctx context.Context, channelID string) error {
	if err := p.api.SetChannelTopic(ctx, channelID, TopicText); err != nil {
		p.logger.Warn("failed to set honeypot topic", zap.String("channel_id", channelID), zap.Error(err))
	}
	if err := p.api.SendMessage(ctx, channelID, Disclaimer); err != nil {
		p.logger.Warn("failed to post disclaimer", zap.String("channel_id", channelID), zap.Error(err))
	}

	err := p.registry.Add(ctx, channelID)
	p.auditRegistry(channelID, "marked", err)
	return err
}

// Unmark снимает оформление и выводит канал из реестра.
func (p *Provisioner) Unmark(ctx context.Context, channelID string) error {
	if err := p.api.SetChannelTopic(ctx, channelID, ""); err != nil {
		p.logger.Warn("failed to clear honeypot topic", zap.String("channel_id", channelID), zap.Error(err))
	}

	err := p.registry.Remove(ctx, channelID)
	p.auditRegistry(channelID, "unmarked", err)
	return err
}

// auditRegistry пишет мутацию реестра в след. Провал durability тоже
// попадает в запись: ловушка действует, а оператор видит, что чинить.
func (p *Provisioner) auditRegistry(channelID, detail string, err error) {
	ev := audit.Event{
		ID:        uuid.New().String(),
		Kind:      audit.KindRegistry,
		ChannelID: channelID,
		Detail:    detail,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	p.auditor.Log(ev)
}

func (p *Provisioner) findExisting(ctx context.Context, guildID string) *platform.Channel {
	channels, err := p.api.GuildChannels(ctx, guildID)
	if err != nil {
		p.logger.Warn("could not list guild channels", zap.String("guild_id", guildID), zap.Error(err))
		return nil
	}
	for i := range channels {
		c := &channels[i]
		if c.Type == domain.ChannelTypeGuildText && c.Name == ChannelName {
			return c
		}
	}
	return nil
}

// notifyOwner шлёт владельцу DM с напоминанием про иерархию ролей.
// Недоставка никого не волнует: регистрация уже состоялась.
func (p *Provisioner) notifyOwner(ctx context.Context, ownerID string) {
	if ownerID == "" {
		return
	}
	dm, err := p.api.CreateDM(ctx, ownerID)
	if err != nil {
		p.logger.Debug("could not open owner DM", zap.String("owner_id", ownerID), zap.Error(err))
		return
	}
	if err := p.api.SendMessage(ctx, dm.ID, OwnerGuidance); err != nil {
		p.logger.Debug("could not deliver owner guidance", zap.String("owner_id", ownerID), zap.Error(err))
	}
}
