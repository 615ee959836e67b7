package discord

import (
	"fmt"
	"strconv"

	"github.com/xela07ax/trapgate/internal/platform"
)

// Тип опции "канал" и тип текстового канала в схеме команд платформы.
const (
	optionTypeChannel = 7
	channelTypeText   = 0
)

// AdminCommands — набор slash-команд бота. Видимость ограничена
// администраторами на стороне платформы (default_member_permissions).
func AdminCommands() []platform.ApplicationCommand {
	adminOnly := strconv.FormatUint(platform.PermAdministrator, 10)

	channelOpt := []platform.ApplicationCommandOption{{
		Name:         "channel",
		Description:  "Text channel to mark",
		Type:         optionTypeChannel,
		ChannelTypes: []int{channelTypeText},
		Required:     true,
	}}

	return []platform.ApplicationCommand{
		{
			Name:                     "sethoneypot",
			Description:              "Designate a channel as a honeypot",
			Options:                  channelOpt,
			DefaultMemberPermissions: adminOnly,
		},
		{
			Name:                     "removehoneypot",
			Description:              "Remove a channel from the honeypot set",
			Options:                  channelOpt,
			DefaultMemberPermissions: adminOnly,
		},
	}
}

// InviteURL — ссылка установки бота с нужным набором прав.
func InviteURL(appID string) string {
	return fmt.Sprintf(
		"https://discord.com/oauth2/authorize?client_id=%s&scope=bot%%20applications.commands&permissions=%d",
		appID, platform.InvitePermissions,
	)
}
