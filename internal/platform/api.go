package platform

import "context"

// API — контракт чат-платформы, как его видит ядро бота.
//
// Все вызовы могут упасть: сеть, права, rate limit. Вызывающие обязаны
// деградировать до записанного исхода, а не роняться (см. выше по стеку,
// как executor оборачивает каждый шаг).
type API interface {
	// Identity возвращает учётку самого бота.
	Identity(ctx context.Context) (*User, error)

	// RegisterCommands идемпотентно выгружает набор slash-команд приложения.
	RegisterCommands(ctx context.Context, appID string, cmds []ApplicationCommand) error

	// FetchGuild — гильдия вместе с полным списком ролей и owner_id.
	FetchGuild(ctx context.Context, guildID string) (*Guild, error)
	// FetchMember — живое членство пользователя (роли на текущий момент).
	FetchMember(ctx context.Context, guildID, userID string) (*Member, error)
	// GuildChannels — все каналы гильдии (для поиска существующей ловушки).
	GuildChannels(ctx context.Context, guildID string) ([]Channel, error)
	// CreateChannel создаёт текстовый канал.
	CreateChannel(ctx context.Context, guildID, name, reason string) (*Channel, error)

	SetChannelTopic(ctx context.Context, channelID, topic string) error
	SendMessage(ctx context.Context, channelID, content string) error
	// CreateDM открывает личный канал с пользователем.
	CreateDM(ctx context.Context, userID string) (*Channel, error)

	// BanMember банит с указанием причины и окна нативного удаления
	// сообщений (deleteSeconds). Не ретраится: повторный бан по таймауту
	// опаснее, чем пропущенный.
	BanMember(ctx context.Context, guildID, userID, reason string, deleteSeconds int) error

	// ListMessages — страница истории канала, новые впереди.
	// beforeID — эксклюзивный курсор; пустой курсор значит «с конца».
	ListMessages(ctx context.Context, channelID, beforeID string, limit int) ([]Message, error)
	// BulkDeleteMessages удаляет пачку (платформа требует 2..100 сообщений).
	BulkDeleteMessages(ctx context.Context, channelID string, messageIDs []string) error
	// DeleteMessage удаляет одно сообщение. Внешне эквивалентно bulk-delete
	// из одного элемента, но платформа различает эти примитивы.
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// RespondToInteraction отвечает на slash-команду.
	RespondToInteraction(ctx context.Context, interactionID, token, content string, ephemeral bool) error
}
