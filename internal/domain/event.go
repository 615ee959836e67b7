package domain

// EventKind — тег для диспетчеризации входящих событий платформы.
type EventKind int

const (
	EventMessagePosted EventKind = iota + 1
	EventCommandInvoked
	EventGuildJoined
)

// Типы каналов платформы. Нам важен только обычный текстовый.
const (
	ChannelTypeGuildText = 0
	// ChannelTypeUnknown — шлюз не всегда сообщает тип канала в событии
	// сообщения; тогда решает реестр (в нём только текстовые каналы).
	ChannelTypeUnknown = -1
)

// MessageEvent — сообщение, опубликованное в канале.
type MessageEvent struct {
	MessageID   string
	ChannelID   string
	GuildID     string // пусто для DM
	AuthorID    string
	AuthorIsBot bool
	ChannelType int
}

// CommandEvent — административная команда (sethoneypot / removehoneypot).
type CommandEvent struct {
	InteractionID    string
	InteractionToken string
	Name             string
	GuildID          string
	InvokerID        string
	// InvokerPermissions — битовая маска прав вызывающего в канале,
	// как её прислала платформа вместе с интеракцией.
	InvokerPermissions uint64
	// ChannelOption — ID текстового канала из единственного аргумента команды.
	ChannelOption string
}

// GuildEvent — бот добавлен в новое сообщество.
type GuildEvent struct {
	GuildID string
	OwnerID string
}

// Event — tagged union: заполнено ровно одно поле, соответствующее Kind.
type Event struct {
	Kind    EventKind
	Message *MessageEvent
	Command *CommandEvent
	Guild   *GuildEvent
}
