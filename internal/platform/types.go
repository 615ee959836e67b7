package platform

import (
	"strconv"
	"time"
)

// Битовые флаги прав платформы (та часть, что нужна боту).
const (
	PermBanMembers         uint64 = 1 << 2
	PermAdministrator      uint64 = 1 << 3
	PermManageChannels     uint64 = 1 << 4
	PermViewChannel        uint64 = 1 << 10
	PermSendMessages       uint64 = 1 << 11
	PermManageMessages     uint64 = 1 << 13
	PermReadMessageHistory uint64 = 1 << 16
)

// InvitePermissions — набор прав, который бот просит при установке.
const InvitePermissions = PermViewChannel | PermSendMessages | PermManageMessages |
	PermReadMessageHistory | PermBanMembers | PermManageChannels

// ParsePermissions разбирает строковую маску прав из wire-формата.
// Платформа шлёт права строкой, потому что JS не умеет в uint64.
func ParsePermissions(raw string) uint64 {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Position — позиция в иерархии: больше — выше.
	Position    int    `json:"position"`
	Permissions string `json:"permissions"`
}

type Guild struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
	Roles   []Role `json:"roles"`
}

type Member struct {
	User  User     `json:"user"`
	Roles []string `json:"roles"` // ID ролей
}

type Channel struct {
	ID      string `json:"id"`
	GuildID string `json:"guild_id"`
	Name    string `json:"name"`
	Type    int    `json:"type"`
	Topic   string `json:"topic"`
}

type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	Author    User      `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// ApplicationCommandOption — аргумент slash-команды.
type ApplicationCommandOption struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Type         int    `json:"type"`
	Required     bool   `json:"required"`
	ChannelTypes []int  `json:"channel_types,omitempty"`
}

// ApplicationCommand — описание slash-команды для регистрации.
type ApplicationCommand struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Options     []ApplicationCommandOption `json:"options,omitempty"`
	// DefaultMemberPermissions — первая линия обороны: платформа сама
	// прячет команду от всех, кроме администраторов.
	DefaultMemberPermissions string `json:"default_member_permissions,omitempty"`
}
