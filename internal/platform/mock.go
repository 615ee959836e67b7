package platform

import (
	"context"
	"fmt"
	"sync"
)

// BanCall фиксирует параметры одного вызова BanMember.
type BanCall struct {
	GuildID       string
	UserID        string
	Reason        string
	DeleteSeconds int
}

// Mock — управляемая реализация API для тестов.
//
// Поведение задаётся через *Fn-поля; незаданный Fn означает «успех с нулевым
// результатом». Все вызовы протоколируются, чтобы тест мог утверждать
// «бан не вызывался ни разу».
type Mock struct {
	mu sync.Mutex

	IdentityFn     func(ctx context.Context) (*User, error)
	FetchGuildFn   func(ctx context.Context, guildID string) (*Guild, error)
	FetchMemberFn  func(ctx context.Context, guildID, userID string) (*Member, error)
	ListMessagesFn func(ctx context.Context, channelID, beforeID string, limit int) ([]Message, error)
	BanMemberFn    func(ctx context.Context, guildID, userID, reason string, deleteSeconds int) error
	BulkDeleteFn   func(ctx context.Context, channelID string, ids []string) error
	DeleteFn       func(ctx context.Context, channelID, messageID string) error
	SetTopicFn     func(ctx context.Context, channelID, topic string) error
	SendMessageFn  func(ctx context.Context, channelID, content string) error
	CreateChanFn   func(ctx context.Context, guildID, name, reason string) (*Channel, error)
	CreateDMFn     func(ctx context.Context, userID string) (*Channel, error)
	ChannelsFn     func(ctx context.Context, guildID string) ([]Channel, error)
	RespondFn      func(ctx context.Context, id, token, content string, ephemeral bool) error

	BanCalls        []BanCall
	BulkDeleteCalls [][]string
	DeleteCalls     []string
	ListCalls       int
	TopicCalls      []string
	SentMessages    []string
	Responses       []string
	DMCalls         []string
	CreatedChannels []string
	RegisteredCmds  []ApplicationCommand
}

var _ API = (*Mock)(nil)

func (m *Mock) Identity(ctx context.Context) (*User, error) {
	if m.IdentityFn != nil {
		return m.IdentityFn(ctx)
	}
	return &User{ID: "bot", Username: "trapgate", Bot: true}, nil
}

func (m *Mock) RegisterCommands(ctx context.Context, appID string, cmds []ApplicationCommand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RegisteredCmds = append(m.RegisteredCmds, cmds...)
	return nil
}

func (m *Mock) FetchGuild(ctx context.Context, guildID string) (*Guild, error) {
	if m.FetchGuildFn != nil {
		return m.FetchGuildFn(ctx, guildID)
	}
	return &Guild{ID: guildID}, nil
}

func (m *Mock) FetchMember(ctx context.Context, guildID, userID string) (*Member, error) {
	if m.FetchMemberFn != nil {
		return m.FetchMemberFn(ctx, guildID, userID)
	}
	return &Member{User: User{ID: userID}}, nil
}

func (m *Mock) GuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	if m.ChannelsFn != nil {
		return m.ChannelsFn(ctx, guildID)
	}
	return nil, nil
}

func (m *Mock) CreateChannel(ctx context.Context, guildID, name, reason string) (*Channel, error) {
	m.mu.Lock()
	m.CreatedChannels = append(m.CreatedChannels, name)
	m.mu.Unlock()
	if m.CreateChanFn != nil {
		return m.CreateChanFn(ctx, guildID, name, reason)
	}
	return &Channel{ID: "created-" + name, GuildID: guildID, Name: name}, nil
}

func (m *Mock) SetChannelTopic(ctx context.Context, channelID, topic string) error {
	m.mu.Lock()
	m.TopicCalls = append(m.TopicCalls, channelID)
	m.mu.Unlock()
	if m.SetTopicFn != nil {
		return m.SetTopicFn(ctx, channelID, topic)
	}
	return nil
}

func (m *Mock) SendMessage(ctx context.Context, channelID, content string) error {
	m.mu.Lock()
	m.SentMessages = append(m.SentMessages, content)
	m.mu.Unlock()
	if m.SendMessageFn != nil {
		return m.SendMessageFn(ctx, channelID, content)
	}
	return nil
}

func (m *Mock) CreateDM(ctx context.Context, userID string) (*Channel, error) {
	m.mu.Lock()
	m.DMCalls = append(m.DMCalls, userID)
	m.mu.Unlock()
	if m.CreateDMFn != nil {
		return m.CreateDMFn(ctx, userID)
	}
	return &Channel{ID: "dm-" + userID}, nil
}

func (m *Mock) BanMember(ctx context.Context, guildID, userID, reason string, deleteSeconds int) error {
	m.mu.Lock()
	m.BanCalls = append(m.BanCalls, BanCall{GuildID: guildID, UserID: userID, Reason: reason, DeleteSeconds: deleteSeconds})
	m.mu.Unlock()
	if m.BanMemberFn != nil {
		return m.BanMemberFn(ctx, guildID, userID, reason, deleteSeconds)
	}
	return nil
}

func (m *Mock) ListMessages(ctx context.Context, channelID, beforeID string, limit int) ([]Message, error) {
	m.mu.Lock()
	m.ListCalls++
	m.mu.Unlock()
	if m.ListMessagesFn != nil {
		return m.ListMessagesFn(ctx, channelID, beforeID, limit)
	}
	return nil, nil
}

func (m *Mock) BulkDeleteMessages(ctx context.Context, channelID string, ids []string) error {
	m.mu.Lock()
	m.BulkDeleteCalls = append(m.BulkDeleteCalls, ids)
	m.mu.Unlock()
	if m.BulkDeleteFn != nil {
		return m.BulkDeleteFn(ctx, channelID, ids)
	}
	if len(ids) < 2 {
		return fmt.Errorf("bulk delete requires at least 2 messages, got %d", len(ids))
	}
	return nil
}

func (m *Mock) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, messageID)
	m.mu.Unlock()
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, channelID, messageID)
	}
	return nil
}

func (m *Mock) RespondToInteraction(ctx context.Context, id, token, content string, ephemeral bool) error {
	m.mu.Lock()
	m.Responses = append(m.Responses, content)
	m.mu.Unlock()
	if m.RespondFn != nil {
		return m.RespondFn(ctx, id, token, content, ephemeral)
	}
	return nil
}
