package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/trapgate/internal/audit"
	"github.com/xela07ax/trapgate/internal/domain"
	"github.com/xela07ax/trapgate/internal/platform"
	"github.com/xela07ax/trapgate/internal/registry"
)

type nopStore struct{}

func (nopStore) SelectAll(ctx context.Context) ([]string, error)    { return nil, nil }
func (nopStore) Insert(ctx context.Context, channelID string) error { return nil }
func (nopStore) Delete(ctx context.Context, channelID string) error { return nil }

type auditCapture struct {
	events []audit.Event
}

func (a *auditCapture) Log(ev audit.Event) { a.events = append(a.events, ev) }

func (a *auditCapture) byKind(kind string) []audit.Event {
	var out []audit.Event
	for _, ev := range a.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func newProvisioner(api *platform.Mock) (*Provisioner, *registry.Registry, *auditCapture) {
	reg := registry.New(nopStore{}, zap.NewNop())
	trail := &auditCapture{}
	return New(api, reg, trail, zap.NewNop()), reg, trail
}

func joinEvent() *domain.GuildEvent {
	return &domain.GuildEvent{GuildID: "g1", OwnerID: "owner"}
}

func TestGuildJoinReusesExistingChannel(t *testing.T) {
	api := &platform.Mock{
		ChannelsFn: func(ctx context.Context, guildID string) ([]platform.Channel, error) {
			return []platform.Channel{
				{ID: "v1", GuildID: guildID, Name: ChannelName, Type: 2}, // голосовой тёзка не подходит
				{ID: "c7", GuildID: guildID, Name: ChannelName, Type: domain.ChannelTypeGuildText},
			}, nil
		},
	}
	p, reg, trail := newProvisioner(api)

	p.OnGuildJoin(context.Background(), joinEvent())

	assert.Empty(t, api.CreatedChannels)
	assert.True(t, reg.IsHoneypot("c7"))
	assert.False(t, reg.IsHoneypot("v1"))
	// Владелец получает DM с напоминанием про иерархию
	assert.Equal(t, []string{"owner"}, api.DMCalls)

	prov := trail.byKind(audit.KindProvision)
	require.Len(t, prov, 1)
	assert.Equal(t, "channel reused", prov[0].Detail)
	assert.Equal(t, "c7", prov[0].ChannelID)
}

func TestGuildJoinCreatesChannel(t *testing.T) {
	api := &platform.Mock{}
	p, reg, trail := newProvisioner(api)

	p.OnGuildJoin(context.Background(), joinEvent())

	require.Equal(t, []string{ChannelName}, api.CreatedChannels)
	assert.True(t, reg.IsHoneypot("created-"+ChannelName))
	// Оформление созданного канала: топик + дисклеймер (DM не считаем)
	assert.Equal(t, []string{"created-" + ChannelName}, api.TopicCalls)
	assert.Contains(t, api.SentMessages, Disclaimer)

	prov := trail.byKind(audit.KindProvision)
	require.Len(t, prov, 1)
	assert.Equal(t, "channel created", prov[0].Detail)
	assert.Equal(t, "g1", prov[0].GuildID)
}

func TestGuildJoinCreateFailureAborts(t *testing.T) {
	api := &platform.Mock{
		CreateChanFn: func(ctx context.Context, guildID, name, reason string) (*platform.Channel, error) {
			return nil, errors.New("403 missing Manage Channels")
		},
	}
	p, reg, trail := newProvisioner(api)

	p.OnGuildJoin(context.Background(), joinEvent())

	// Нет права создать канал — провижининг молча отступает целиком
	assert.Empty(t, reg.List())
	assert.Empty(t, api.TopicCalls)
	assert.Empty(t, api.DMCalls)
	assert.Empty(t, trail.events)
}

func TestMarkSurvivesDecorationFailures(t *testing.T) {
	api := &platform.Mock{
		SetTopicFn: func(ctx context.Context, channelID, topic string) error {
			return errors.New("403 missing permission")
		},
		SendMessageFn: func(ctx context.Context, channelID, content string) error {
			return errors.New("403 missing permission")
		},
	}
	p, reg, trail := newProvisioner(api)

	// Оформление best-effort, регистрация авторитетна
	require.NoError(t, p.Mark(context.Background(), "c1"))
	assert.True(t, reg.IsHoneypot("c1"))

	marks := trail.byKind(audit.KindRegistry)
	require.Len(t, marks, 1)
	assert.Equal(t, "marked", marks[0].Detail)
	assert.Empty(t, marks[0].Error)
}

func TestUnmarkClearsTopicAndRegistry(t *testing.T) {
	api := &platform.Mock{}
	p, reg, trail := newProvisioner(api)
	require.NoError(t, p.Mark(context.Background(), "c1"))

	require.NoError(t, p.Unmark(context.Background(), "c1"))

	assert.False(t, reg.IsHoneypot("c1"))
	// Два вызова топика: оформление и очистка
	assert.Equal(t, []string{"c1", "c1"}, api.TopicCalls)

	muts := trail.byKind(audit.KindRegistry)
	require.Len(t, muts, 2)
	assert.Equal(t, "marked", muts[0].Detail)
	assert.Equal(t, "unmarked", muts[1].Detail)
}

func TestOwnerNotificationFailureIgnored(t *testing.T) {
	api := &platform.Mock{
		CreateDMFn: func(ctx context.Context, userID string) (*platform.Channel, error) {
			return nil, errors.New("cannot DM this user")
		},
	}
	p, reg, _ := newProvisioner(api)

	p.OnGuildJoin(context.Background(), joinEvent())

	// Недоставка DM не мешает регистрации
	assert.True(t, reg.IsHoneypot("created-"+ChannelName))
}

type failStore struct{ nopStore }

func (failStore) Insert(ctx context.Context, channelID string) error {
	return errors.New("connection refused")
}

func TestMarkAuditRecordsPersistenceFailure(t *testing.T) {
	api := &platform.Mock{}
	reg := registry.New(failStore{}, zap.NewNop())
	trail := &auditCapture{}
	p := New(api, reg, trail, zap.NewNop())

	err := p.Mark(context.Background(), "c1")
	require.Error(t, err)

	// Провал durability виден оператору в записи, ловушка уже действует
	muts := trail.byKind(audit.KindRegistry)
	require.Len(t, muts, 1)
	assert.Equal(t, "marked", muts[0].Detail)
	assert.Contains(t, muts[0].Error, "persistence failure")
	assert.True(t, reg.IsHoneypot("c1"))
}
