package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/trapgate/internal/audit"
	"github.com/xela07ax/trapgate/internal/capability"
	"github.com/xela07ax/trapgate/internal/domain"
	"github.com/xela07ax/trapgate/internal/platform"
)

const (
	testGuild  = "g1"
	testChan   = "c1"
	testBot    = "bot"
	testTarget = "u1"
)

// trailStub собирает записи аудита синхронно, без воркера.
type trailStub struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *trailStub) Log(event audit.Event) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *trailStub) last(t *testing.T) audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.events)
	return s.events[len(s.events)-1]
}

// fixtureAPI — гильдия с ролью бота (ранг 5, Ban Members) и ролью
// участников (ранг 2). Поведение по цели настраивается через targetRoles.
func fixtureAPI(targetRoles []string) *platform.Mock {
	return &platform.Mock{
		FetchGuildFn: func(ctx context.Context, guildID string) (*platform.Guild, error) {
			return &platform.Guild{
				ID:      guildID,
				OwnerID: "owner",
				Roles: []platform.Role{
					{ID: "r-bot", Position: 5, Permissions: "4"}, // Ban Members
					{ID: "r-mod", Position: 5, Permissions: "4"},
					{ID: "r-user", Position: 2, Permissions: "0"},
				},
			}, nil
		},
		FetchMemberFn: func(ctx context.Context, guildID, userID string) (*platform.Member, error) {
			if userID == testBot {
				return &platform.Member{User: platform.User{ID: testBot, Bot: true}, Roles: []string{"r-bot"}}, nil
			}
			return &platform.Member{User: platform.User{ID: userID}, Roles: targetRoles}, nil
		},
	}
}

func newTestExecutor(api *platform.Mock, trail *trailStub) *Executor {
	return NewExecutor(api, &capability.Evaluator{CheckHierarchy: true}, trail,
		NewMetrics(nil), zap.NewNop(), testBot, time.Hour)
}

func request() domain.EnforcementRequest {
	return domain.EnforcementRequest{
		GuildID:     testGuild,
		ChannelID:   testChan,
		TargetID:    testTarget,
		Reason:      "Honeypot trip",
		PurgeWindow: 24 * time.Hour,
	}
}

func TestEnforceSuccess(t *testing.T) {
	api := fixtureAPI([]string{"r-user"})
	trail := &trailStub{}
	e := newTestExecutor(api, trail)

	report := e.Enforce(context.Background(), request())

	assert.Equal(t, domain.BanSuccess, report.Ban.Outcome)
	assert.True(t, report.Succeeded())
	require.Len(t, api.BanCalls, 1)
	call := api.BanCalls[0]
	assert.Equal(t, testGuild, call.GuildID)
	assert.Equal(t, testTarget, call.UserID)
	assert.Equal(t, "Honeypot trip", call.Reason)
	// Нативному удалению отдаётся меньшее из окон: час, не сутки
	assert.Equal(t, 3600, call.DeleteSeconds)

	// Окно политики шире нативного: дополнительная чистка выполнена
	// (канал в фикстуре пуст, поэтому done с нулём)
	assert.Equal(t, domain.PurgeDone, report.Purge.State)
	assert.Equal(t, 0, report.Purge.Removed)
	assert.Equal(t, 1, api.ListCalls)

	ev := trail.last(t)
	assert.Equal(t, audit.KindEnforcement, ev.Kind)
	assert.Equal(t, string(domain.BanSuccess), ev.BanOutcome)
	assert.NotEmpty(t, ev.ID)
}

func TestEnforcePurgeNotNeeded(t *testing.T) {
	api := fixtureAPI([]string{"r-user"})
	e := newTestExecutor(api, &trailStub{})

	req := request()
	req.PurgeWindow = 30 * time.Minute

	report := e.Enforce(context.Background(), req)

	require.Len(t, api.BanCalls, 1)
	// Окно политики уже нативного: delete_message_seconds сжимается под него
	assert.Equal(t, 1800, api.BanCalls[0].DeleteSeconds)
	// и постраничная чистка не запускается вовсе
	assert.Equal(t, domain.PurgeSkipped, report.Purge.State)
	assert.Equal(t, 0, api.ListCalls)
}

func TestEnforceDeniedHierarchy(t *testing.T) {
	// Цель в роли ранга 5 — ранг бота не строго выше
	api := fixtureAPI([]string{"r-mod"})
	trail := &trailStub{}
	e := newTestExecutor(api, trail)

	report := e.Enforce(context.Background(), request())

	assert.Equal(t, domain.BanDenied, report.Ban.Outcome)
	assert.Equal(t, string(capability.DenyInsufficientHierarchy), report.Ban.DenyReason)
	// Отказ оценщика означает ноль необратимых вызовов
	assert.Empty(t, api.BanCalls)
	assert.Empty(t, api.BulkDeleteCalls)
	assert.Equal(t, 0, api.ListCalls)
	assert.Equal(t, domain.PurgeSkipped, report.Purge.State)

	ev := trail.last(t)
	assert.Equal(t, audit.KindDenial, ev.Kind)
	assert.Equal(t, 5, ev.ActorRank)
	assert.Equal(t, 5, ev.TargetRank)
}

func TestEnforceDeniedOwner(t *testing.T) {
	api := fixtureAPI(nil)
	api.FetchMemberFn = func(ctx context.Context, guildID, userID string) (*platform.Member, error) {
		if userID == testBot {
			return &platform.Member{User: platform.User{ID: testBot}, Roles: []string{"r-bot"}}, nil
		}
		return &platform.Member{User: platform.User{ID: "owner"}}, nil
	}
	e := newTestExecutor(api, &trailStub{})

	req := request()
	req.TargetID = "owner"
	report := e.Enforce(context.Background(), req)

	assert.Equal(t, domain.BanDenied, report.Ban.Outcome)
	assert.Equal(t, string(capability.DenyProtectedOwner), report.Ban.DenyReason)
	assert.Empty(t, api.BanCalls)
}

func TestEnforceTargetUnresolvable(t *testing.T) {
	api := fixtureAPI(nil)
	api.FetchMemberFn = func(ctx context.Context, guildID, userID string) (*platform.Member, error) {
		return nil, errors.New("404 unknown member")
	}
	trail := &trailStub{}
	e := newTestExecutor(api, trail)

	report := e.Enforce(context.Background(), request())

	assert.Equal(t, domain.BanFailed, report.Ban.Outcome)
	assert.Contains(t, report.Ban.Error, "target unresolvable")
	// Неизвестное состояние цели — ничего необратимого не делаем
	assert.Empty(t, api.BanCalls)
	assert.Equal(t, 0, api.ListCalls)

	assert.Equal(t, audit.KindEnforcement, trail.last(t).Kind)
}

func TestEnforceBanFailureSkipsPurge(t *testing.T) {
	api := fixtureAPI([]string{"r-user"})
	api.BanMemberFn = func(ctx context.Context, guildID, userID, reason string, deleteSeconds int) error {
		return errors.New("503 service unavailable")
	}
	e := newTestExecutor(api, &trailStub{})

	report := e.Enforce(context.Background(), request())

	assert.Equal(t, domain.BanFailed, report.Ban.Outcome)
	assert.False(t, report.Succeeded())
	// Чистка за несостоявшийся бан не выполняется
	assert.Equal(t, domain.PurgeSkipped, report.Purge.State)
	assert.Equal(t, "ban failed", report.Purge.Reason)
	assert.Equal(t, 0, api.ListCalls)
}

func TestEnforceDuplicateSuppressed(t *testing.T) {
	api := fixtureAPI([]string{"r-user"})
	e := newTestExecutor(api, &trailStub{})

	// Первая обработка той же пары guild:user ещё в полёте
	e.inflight.Store(testGuild+":"+testTarget, struct{}{})

	report := e.Enforce(context.Background(), request())

	assert.Equal(t, domain.BanDuplicate, report.Ban.Outcome)
	assert.Empty(t, api.BanCalls)

	// После завершения первой обработки ключ освобождается
	e.inflight.Delete(testGuild + ":" + testTarget)
	report = e.Enforce(context.Background(), request())
	assert.Equal(t, domain.BanSuccess, report.Ban.Outcome)
}
