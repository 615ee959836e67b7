package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/trapgate/internal/audit"
	"github.com/xela07ax/trapgate/internal/capability"
	"github.com/xela07ax/trapgate/internal/domain"
	"github.com/xela07ax/trapgate/internal/platform"
)

// Executor — исполнитель энфорсмента: бан плюс чистка окна истории.
//
// Каждый шаг изолирован: провал одного шага записывается в отчёт и не
// валит остальные. Ни одна ошибка платформы не покидает Enforce —
// исполнитель обязан остаться пригодным для следующего события.
type Executor struct {
	api     platform.API
	eval    *capability.Evaluator
	auditor audit.Auditor
	metrics *Metrics
	logger  *zap.Logger

	// botID — учётка бота, за неё считаем ранги и права в снимке.
	botID string
	// nativeWindow — окно, которое платформа чистит сама при бане.
	nativeWindow time.Duration

	// inflight подавляет параллельный дубль по той же паре guild:user
	// (две быстрых публикации в ловушку — один бан).
	inflight sync.Map
}

func NewExecutor(
	api platform.API,
	eval *capability.Evaluator,
	auditor audit.Auditor,
	metrics *Metrics,
	logger *zap.Logger,
	botID string,
	nativeWindow time.Duration,
) *Executor {
	return &Executor{
		api:          api,
		eval:         eval,
		auditor:      auditor,
		metrics:      metrics,
		logger:       logger.Named("executor"),
		botID:        botID,
		nativeWindow: nativeWindow,
	}
}

// Enforce выполняет запрос строго по шагам:
//
//  1. резолв живого членства цели — без него необратимых действий не будет;
//  2. свежий снимок прав + оценщик — отказ до вызова бана;
//  3. бан с нативным delete_message_seconds;
//  4. дополнительная чистка, если окно политики шире нативного;
//  5. отчёт со сводкой по каждому шагу.
func (e *Executor) Enforce(ctx context.Context, req domain.EnforcementRequest) domain.ExecutionReport {
	report := domain.ExecutionReport{
		ID:        uuid.New().String(),
		Request:   req,
		StartedAt: time.Now(),
		Purge:     domain.PurgeResult{State: domain.PurgeSkipped},
	}

	key := req.GuildID + ":" + req.TargetID
	if _, loaded := e.inflight.LoadOrStore(key, struct{}{}); loaded {
		report.Ban = domain.BanResult{Outcome: domain.BanDuplicate}
		e.logger.Info("duplicate trip suppressed",
			zap.String("guild_id", req.GuildID), zap.String("target_id", req.TargetID))
		return report
	}
	defer e.inflight.Delete(key)

	snap := e.run(ctx, req, &report)

	report.DurationMs = time.Since(report.StartedAt).Milliseconds()
	e.metrics.EnforcementsTotal.WithLabelValues(string(report.Ban.Outcome)).Inc()
	e.metrics.EnforceDuration.WithLabelValues(string(report.Ban.Outcome)).
		Observe(time.Since(report.StartedAt).Seconds())
	e.audit(&report, snap)

	return report
}

// run заполняет отчёт; отдельный метод, чтобы метрики и аудит в Enforce
// срабатывали на каждом пути выхода.
func (e *Executor) run(ctx context.Context, req domain.EnforcementRequest, report *domain.ExecutionReport) domain.CapabilitySnapshot {
	var snap domain.CapabilitySnapshot

	// Шаг 1: живое членство цели. Неизвестное состояние — полный отказ,
	// никаких необратимых действий вслепую.
	target, err := e.api.FetchMember(ctx, req.GuildID, req.TargetID)
	if err != nil {
		report.Ban = domain.BanResult{Outcome: domain.BanFailed, Error: "target unresolvable: " + err.Error()}
		e.logger.Error("target unresolvable, enforcement aborted",
			zap.String("guild_id", req.GuildID), zap.String("target_id", req.TargetID), zap.Error(err))
		return snap
	}

	// Шаг 2: свежий снимок прав + чистый оценщик
	snap, err = buildSnapshot(ctx, e.api, req.GuildID, e.botID, target)
	if err != nil {
		report.Ban = domain.BanResult{Outcome: domain.BanFailed, Error: "capability snapshot: " + err.Error()}
		e.logger.Error("capability snapshot failed, enforcement aborted",
			zap.String("guild_id", req.GuildID), zap.Error(err))
		return snap
	}

	decision := e.eval.Evaluate(snap)
	if !decision.Allowed() {
		report.Ban = domain.BanResult{Outcome: domain.BanDenied, DenyReason: string(decision.Verdict)}
		e.metrics.DenialsTotal.WithLabelValues(string(decision.Verdict)).Inc()
		// Конкретные ранги и ID в лог — оператору для разбора
		e.logger.Warn("enforcement denied",
			zap.String("verdict", string(decision.Verdict)),
			zap.String("reason", decision.Reason),
			zap.Int("actor_rank", snap.ActorRank),
			zap.Int("target_rank", snap.TargetRank),
			zap.String("target_id", snap.TargetID))
		return snap
	}

	// Шаг 3: бан. Нативному удалению отдаём не больше окна политики.
	native := e.nativeWindow
	if req.PurgeWindow < native {
		native = req.PurgeWindow
	}
	if err := e.api.BanMember(ctx, req.GuildID, req.TargetID, req.Reason, int(native.Seconds())); err != nil {
		report.Ban = domain.BanResult{Outcome: domain.BanFailed, Error: err.Error()}
		// Чистку за несостоявшийся бан не делаем
		report.Purge = domain.PurgeResult{State: domain.PurgeSkipped, Reason: "ban failed"}
		e.logger.Error("ban call failed",
			zap.String("guild_id", req.GuildID), zap.String("target_id", req.TargetID), zap.Error(err))
		return snap
	}
	report.Ban = domain.BanResult{Outcome: domain.BanSuccess}
	e.logger.Info("member banned",
		zap.String("guild_id", req.GuildID),
		zap.String("target_id", req.TargetID),
		zap.String("reason", req.Reason))

	// Шаг 4: дополнительная чистка нужна, только если политика шире
	// того, что уже вычистил сам бан.
	if req.PurgeWindow > e.nativeWindow {
		report.Purge = e.purge(ctx, req.ChannelID, req.PurgeWindow)
		e.metrics.PurgedMessages.Add(float64(report.Purge.Removed))
	} else {
		report.Purge = domain.PurgeResult{State: domain.PurgeSkipped, Reason: "native delete window covers policy"}
	}

	return snap
}

func (e *Executor) audit(report *domain.ExecutionReport, snap domain.CapabilitySnapshot) {
	kind := audit.KindEnforcement
	if report.Ban.Outcome == domain.BanDenied {
		kind = audit.KindDenial
	}
	e.auditor.Log(audit.Event{
		ID:           report.ID,
		Kind:         kind,
		GuildID:      report.Request.GuildID,
		ChannelID:    report.Request.ChannelID,
		TargetID:     report.Request.TargetID,
		BanOutcome:   string(report.Ban.Outcome),
		DenyReason:   report.Ban.DenyReason,
		PurgeState:   string(report.Purge.State),
		PurgeRemoved: report.Purge.Removed,
		Error:        report.Ban.Error,
		ActorRank:    snap.ActorRank,
		TargetRank:   snap.TargetRank,
		Timestamp:    report.StartedAt,
		DurationMs:   report.DurationMs,
	})
}
