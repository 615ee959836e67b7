package domain

import "time"

// EnforcementRequest — запрос на бан + чистку. Создаётся роутером при трипе
// ловушки, потребляется исполнителем и никуда не сохраняется.
type EnforcementRequest struct {
	GuildID   string
	ChannelID string
	TargetID  string
	Reason    string
	// PurgeWindow — окно политики чистки, отсчитывается от «сейчас».
	PurgeWindow time.Duration
}

// BanOutcome — итог шага бана.
type BanOutcome string

const (
	BanSuccess BanOutcome = "success"
	// BanDenied — оценщик прав отказал до вызова платформы.
	BanDenied BanOutcome = "denied"
	// BanFailed — платформа отклонила вызов или цель не резолвится.
	BanFailed BanOutcome = "failed"
	// BanDuplicate — по этой паре guild:user уже идёт энфорсмент
	// (два быстрых сообщения в ловушку), повторный бан не нужен.
	BanDuplicate BanOutcome = "duplicate"
)

// PurgeState — итог шага дополнительной чистки.
type PurgeState string

const (
	PurgeDone PurgeState = "done"
	// PurgePartial — чистка прервана на середине (сбой запроса страницы
	// или удаления), часть сообщений осталась.
	PurgePartial PurgeState = "partial"
	// PurgeSkipped — чистка не запускалась: бан не состоялся либо окно
	// политики целиком покрыто delete_message_seconds самого бана.
	PurgeSkipped PurgeState = "skipped"
)

// BanResult фиксирует исход шага бана для отчёта и аудита.
type BanResult struct {
	Outcome BanOutcome
	// DenyReason заполнен при Outcome == BanDenied.
	DenyReason string
	// Error — текст ошибки платформы при Outcome == BanFailed.
	Error string
}

// PurgeResult фиксирует исход дополнительной чистки.
type PurgeResult struct {
	State   PurgeState
	Removed int
	Reason  string
}

// ExecutionReport — сводка одного энфорсмента. Каждый шаг записывает свой
// исход независимо: частичный провал не превращается в общий отказ.
type ExecutionReport struct {
	ID         string
	Request    EnforcementRequest
	Ban        BanResult
	Purge      PurgeResult
	StartedAt  time.Time
	DurationMs int64
}

// Succeeded — бан состоялся (чистка оценивается отдельно).
func (r *ExecutionReport) Succeeded() bool {
	return r.Ban.Outcome == BanSuccess
}
