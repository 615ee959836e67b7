package audit

import "time"

// Виды записей аудита.
const (
	KindEnforcement = "enforcement" // итог бана + чистки
	KindDenial      = "denial"      // отказ оценщика прав (до бана)
	KindProvision   = "provision"   // авто-создание ловушки в новой гильдии
	KindRegistry    = "registry"    // ручная мутация реестра командой
)

// Event — одна запись следа энфорсмента.
//
// Автоматического ретрая упавших банов нет: сработавшая ловушка, которую
// не удалось забанить, остаётся в аудите для ручного разбора оператором.
type Event struct {
	ID        string `json:"id"`         // UUID записи
	Kind      string `json:"kind"`       // enforcement / denial / provision / registry
	GuildID   string `json:"guild_id"`   // где случилось
	ChannelID string `json:"channel_id"` // канал-ловушка
	TargetID  string `json:"target_id"`  // против кого

	// Исход
	BanOutcome   string `json:"ban_outcome,omitempty"`
	DenyReason   string `json:"deny_reason,omitempty"`
	PurgeState   string `json:"purge_state,omitempty"`
	PurgeRemoved int    `json:"purge_removed"`
	Error        string `json:"error,omitempty"`
	// Detail уточняет записи provision/registry: marked, unmarked,
	// channel created, channel reused.
	Detail string `json:"detail,omitempty"`

	// Диагностика отказов иерархии: конкретные ранги для оператора.
	ActorRank  int `json:"actor_rank"`
	TargetRank int `json:"target_rank"`

	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
}
