package domain

// RankNone — ранг участника без ролей: ниже любой реальной роли.
const RankNone = -1

// CapabilitySnapshot — точечный срез прав на момент решения об энфорсменте.
//
// Снимок снимается заново перед каждым решением и нигде не кэшируется:
// роли и права меняются между событиями. Это чистый value object,
// его заполняет вызывающий из живых данных платформы.
type CapabilitySnapshot struct {
	GuildID  string
	ActorID  string
	TargetID string

	// ActorCanBan — у бота есть право бана (Ban Members или Administrator).
	ActorCanBan bool
	// ActorRank — позиция высшей роли бота в иерархии гильдии.
	ActorRank int
	// TargetRank — позиция высшей роли цели. RankNone, если ролей нет.
	TargetRank int
	// TargetIsOwner — цель владеет сообществом. Владельцы неприкосновенны.
	TargetIsOwner bool
}
