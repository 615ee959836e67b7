package capability

import (
	"fmt"

	"github.com/xela07ax/trapgate/internal/domain"
)

// Verdict — исход оценки прав.
type Verdict string

const (
	VerdictAllowed Verdict = "allowed"
	// DenyMissingPermission — у бота нет права бана.
	DenyMissingPermission Verdict = "missing_permission"
	// DenyProtectedOwner — цель владеет сообществом, владельцы
	// неприкосновенны независимо от рангов.
	DenyProtectedOwner Verdict = "protected_owner"
	// DenyInsufficientHierarchy — ранг бота не строго выше ранга цели.
	// Равенство рангов — тоже отказ: платформа такой бан отклонит.
	DenyInsufficientHierarchy Verdict = "insufficient_hierarchy"
)

// Decision — результат оценки с человекочитаемой диагностикой.
type Decision struct {
	Verdict Verdict
	Reason  string
}

func (d Decision) Allowed() bool { return d.Verdict == VerdictAllowed }

// Evaluator — чистый оценщик прав энфорсмента. Никакого I/O: снимок прав
// обязан быть свежим, его добывает вызывающий непосредственно перед оценкой.
//
// Административное право на конфигурацию ловушек сознательно НЕ даёт права
// на энфорсмент: платформа всё равно отклонит бан без иерархии, а явная
// предварительная проверка даёт оператору внятную диагностику вместо
// молчаливого отказа снаружи.
type Evaluator struct {
	// CheckHierarchy — строгая проверка иерархии рангов (шаг 3).
	// Исторический вариант бота её не делал; по умолчанию включена.
	CheckHierarchy bool
}

// Evaluate применяет проверки в фиксированном порядке: побеждает первый
// провалившийся шаг — так диагностика однозначна.
//
//  1. Нет права бана            -> missing_permission
//  2. Цель — владелец           -> protected_owner
//  3. Ранг не строго выше цели  -> insufficient_hierarchy
//  4. Иначе                     -> allowed
func (e *Evaluator) Evaluate(s domain.CapabilitySnapshot) Decision {
	if !s.ActorCanBan {
		return Decision{
			Verdict: DenyMissingPermission,
			Reason:  fmt.Sprintf("actor %s lacks ban permission in guild %s", s.ActorID, s.GuildID),
		}
	}

	if s.TargetIsOwner {
		return Decision{
			Verdict: DenyProtectedOwner,
			Reason:  fmt.Sprintf("target %s owns guild %s", s.TargetID, s.GuildID),
		}
	}

	if e.CheckHierarchy && s.ActorRank <= s.TargetRank {
		return Decision{
			Verdict: DenyInsufficientHierarchy,
			Reason: fmt.Sprintf("actor rank %d is not above target rank %d (target %s)",
				s.ActorRank, s.TargetRank, s.TargetID),
		}
	}

	return Decision{Verdict: VerdictAllowed}
}
