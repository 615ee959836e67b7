package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xela07ax/trapgate/internal/domain"
)

func snapshot(canBan bool, actorRank, targetRank int, owner bool) domain.CapabilitySnapshot {
	return domain.CapabilitySnapshot{
		GuildID:       "g1",
		ActorID:       "bot",
		TargetID:      "u1",
		ActorCanBan:   canBan,
		ActorRank:     actorRank,
		TargetRank:    targetRank,
		TargetIsOwner: owner,
	}
}

func TestEvaluateOrder(t *testing.T) {
	e := &Evaluator{CheckHierarchy: true}

	tests := []struct {
		name string
		snap domain.CapabilitySnapshot
		want Verdict
	}{
		{"allowed when strictly above", snapshot(true, 5, 2, false), VerdictAllowed},
		{"missing permission", snapshot(false, 5, 2, false), DenyMissingPermission},
		// Отсутствие права бана побеждает все дальнейшие проверки
		{"missing permission wins over owner", snapshot(false, 5, 2, true), DenyMissingPermission},
		{"owner protected", snapshot(true, 10, 2, true), DenyProtectedOwner},
		// Владелец защищён категорически, ранги не рассматриваются
		{"owner wins over hierarchy", snapshot(true, 1, 9, true), DenyProtectedOwner},
		{"equal rank denied", snapshot(true, 5, 5, false), DenyInsufficientHierarchy},
		{"lower rank denied", snapshot(true, 2, 5, false), DenyInsufficientHierarchy},
		// Участники без ролей: RankNone с обеих сторон — не строго выше
		{"both roleless denied", snapshot(true, domain.RankNone, domain.RankNone, false), DenyInsufficientHierarchy},
		{"roleless target allowed", snapshot(true, 3, domain.RankNone, false), VerdictAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Evaluate(tt.snap)
			assert.Equal(t, tt.want, d.Verdict)
			if tt.want == VerdictAllowed {
				assert.True(t, d.Allowed())
				assert.Empty(t, d.Reason)
			} else {
				assert.False(t, d.Allowed())
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestEvaluateHierarchyDisabled(t *testing.T) {
	e := &Evaluator{CheckHierarchy: false}

	// Без проверки иерархии равный ранг проходит
	d := e.Evaluate(snapshot(true, 5, 5, false))
	assert.Equal(t, VerdictAllowed, d.Verdict)

	d = e.Evaluate(snapshot(true, 2, 9, false))
	assert.Equal(t, VerdictAllowed, d.Verdict)

	// Но владелец защищён в любом режиме
	d = e.Evaluate(snapshot(true, 10, 2, true))
	assert.Equal(t, DenyProtectedOwner, d.Verdict)

	// И право бана обязательно в любом режиме
	d = e.Evaluate(snapshot(false, 10, 2, false))
	assert.Equal(t, DenyMissingPermission, d.Verdict)
}
