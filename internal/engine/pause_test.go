package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Без Redis свитч работает локально; сетевые пути здесь не гоняем.
func TestPauseSwitchLocal(t *testing.T) {
	ctx := context.Background()
	p := NewPauseSwitch(nil, zap.NewNop())
	require.NoError(t, p.Init(ctx))

	assert.False(t, p.IsPaused("g1"))

	require.NoError(t, p.Set(ctx, "g1", true))
	assert.True(t, p.IsPaused("g1"))
	assert.False(t, p.IsPaused("g2"))

	require.NoError(t, p.Set(ctx, "g1", false))
	assert.False(t, p.IsPaused("g1"))
}

func TestPauseSwitchGlobal(t *testing.T) {
	ctx := context.Background()
	p := NewPauseSwitch(nil, zap.NewNop())

	require.NoError(t, p.Set(ctx, "*", true))
	// Глобальная пауза накрывает все гильдии, включая не помеченные
	assert.True(t, p.IsPaused("g1"))
	assert.True(t, p.IsPaused("g2"))

	require.NoError(t, p.Set(ctx, "*", false))
	assert.False(t, p.IsPaused("g1"))

	// Пер-гильдийная пауза переживает снятие глобальной
	require.NoError(t, p.Set(ctx, "g1", true))
	require.NoError(t, p.Set(ctx, "*", true))
	require.NoError(t, p.Set(ctx, "*", false))
	assert.True(t, p.IsPaused("g1"))
	assert.False(t, p.IsPaused("g2"))
}
