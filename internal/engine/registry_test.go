package engine

import (
	"context"
	"testing"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/clock"
	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/danielpatrickdp/anima-core/internal/signals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetIsLazyAndStable(t *testing.T) {
	r := NewRegistry(testConfig(), Deps{Clock: clock.NewManual(epoch)})
	ctx := context.Background()

	a, err := r.Get(ctx, "ada")
	require.NoError(t, err)
	again, err := r.Get(ctx, "ada")
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = r.Get(ctx, "")
	assert.ErrorIs(t, err, errtrack.ErrValidation)
	assert.Equal(t, []string{"ada"}, r.IDs())
}

func TestRegistry_EntitiesAreIndependent(t *testing.T) {
	clk := clock.NewManual(epoch)
	r := NewRegistry(testConfig(), Deps{Clock: clk})
	ctx := context.Background()

	a, err := r.Get(ctx, "ada")
	require.NoError(t, err)
	b, err := r.Get(ctx, "bob")
	require.NoError(t, err)

	before := b.Report().Metrics
	for i := 0; i < 3; i++ {
		clk.Advance(time.Second)
		_, err := a.Interact(ctx, signals.Event{Text: "joy and love", Strength: 1})
		require.NoError(t, err)
	}
	assert.Len(t, a.History(), 3)
	assert.Empty(t, b.History())
	assert.Equal(t, before, b.Report().Metrics)
}

func TestRegistry_TickAllAndRemove(t *testing.T) {
	clk := clock.NewManual(epoch)
	r := NewRegistry(testConfig(), Deps{Clock: clk})
	ctx := context.Background()
	for _, id := range []string{"carol", "ada", "bob"} {
		_, err := r.Get(ctx, id)
		require.NoError(t, err)
	}

	clk.Advance(time.Second)
	reports, err := r.TickAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "ada", reports[0].EntityID)
	assert.Equal(t, "carol", reports[2].EntityID)

	require.NoError(t, r.Remove("bob"))
	assert.Equal(t, []string{"ada", "carol"}, r.IDs())
	assert.ErrorIs(t, r.Remove("bob"), errtrack.ErrValidation)
}
