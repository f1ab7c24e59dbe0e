package exchange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
)

func TestPaper_Lifecycle(t *testing.T) {
	ctx := context.Background()
	p := NewPaper("BTCUSDT", zap.NewNop())

	pos, err := p.GetOpenPosition(ctx)
	require.NoError(t, err)
	assert.Nil(t, pos)

	res, err := p.PlaceOrder(ctx, domain.SideLong, 2.5, false)
	require.NoError(t, err)
	assert.Equal(t, "paper-1", res.OrderID)
	assert.Equal(t, 2.5, res.Quantity)

	pos, err = p.GetOpenPosition(ctx)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, domain.SideLong, pos.Side)
	assert.Equal(t, 2.5, pos.Size)

	res, err = p.ClosePosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.5, res.Quantity)

	pos, err = p.GetOpenPosition(ctx)
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestPaper_ReduceOnly(t *testing.T) {
	ctx := context.Background()
	p := NewPaper("BTCUSDT", zap.NewNop())

	_, err := p.PlaceOrder(ctx, domain.SideShort, 1, true)
	assert.ErrorIs(t, err, domain.ErrNoPosition, "reduce-only with no position")

	_, err = p.PlaceOrder(ctx, domain.SideLong, 4, false)
	require.NoError(t, err)

	_, err = p.PlaceOrder(ctx, domain.SideShort, 1.5, true)
	require.NoError(t, err)
	pos, err := p.GetOpenPosition(ctx)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, 2.5, pos.Size)

	// reducing the remainder to zero flattens the shadow position
	_, err = p.PlaceOrder(ctx, domain.SideShort, 2.5, true)
	require.NoError(t, err)
	pos, err = p.GetOpenPosition(ctx)
	require.NoError(t, err)
	assert.Nil(t, pos)

	_, err = p.ClosePosition(ctx)
	assert.ErrorIs(t, err, domain.ErrNoPosition)
}
