package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
)

// BinanceFutures is the live execution adapter for a single symbol. It
// implements the narrow domain.Exchange interface the engine trades
// through; everything exchange-specific stays behind it.
type BinanceFutures struct {
	client   *futures.Client
	symbol   string
	leverage int
	logger   *zap.Logger
}

func NewBinanceFutures(client *futures.Client, symbol string, leverage int, isolated bool, logger *zap.Logger) *BinanceFutures {
	b := &BinanceFutures{
		client:   client,
		symbol:   symbol,
		leverage: leverage,
		logger:   logger,
	}
	b.setup(isolated)
	return b
}

// setup applies leverage and margin mode. Both calls fail when the value
// is already set, so errors are logged and ignored.
func (b *BinanceFutures) setup(isolated bool) {
	ctx := context.Background()
	if _, err := b.client.NewChangeLeverageService().
		Symbol(b.symbol).
		Leverage(b.leverage).
		Do(ctx); err != nil {
		b.logger.Debug("change leverage", zap.Error(err))
	}
	marginType := futures.MarginTypeCrossed
	if isolated {
		marginType = futures.MarginTypeIsolated
	}
	if err := b.client.NewChangeMarginTypeService().
		Symbol(b.symbol).
		MarginType(marginType).
		Do(ctx); err != nil {
		b.logger.Debug("change margin type", zap.Error(err))
	}
}

func (b *BinanceFutures) PlaceOrder(ctx context.Context, side domain.Side, quantity float64, reduceOnly bool) (*domain.OrderResult, error) {
	orderSide := futures.SideTypeBuy
	if side == domain.SideShort {
		orderSide = futures.SideTypeSell
	}
	svc := b.client.NewCreateOrderService().
		Symbol(b.symbol).
		Side(orderSide).
		Type(futures.OrderTypeMarket).
		Quantity(formatQuantity(quantity))
	if reduceOnly {
		svc = svc.ReduceOnly(true)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	price, _ := strconv.ParseFloat(resp.AvgPrice, 64)
	qty, _ := strconv.ParseFloat(resp.ExecutedQuantity, 64)
	return &domain.OrderResult{
		OrderID:  strconv.FormatInt(resp.OrderID, 10),
		Price:    price,
		Quantity: qty,
	}, nil
}

// ClosePosition flattens the open position with a reduce-only market
// order in the opposite direction.
func (b *BinanceFutures) ClosePosition(ctx context.Context) (*domain.OrderResult, error) {
	pos, err := b.GetOpenPosition(ctx)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, domain.ErrNoPosition
	}
	closeSide := domain.SideShort
	if pos.Side == domain.SideShort {
		closeSide = domain.SideLong
	}
	return b.PlaceOrder(ctx, closeSide, pos.Size, true)
}

func (b *BinanceFutures) GetOpenPosition(ctx context.Context) (*domain.ExchangePosition, error) {
	risks, err := b.client.NewGetPositionRiskService().Symbol(b.symbol).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("position risk: %w", err)
	}
	for _, r := range risks {
		amt, perr := strconv.ParseFloat(r.PositionAmt, 64)
		if perr != nil || amt == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(r.EntryPrice, 64)
		side := domain.SideLong
		size := amt
		if amt < 0 {
			side = domain.SideShort
			size = -amt
		}
		return &domain.ExchangePosition{
			Symbol:     r.Symbol,
			Side:       side,
			Size:       size,
			EntryPrice: entry,
		}, nil
	}
	return nil, nil
}

// formatQuantity trims trailing zeros so the exchange does not reject the
// quantity for excess precision.
func formatQuantity(q float64) string {
	s := strconv.FormatFloat(q, 'f', 8, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
