package exchange

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
)

// Paper is the simulation execution adapter: every order fills instantly
// and only a local shadow position is kept. It lets the engine run the
// full lifecycle with no exchange account.
type Paper struct {
	symbol string
	logger *zap.Logger

	mu     sync.Mutex
	pos    *domain.ExchangePosition
	nextID int64
}

func NewPaper(symbol string, logger *zap.Logger) *Paper {
	return &Paper{symbol: symbol, logger: logger}
}

func (p *Paper) PlaceOrder(_ context.Context, side domain.Side, quantity float64, reduceOnly bool) (*domain.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++

	if reduceOnly {
		if p.pos == nil {
			return nil, domain.ErrNoPosition
		}
		p.pos.Size -= quantity
		if p.pos.Size <= 0 {
			p.pos = nil
		}
	} else {
		p.pos = &domain.ExchangePosition{
			Symbol: p.symbol,
			Side:   side,
			Size:   quantity,
		}
	}

	p.logger.Debug("paper order filled",
		zap.String("side", string(side)),
		zap.Float64("qty", quantity),
		zap.Bool("reduce_only", reduceOnly))
	return &domain.OrderResult{
		OrderID:  "paper-" + strconv.FormatInt(p.nextID, 10),
		Quantity: quantity,
	}, nil
}

func (p *Paper) ClosePosition(context.Context) (*domain.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos == nil {
		return nil, domain.ErrNoPosition
	}
	qty := p.pos.Size
	p.pos = nil
	p.nextID++
	return &domain.OrderResult{
		OrderID:  "paper-" + strconv.FormatInt(p.nextID, 10),
		Quantity: qty,
	}, nil
}

func (p *Paper) GetOpenPosition(context.Context) (*domain.ExchangePosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos == nil {
		return nil, nil
	}
	snapshot := *p.pos
	return &snapshot, nil
}
