package exchange

import (
	"context"

	"github.com/skalibog/aitrade/pkg/models"
)

// Ticker суточная статистика по символу
type Ticker struct {
	Symbol             string
	LastPrice          float64
	PriceChangePercent float64
	QuoteVolume        float64
}

// Client абстракция биржи, потребляемая сканером и исполнителем сделок.
// Все вызовы могут завершаться сетевыми ошибками; повторные попытки
// выполняются внутри реализации, выше ошибки не ретраятся.
type Client interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error)
	GetPositions(ctx context.Context, symbol string) ([]*models.Position, error)
	GetBalance(ctx context.Context) (float64, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetIsolatedMargin(ctx context.Context, symbol string) error
	PlaceOrder(ctx context.Context, order *models.Order) (*models.OrderResult, error)
	LotStep(ctx context.Context, symbol string) (float64, error)
	GetTickers(ctx context.Context) ([]*Ticker, error)
}
