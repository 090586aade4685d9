package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/skalibog/aitrade/internal/config"
	"github.com/skalibog/aitrade/pkg/logger"
	"github.com/skalibog/aitrade/pkg/models"
)

// Код ответа Binance "No need to change margin type"
const codeMarginNoChange = -4046

const retryAttempts = 3

// BinanceClient клиент USDT-M фьючерсов Binance
type BinanceClient struct {
	futures *futures.Client

	mu       sync.Mutex
	lotSteps map[string]float64 // кэш шагов лота из exchangeInfo
}

// NewBinanceClient создает клиента Binance. В режиме testnet
// используется тестовая сеть фьючерсов.
func NewBinanceClient(cfg config.BinanceConfig, testnet bool) (*BinanceClient, error) {
	// Базовый адрес фиксируется внутри NewClient, поэтому переключатель
	// тестовой сети должен быть выставлен до создания клиента
	futures.UseTestnet = testnet
	client := futures.NewClient(cfg.APIKey, cfg.APISecret)

	return &BinanceClient{
		futures:  client,
		lotSteps: make(map[string]float64),
	}, nil
}

// withRetry повторяет временные сетевые ошибки с экспоненциальной
// задержкой. Ошибки API биржи (бизнес-ошибки) не повторяются.
func withRetry(ctx context.Context, call func() error) error {
	b := &backoff.Backoff{
		Min:    200 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err = call(); err == nil {
			return nil
		}

		var apiErr *common.APIError
		if errors.As(err, &apiErr) {
			return err
		}

		select {
		case <-time.After(b.Duration()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// GetKlines получает исторические свечи
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	var klines []*futures.Kline
	err := withRetry(ctx, func() error {
		var err error
		klines, err = c.futures.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", err)
	}

	candles := make([]*models.Candle, len(klines))
	for i, k := range klines {
		candles[i] = &models.Candle{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  time.Unix(k.OpenTime/1000, 0),
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
			CloseTime: time.Unix(k.CloseTime/1000, 0),
		}
	}
	return candles, nil
}

// GetPositions возвращает открытые позиции. Пустой symbol — все позиции.
// Позиции с нулевым объемом отфильтровываются.
func (c *BinanceClient) GetPositions(ctx context.Context, symbol string) ([]*models.Position, error) {
	var risks []*futures.PositionRisk
	err := withRetry(ctx, func() error {
		svc := c.futures.NewGetPositionRiskService()
		if symbol != "" {
			svc = svc.Symbol(symbol)
		}
		var err error
		risks, err = svc.Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения позиций: %w", err)
	}

	var positions []*models.Position
	for _, r := range risks {
		amt := parseFloat(r.PositionAmt)
		if amt == 0 {
			continue
		}

		side := models.PositionLong
		if amt < 0 {
			side = models.PositionShort
			amt = -amt
		}

		leverage, _ := strconv.Atoi(r.Leverage)
		positions = append(positions, &models.Position{
			Symbol:     r.Symbol,
			Side:       side,
			Size:       amt,
			EntryPrice: parseFloat(r.EntryPrice),
			Leverage:   leverage,
			MarginMode: r.MarginType,
			UpdatedAt:  time.Now(),
		})
	}
	return positions, nil
}

// GetBalance возвращает баланс USDT фьючерсного кошелька
func (c *BinanceClient) GetBalance(ctx context.Context) (float64, error) {
	var balances []*futures.Balance
	err := withRetry(ctx, func() error {
		var err error
		balances, err = c.futures.NewGetBalanceService().Do(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}

	for _, b := range balances {
		if b.Asset == "USDT" {
			return parseFloat(b.Balance), nil
		}
	}
	return 0, fmt.Errorf("баланс USDT не найден")
}

// SetLeverage устанавливает плечо для символа
func (c *BinanceClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	err := withRetry(ctx, func() error {
		_, err := c.futures.NewChangeLeverageService().
			Symbol(symbol).
			Leverage(leverage).
			Do(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("ошибка установки плеча: %w", err)
	}
	return nil
}

// SetIsolatedMargin переводит символ в режим изолированной маржи.
// Повторная установка уже изолированного режима не считается ошибкой.
func (c *BinanceClient) SetIsolatedMargin(ctx context.Context, symbol string) error {
	err := withRetry(ctx, func() error {
		return c.futures.NewChangeMarginTypeService().
			Symbol(symbol).
			MarginType(futures.MarginTypeIsolated).
			Do(ctx)
	})
	if err != nil {
		if marginNoChange(err) {
			return nil
		}
		return fmt.Errorf("ошибка установки изолированной маржи: %w", err)
	}
	return nil
}

// marginNoChange распознает ответ биржи о том, что режим маржи уже
// установлен. Такой ответ не считается ошибкой.
func marginNoChange(err error) bool {
	var apiErr *common.APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeMarginNoChange
}

// PlaceOrder размещает ордер. Защитным ордерам (ClosePosition=true)
// количество не передается — биржа закрывает позицию целиком.
func (c *BinanceClient) PlaceOrder(ctx context.Context, order *models.Order) (*models.OrderResult, error) {
	clientID := order.ClientOrderID
	if clientID == "" {
		clientID = "aitrade-" + uuid.NewString()
	}

	var resp *futures.CreateOrderResponse
	err := withRetry(ctx, func() error {
		svc := c.futures.NewCreateOrderService().
			Symbol(order.Symbol).
			Side(futures.SideType(order.Side)).
			Type(futures.OrderType(order.Type)).
			NewClientOrderID(clientID)

		if order.ClosePosition {
			svc = svc.ClosePosition(true)
		} else if order.Quantity > 0 {
			svc = svc.Quantity(strconv.FormatFloat(order.Quantity, 'f', -1, 64))
		}
		if order.TriggerPrice > 0 {
			svc = svc.StopPrice(strconv.FormatFloat(order.TriggerPrice, 'f', -1, 64))
		}

		var err error
		resp, err = svc.Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка размещения ордера %s %s: %w", order.Symbol, order.Type, err)
	}

	logger.Debug("Ордер размещен",
		zap.String("symbol", order.Symbol),
		zap.String("type", string(order.Type)),
		zap.Int64("order_id", resp.OrderID))

	return &models.OrderResult{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Status:        string(resp.Status),
	}, nil
}

// LotStep возвращает шаг лота символа из exchangeInfo (с кэшированием)
func (c *BinanceClient) LotStep(ctx context.Context, symbol string) (float64, error) {
	c.mu.Lock()
	if step, ok := c.lotSteps[symbol]; ok {
		c.mu.Unlock()
		return step, nil
	}
	c.mu.Unlock()

	var info *futures.ExchangeInfo
	err := withRetry(ctx, func() error {
		var err error
		info, err = c.futures.NewExchangeInfoService().Do(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка получения exchangeInfo: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range info.Symbols {
		if f := s.LotSizeFilter(); f != nil {
			c.lotSteps[s.Symbol] = parseFloat(f.StepSize)
		}
	}

	step, ok := c.lotSteps[symbol]
	if !ok {
		return 0, fmt.Errorf("шаг лота для %s не найден", symbol)
	}
	return step, nil
}

// GetTickers возвращает суточную статистику по всем символам
func (c *BinanceClient) GetTickers(ctx context.Context) ([]*Ticker, error) {
	var stats []*futures.PriceChangeStats
	err := withRetry(ctx, func() error {
		var err error
		stats, err = c.futures.NewListPriceChangeStatsService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики тикеров: %w", err)
	}

	tickers := make([]*Ticker, len(stats))
	for i, s := range stats {
		tickers[i] = &Ticker{
			Symbol:             s.Symbol,
			LastPrice:          parseFloat(s.LastPrice),
			PriceChangePercent: parseFloat(s.PriceChangePercent),
			QuoteVolume:        parseFloat(s.QuoteVolume),
		}
	}
	return tickers, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
