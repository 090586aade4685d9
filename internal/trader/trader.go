package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/aitrade/internal/config"
	"github.com/skalibog/aitrade/internal/exchange"
	"github.com/skalibog/aitrade/internal/storage"
	"github.com/skalibog/aitrade/pkg/logger"
	"github.com/skalibog/aitrade/pkg/models"
)

// Состояние позиции в локальном кэше
type positionState string

const (
	stateFlat     positionState = "FLAT"
	stateEntering positionState = "ENTERING"
	stateOpen     positionState = "OPEN"
	stateClosing  positionState = "CLOSING"
)

// Срок жизни кэша баланса
const balanceTTL = 30 * time.Second

type cacheEntry struct {
	state    positionState
	position *models.Position
}

// Trader исполняет торговые рекомендации. Гарантирует не более одной
// позиции на символ: вся последовательность проверок и ордеров по
// символу выполняется под мьютексом этого символа. Источником истины
// о позициях является биржа, локальный кэш — только первая линия
// проверки.
type Trader struct {
	client exchange.Client
	store  storage.Storage // может быть nil
	risk   config.RiskConfig

	// Порог уверенности, ниже которого рекомендации не исполняются
	confidenceThreshold float64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	cache map[string]*cacheEntry

	balanceMu sync.Mutex
	balance   float64
	balanceAt time.Time
}

// NewTrader создает исполнителя сделок
func NewTrader(client exchange.Client, store storage.Storage, risk config.RiskConfig, confidenceThreshold float64) *Trader {
	return &Trader{
		client:              client,
		store:               store,
		risk:                risk,
		confidenceThreshold: confidenceThreshold,
		locks:               make(map[string]*sync.Mutex),
		cache:               make(map[string]*cacheEntry),
	}
}

// symbolLock возвращает мьютекс символа, создавая его при первом обращении
func (t *Trader) symbolLock(symbol string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[symbol] = lock
	}
	return lock
}

func (t *Trader) cacheGet(symbol string) *cacheEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cache[symbol]
}

func (t *Trader) cacheSet(symbol string, state positionState, pos *models.Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache[symbol] = &cacheEntry{state: state, position: pos}
}

// Execute исполняет рекомендацию: допуск, расчет размера, установка
// плеча и маржи, рыночный вход и обязательные защитные ордера.
// Ошибки допуска (ErrPositionExists и прочие) — ожидаемые исходы.
func (t *Trader) Execute(ctx context.Context, rec *models.Recommendation) (*models.TradeResult, error) {
	if rec.Action == models.ActionHold {
		return nil, ErrHoldAction
	}
	if rec.Confidence < t.confidenceThreshold {
		return nil, fmt.Errorf("%w: %.2f < %.2f", ErrLowConfidence, rec.Confidence, t.confidenceThreshold)
	}
	if rec.EntryPrice <= 0 || rec.StopLoss <= 0 || rec.TakeProfit <= 0 {
		return nil, fmt.Errorf("%w: %s entry=%v stop=%v take=%v",
			ErrMissingPrices, rec.Symbol, rec.EntryPrice, rec.StopLoss, rec.TakeProfit)
	}

	// Вся проверка и исполнение по символу атомарны относительно
	// других сделок по этому же символу
	lock := t.symbolLock(rec.Symbol)
	lock.Lock()
	defer lock.Unlock()

	if err := t.admit(ctx, rec.Symbol); err != nil {
		return nil, err
	}

	balance, err := t.accountBalance(ctx)
	if err != nil {
		return nil, err
	}

	leverage := clampLeverage(rec.Leverage, t.risk.DefaultLeverage, t.risk.MaxLeverage)

	size, err := PositionSize(balance, t.risk.RiskPerTrade, rec.EntryPrice, rec.StopLoss, leverage)
	if err != nil {
		return nil, fmt.Errorf("ошибка расчета размера позиции %s: %w", rec.Symbol, err)
	}

	step := t.lotStep(ctx, rec.Symbol)
	size = RoundToLotStep(size, step)
	if size <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrPositionTooSmall, rec.Symbol)
	}

	margin := size * rec.EntryPrice / float64(leverage)
	if margin > t.risk.MaxPositionSize*balance {
		return nil, fmt.Errorf("%w: маржа %.2f при лимите %.2f",
			ErrMarginExceeded, margin, t.risk.MaxPositionSize*balance)
	}

	logger.Info("Исполнение рекомендации",
		zap.String("symbol", rec.Symbol),
		zap.String("action", string(rec.Action)),
		zap.Float64("size", size),
		zap.Int("leverage", leverage),
		zap.Float64("margin", margin))

	result, err := t.placeOrders(ctx, rec, size, leverage)

	if t.store != nil && result != nil {
		if saveErr := t.store.SaveTradeResult(context.WithoutCancel(ctx), result); saveErr != nil {
			logger.Warn("Не удалось сохранить результат сделки",
				zap.String("symbol", rec.Symbol), zap.Error(saveErr))
		}
	}

	return result, err
}

// admit выполняет трехступенчатую проверку дубликата позиции и лимита
// открытых позиций. Вызывается под мьютексом символа.
func (t *Trader) admit(ctx context.Context, symbol string) error {
	// Ступень 1: локальный кэш
	if entry := t.cacheGet(symbol); entry != nil && entry.state != stateFlat && !entry.position.Flat() {
		return fmt.Errorf("%w (кэш): %s", ErrPositionExists, symbol)
	}

	// Ступень 2: запрос к бирже, источнику истины
	positions, err := t.client.GetPositions(ctx, "")
	if err != nil {
		return fmt.Errorf("ошибка проверки позиций на бирже: %w", err)
	}

	open := 0
	for _, p := range positions {
		if p.Flat() {
			continue
		}
		open++
		if p.Symbol == symbol {
			t.cacheSet(symbol, stateOpen, p)
			return fmt.Errorf("%w (биржа): %s", ErrPositionExists, symbol)
		}
	}

	if t.risk.MaxPositions > 0 && open >= t.risk.MaxPositions {
		return fmt.Errorf("%w: открыто %d", ErrMaxPositions, open)
	}

	// Ступень 3: повторная проверка кэша после сетевого вызова.
	// Мьютекс символа исключает гонку внутри процесса, повторная
	// проверка страхует от записи, сделанной за время запроса
	// другим путем (например, ручным закрытием).
	if entry := t.cacheGet(symbol); entry != nil && entry.state != stateFlat && !entry.position.Flat() {
		return fmt.Errorf("%w (повторная проверка): %s", ErrPositionExists, symbol)
	}

	return nil
}

// placeOrders размещает вход и защитные ордера. Последовательность
// выполняется под context.WithoutCancel: начатую сделку нельзя бросить
// на полпути из-за отмены внешнего контекста.
func (t *Trader) placeOrders(ctx context.Context, rec *models.Recommendation, size float64, leverage int) (*models.TradeResult, error) {
	execCtx := context.WithoutCancel(ctx)

	result := &models.TradeResult{
		Symbol:       rec.Symbol,
		PositionSize: size,
		Leverage:     leverage,
		Timestamp:    time.Now(),
	}

	entrySide, exitSide := "BUY", "SELL"
	positionSide := models.PositionLong
	if rec.Action == models.ActionShort {
		entrySide, exitSide = "SELL", "BUY"
		positionSide = models.PositionShort
	}

	if err := t.client.SetLeverage(execCtx, rec.Symbol, leverage); err != nil {
		result.Message = "не удалось установить плечо"
		return result, &ExecutionError{Symbol: rec.Symbol, Stage: StageLeverage, Err: err}
	}
	if err := t.client.SetIsolatedMargin(execCtx, rec.Symbol); err != nil {
		result.Message = "не удалось установить изолированную маржу"
		return result, &ExecutionError{Symbol: rec.Symbol, Stage: StageMargin, Err: err}
	}

	t.cacheSet(rec.Symbol, stateEntering, nil)

	entry, err := t.client.PlaceOrder(execCtx, &models.Order{
		Symbol:       rec.Symbol,
		Type:         models.OrderMarketEntry,
		Side:         entrySide,
		PositionSide: positionSide,
		Quantity:     size,
	})
	if err != nil {
		t.cacheSet(rec.Symbol, stateFlat, nil)
		result.Message = "не удалось открыть позицию"
		return result, &ExecutionError{Symbol: rec.Symbol, Stage: StageEntry, Err: err}
	}
	result.EntryOrder = entry

	// Позиция открыта. С этого момента любой сбой требует компенсации:
	// позиция без защитных ордеров недопустима.
	stop, err := t.client.PlaceOrder(execCtx, &models.Order{
		Symbol:        rec.Symbol,
		Type:          models.OrderStopMarket,
		Side:          exitSide,
		PositionSide:  positionSide,
		TriggerPrice:  rec.StopLoss,
		ClosePosition: true,
	})
	if err != nil {
		result.CompensationPerformed = t.compensate(execCtx, rec.Symbol, exitSide, size)
		result.Message = "не удалось разместить стоп-лосс, позиция закрыта"
		return result, &ExecutionError{
			Symbol: rec.Symbol, Stage: StageStopLoss, Err: err,
			CompensationPerformed: result.CompensationPerformed,
		}
	}
	result.StopLossOrder = stop

	take, err := t.client.PlaceOrder(execCtx, &models.Order{
		Symbol:        rec.Symbol,
		Type:          models.OrderTakeProfitMarket,
		Side:          exitSide,
		PositionSide:  positionSide,
		TriggerPrice:  rec.TakeProfit,
		ClosePosition: true,
	})
	if err != nil {
		result.CompensationPerformed = t.compensate(execCtx, rec.Symbol, exitSide, size)
		result.Message = "не удалось разместить тейк-профит, позиция закрыта"
		return result, &ExecutionError{
			Symbol: rec.Symbol, Stage: StageTakeProfit, Err: err,
			CompensationPerformed: result.CompensationPerformed,
		}
	}
	result.TakeProfitOrder = take

	t.cacheSet(rec.Symbol, stateOpen, &models.Position{
		Symbol:     rec.Symbol,
		Side:       positionSide,
		Size:       size,
		EntryPrice: rec.EntryPrice,
		Leverage:   leverage,
		UpdatedAt:  time.Now(),
	})

	result.Success = true
	result.Message = "позиция открыта с защитными ордерами"

	logger.Info("Сделка исполнена",
		zap.String("symbol", rec.Symbol),
		zap.String("side", string(positionSide)),
		zap.Float64("size", size),
		zap.Float64("stop_loss", rec.StopLoss),
		zap.Float64("take_profit", rec.TakeProfit))

	return result, nil
}

// compensate закрывает позицию рыночным ордером после сбоя размещения
// защитного ордера. Неудача компенсации эскалируется: позиция остается
// открытой без защиты и требует ручного вмешательства.
func (t *Trader) compensate(ctx context.Context, symbol, exitSide string, size float64) bool {
	t.cacheSet(symbol, stateClosing, nil)

	logger.Warn("Компенсирующее закрытие позиции", zap.String("symbol", symbol))

	_, err := t.client.PlaceOrder(ctx, &models.Order{
		Symbol:   symbol,
		Type:     models.OrderMarketEntry,
		Side:     exitSide,
		Quantity: size,
	})
	if err != nil {
		logger.Error("ПОЗИЦИЯ БЕЗ ЗАЩИТНЫХ ОРДЕРОВ: компенсирующее закрытие не удалось",
			zap.String("symbol", symbol),
			zap.Error(err))
		t.cacheSet(symbol, stateOpen, &models.Position{Symbol: symbol, Size: size, UpdatedAt: time.Now()})
		return false
	}

	t.cacheSet(symbol, stateFlat, nil)
	return true
}

// ClosePosition вручную закрывает позицию по символу рыночным ордером
func (t *Trader) ClosePosition(ctx context.Context, symbol string) error {
	lock := t.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	positions, err := t.client.GetPositions(ctx, symbol)
	if err != nil {
		return fmt.Errorf("ошибка получения позиции для закрытия: %w", err)
	}

	var target *models.Position
	for _, p := range positions {
		if p.Symbol == symbol && !p.Flat() {
			target = p
			break
		}
	}
	if target == nil {
		t.cacheSet(symbol, stateFlat, nil)
		return fmt.Errorf("открытой позиции по %s нет", symbol)
	}

	exitSide := "SELL"
	if target.Side == models.PositionShort {
		exitSide = "BUY"
	}

	t.cacheSet(symbol, stateClosing, target)

	_, err = t.client.PlaceOrder(context.WithoutCancel(ctx), &models.Order{
		Symbol:   symbol,
		Type:     models.OrderMarketEntry,
		Side:     exitSide,
		Quantity: target.Size,
	})
	if err != nil {
		t.cacheSet(symbol, stateOpen, target)
		return fmt.Errorf("ошибка закрытия позиции %s: %w", symbol, err)
	}

	t.cacheSet(symbol, stateFlat, nil)
	logger.Info("Позиция закрыта вручную", zap.String("symbol", symbol))
	return nil
}

// accountBalance возвращает баланс с биржи с коротким кэшированием.
// При недоступности биржи используется баланс из конфигурации.
func (t *Trader) accountBalance(ctx context.Context) (float64, error) {
	t.balanceMu.Lock()
	defer t.balanceMu.Unlock()

	if t.balance > 0 && time.Since(t.balanceAt) < balanceTTL {
		return t.balance, nil
	}

	balance, err := t.client.GetBalance(ctx)
	if err != nil || balance <= 0 {
		if t.risk.AccountBalance > 0 {
			logger.Warn("Баланс биржи недоступен, используется значение из конфигурации",
				zap.Error(err))
			return t.risk.AccountBalance, nil
		}
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}

	t.balance = balance
	t.balanceAt = time.Now()
	return balance, nil
}

// lotStep возвращает шаг лота символа, при недоступности биржи
// используется шаг из конфигурации
func (t *Trader) lotStep(ctx context.Context, symbol string) float64 {
	step, err := t.client.LotStep(ctx, symbol)
	if err != nil || step <= 0 {
		logger.Debug("Шаг лота недоступен, используется значение из конфигурации",
			zap.String("symbol", symbol))
		return t.risk.LotStep
	}
	return step
}
