package models

import (
	"time"
)

// Candle представляет свечу
type Candle struct {
	Symbol    string
	Interval  string
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// MarketSnapshot представляет срез рыночных данных по одному символу,
// передаваемый AI-анализатору. Пересобирается на каждом цикле анализа.
type MarketSnapshot struct {
	Symbol          string
	Timeframe       string
	Price           float64
	ChangePercent   float64
	Volume          float64
	High            float64
	Low             float64
	Indicators      map[string]float64 // последние валидные значения индикаторов
	ValidIndicators int                // количество индикаторов с валидными данными
	TotalIndicators int
	Timestamp       time.Time
}

// Action направление сделки, рекомендованное AI
type Action string

const (
	ActionLong  Action = "long"
	ActionShort Action = "short"
	ActionHold  Action = "hold"
)

// Recommendation представляет торговую рекомендацию AI-сервиса
type Recommendation struct {
	Symbol     string
	Action     Action
	Confidence float64 // [0, 1]
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Leverage   int
	Reasoning  string
	Provider   string
	Timestamp  time.Time
}

// PositionSide сторона позиции
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
	PositionFlat  PositionSide = "FLAT"
)

// Position представляет позицию на бирже.
// Биржа является источником истины, локальный кэш — только оптимизация.
type Position struct {
	Symbol     string
	Side       PositionSide
	Size       float64
	EntryPrice float64
	Leverage   int
	MarginMode string
	UpdatedAt  time.Time
}

// Flat сообщает, что позиции по символу фактически нет
func (p *Position) Flat() bool {
	if p == nil {
		return true
	}
	return p.Side == PositionFlat || absFloat(p.Size) < 1e-8
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// OrderType тип биржевого ордера
type OrderType string

const (
	OrderMarketEntry      OrderType = "MARKET"
	OrderStopMarket       OrderType = "STOP_MARKET"
	OrderTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

// Order представляет запрос на размещение ордера.
// Защитные ордера (STOP_MARKET, TAKE_PROFIT_MARKET) всегда закрывают
// позицию целиком (ClosePosition=true), частичное закрытие не используется.
type Order struct {
	Symbol        string
	Type          OrderType
	Side          string // BUY / SELL
	PositionSide  PositionSide
	Quantity      float64
	TriggerPrice  float64 // для защитных ордеров
	ClosePosition bool
	ClientOrderID string
}

// OrderResult результат размещения ордера
type OrderResult struct {
	OrderID       int64
	ClientOrderID string
	Status        string
}

// TradeResult представляет итог исполнения рекомендации
type TradeResult struct {
	Symbol                string
	Success               bool
	Message               string
	EntryOrder            *OrderResult
	StopLossOrder         *OrderResult
	TakeProfitOrder       *OrderResult
	PositionSize          float64
	Leverage              int
	CompensationPerformed bool
	Timestamp             time.Time
}
