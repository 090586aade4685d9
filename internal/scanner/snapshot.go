package scanner

import (
	"time"

	"github.com/skalibog/aitrade/internal/indicator"
	"github.com/skalibog/aitrade/pkg/models"
)

// BuildSnapshot собирает рыночный срез по символу из свечей и
// рассчитанных индикаторов. Составные индикаторы разворачиваются в
// плоские ключи (macd_signal, bbands_upper, kdj_k и т.д.), в срез
// попадают только последние валидные значения.
func BuildSnapshot(symbol, timeframe string, candles []*models.Candle, series map[string]indicator.Series) *models.MarketSnapshot {
	snapshot := &models.MarketSnapshot{
		Symbol:          symbol,
		Timeframe:       timeframe,
		Indicators:      make(map[string]float64),
		TotalIndicators: len(series),
		Timestamp:       time.Now(),
	}

	if len(candles) > 0 {
		last := candles[len(candles)-1]
		snapshot.Price = last.Close
		snapshot.Volume = last.Volume
		snapshot.High = last.High
		snapshot.Low = last.Low

		if len(candles) > 1 {
			prevClose := candles[len(candles)-2].Close
			if prevClose != 0 {
				snapshot.ChangePercent = (last.Close - prevClose) / prevClose * 100
			}
		}
	}

	for name, s := range series {
		if s.Composite() {
			for component, vals := range s.Components {
				if v, ok := indicator.LastValid(vals); ok {
					key := name
					if component != name {
						key = name + "_" + component
					}
					snapshot.Indicators[key] = v
				}
			}
		} else {
			if v, ok := indicator.LastValid(s.Values); ok {
				snapshot.Indicators[name] = v
			}
		}

		if s.Valid() {
			snapshot.ValidIndicators++
		}
	}

	return snapshot
}
