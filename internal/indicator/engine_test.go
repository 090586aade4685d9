package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/aitrade/pkg/models"
)

func makeCandles(closes []float64) []*models.Candle {
	candles := make([]*models.Candle, len(closes))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		candles[i] = &models.Candle{
			Symbol:   "BTCUSDT",
			Interval: "1h",
			OpenTime: base.Add(time.Duration(i) * time.Hour),
			Open:     c,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
			Volume:   100,
		}
	}
	return candles
}

func TestEngineComputeKeys(t *testing.T) {
	engine, err := NewEngineFromString("ma=20\nema=9,21\nrsi=14\nmacd=12,26,9\nbbands=20,2,2\nkdj=9,3,3\natr=14")
	require.NoError(t, err)

	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + math.Sin(float64(i)/5)*10
	}

	result, err := engine.Compute(makeCandles(closes))
	require.NoError(t, err)

	for _, key := range []string{"ma_20", "ema_9", "ema_21", "rsi", "macd", "bbands", "kdj", "atr"} {
		assert.Contains(t, result, key)
	}

	// Все серии выровнены по длине входа
	for key, s := range result {
		assert.Equal(t, 60, s.Len(), "series %s", key)
	}

	// Составные индикаторы несут компоненты
	assert.Contains(t, result["macd"].Components, "signal")
	assert.Contains(t, result["bbands"].Components, "upper")
	assert.Contains(t, result["kdj"].Components, "j")
}

func TestEngineComputeNaNLeadIn(t *testing.T) {
	engine, err := NewEngineFromString("ma=20\nrsi=14")
	require.NoError(t, err)

	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = float64(100 + i)
	}

	result, err := engine.Compute(makeCandles(closes))
	require.NoError(t, err)

	ma := result["ma_20"].Values
	assert.True(t, math.IsNaN(ma[18]))
	assert.False(t, math.IsNaN(ma[19]))

	rsi := result["rsi"].Values
	assert.True(t, math.IsNaN(rsi[13]))
	assert.False(t, math.IsNaN(rsi[14]))
}

func TestEngineComputeShortHistoryNotError(t *testing.T) {
	engine, err := NewEngineFromString("ma=20")
	require.NoError(t, err)

	result, err := engine.Compute(makeCandles([]float64{1, 2, 3}))
	require.NoError(t, err)

	s := result["ma_20"]
	assert.Equal(t, 3, s.Len())
	assert.False(t, s.Valid())
}

func TestEngineComputeEmptyCandles(t *testing.T) {
	engine, err := NewEngineFromString("rsi=14")
	require.NoError(t, err)

	_, err = engine.Compute(nil)
	assert.Error(t, err)
}

func TestEngineDetectEMACross(t *testing.T) {
	engine, err := NewEngineFromString("ema=3,5")
	require.NoError(t, err)

	// Падение, затем резкий рост: быстрая EMA пересекает медленную снизу вверх
	closes := []float64{20, 19, 18, 17, 16, 15, 14, 13, 20, 25, 30, 35}
	info, err := engine.DetectEMACross(makeCandles(closes), 3, 5)
	require.NoError(t, err)

	assert.Equal(t, CrossGolden, info.Latest)
	assert.Equal(t, PositionAbove, info.Position)
	assert.Greater(t, info.Index, 0)
}

func TestEngineDetectMACrossEmpty(t *testing.T) {
	engine, err := NewEngineFromString("ma=3,5")
	require.NoError(t, err)

	_, err = engine.DetectMACross(nil, 3, 5)
	assert.Error(t, err)
}
