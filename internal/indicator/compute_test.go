package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	ma := MA(closes, 3)

	require.Len(t, ma, 5)
	assert.True(t, math.IsNaN(ma[0]))
	assert.True(t, math.IsNaN(ma[1]))
	assert.InDelta(t, 2.0, ma[2], 1e-9)
	assert.InDelta(t, 3.0, ma[3], 1e-9)
	assert.InDelta(t, 4.0, ma[4], 1e-9)
}

func TestMANotEnoughData(t *testing.T) {
	ma := MA([]float64{1, 2}, 5)
	require.Len(t, ma, 2)
	for _, v := range ma {
		assert.True(t, math.IsNaN(v))
	}
}

func TestEMASeedEqualsSMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	ema := EMA(closes, 3)
	ma := MA(closes, 3)

	require.Len(t, ema, 5)
	assert.True(t, math.IsNaN(ema[1]))
	// Затравка EMA на позиции period-1 совпадает с SMA
	assert.InDelta(t, ma[2], ema[2], 1e-9)

	// Далее рекурсия с alpha = 2/(period+1) = 0.5
	assert.InDelta(t, 3.0, ema[3], 1e-9) // 4*0.5 + 2*0.5
	assert.InDelta(t, 4.0, ema[4], 1e-9) // 5*0.5 + 3*0.5
}

func TestEMASkipsLeadingNaN(t *testing.T) {
	values := []float64{math.NaN(), math.NaN(), 1, 2, 3, 4}
	ema := emaSeries(values, 3)

	require.Len(t, ema, 6)
	assert.True(t, math.IsNaN(ema[3]))
	// Затравка сдвигается на первый валидный индекс + period - 1
	assert.InDelta(t, 2.0, ema[4], 1e-9)
	assert.InDelta(t, 3.0, ema[5], 1e-9)
}

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 16)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	rsi := RSI(closes, 14)

	require.Len(t, rsi, 16)
	assert.True(t, math.IsNaN(rsi[13]))
	assert.InDelta(t, 100.0, rsi[14], 1e-9)
	assert.InDelta(t, 100.0, rsi[15], 1e-9)
}

func TestRSIPinnedValues(t *testing.T) {
	// Приросты +1, -1, +1 при периоде 2
	closes := []float64{10, 11, 10, 11}
	rsi := RSI(closes, 2)

	require.Len(t, rsi, 4)
	assert.True(t, math.IsNaN(rsi[1]))
	assert.InDelta(t, 50.0, rsi[2], 1e-9)
	// avgGain=(0.5+1)/2=0.75, avgLoss=0.5/2=0.25, RS=3
	assert.InDelta(t, 75.0, rsi[3], 1e-9)
}

func TestRSIBounds(t *testing.T) {
	closes := []float64{50, 52, 48, 55, 47, 53, 49, 56, 44, 58, 51, 50, 52, 48, 55, 47}
	rsi := RSI(closes, 5)
	for i, v := range rsi {
		if math.IsNaN(v) {
			continue
		}
		assert.GreaterOrEqual(t, v, 0.0, "index %d", i)
		assert.LessOrEqual(t, v, 100.0, "index %d", i)
	}
}

func TestMACDAlignment(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	macd, signal, hist := MACD(closes, 3, 5, 2)

	require.Len(t, macd, 20)
	require.Len(t, signal, 20)
	require.Len(t, hist, 20)

	// Линия MACD определена с позиции slow-1
	assert.True(t, math.IsNaN(macd[3]))
	assert.False(t, math.IsNaN(macd[4]))

	// Сигнальная линия стартует через signal-1 валидных значений MACD
	assert.True(t, math.IsNaN(signal[4]))
	assert.False(t, math.IsNaN(signal[5]))

	// Гистограмма — разность линий там, где обе определены
	for i := 5; i < 20; i++ {
		assert.InDelta(t, macd[i]-signal[i], hist[i], 1e-9)
	}

	// На растущем рынке быстрая EMA выше медленной
	assert.Greater(t, macd[19], 0.0)
}

func TestBBandsSampleStddev(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	upper, middle, lower := BBands(closes, 3, 2, 2)

	require.Len(t, upper, 5)
	assert.True(t, math.IsNaN(upper[1]))

	// Выборочное отклонение окна {1,2,3} равно 1
	assert.InDelta(t, 2.0, middle[2], 1e-9)
	assert.InDelta(t, 4.0, upper[2], 1e-9)
	assert.InDelta(t, 0.0, lower[2], 1e-9)

	assert.InDelta(t, 4.0, middle[4], 1e-9)
	assert.InDelta(t, 6.0, upper[4], 1e-9)
	assert.InDelta(t, 2.0, lower[4], 1e-9)
}

func TestATRPinnedValues(t *testing.T) {
	highs := []float64{10, 12, 11, 13}
	lows := []float64{9, 10, 10, 11}
	closes := []float64{9.5, 11, 10.5, 12}

	atr := ATR(highs, lows, closes, 2)
	require.Len(t, atr, 4)
	assert.True(t, math.IsNaN(atr[1]))
	// TR: {2.5, 1, 2.5}, первое значение — среднее первых двух
	assert.InDelta(t, 1.75, atr[2], 1e-9)
	// Сглаживание Уайлдера: (1.75*1 + 2.5)/2
	assert.InDelta(t, 2.125, atr[3], 1e-9)
}

func TestKDJPinnedValues(t *testing.T) {
	highs := []float64{10, 11, 12}
	lows := []float64{9, 10, 11}
	closes := []float64{9.5, 11, 11}

	k, d, j := KDJ(highs, lows, closes, 2, 2, 2)
	require.Len(t, k, 3)

	// RSV: {NaN, 100, 50}; затравка K — первое валидное RSV
	assert.True(t, math.IsNaN(k[0]))
	assert.InDelta(t, 100.0, k[1], 1e-9)
	// alpha = 1/period = 0.5
	assert.InDelta(t, 75.0, k[2], 1e-9)

	assert.InDelta(t, 100.0, d[1], 1e-9)
	assert.InDelta(t, 87.5, d[2], 1e-9)

	// J = 3K - 2D
	assert.InDelta(t, 100.0, j[1], 1e-9)
	assert.InDelta(t, 50.0, j[2], 1e-9)
}

func TestKDJFlatWindow(t *testing.T) {
	highs := []float64{10, 10, 10, 10}
	lows := []float64{10, 10, 10, 10}
	closes := []float64{10, 10, 10, 10}

	k, d, j := KDJ(highs, lows, closes, 2, 2, 2)
	// При нулевом диапазоне RSV принимается за 50
	assert.InDelta(t, 50.0, k[3], 1e-9)
	assert.InDelta(t, 50.0, d[3], 1e-9)
	assert.InDelta(t, 50.0, j[3], 1e-9)
}
