package indicator

import (
	"math"
)

// MA рассчитывает простое скользящее среднее по ценам закрытия.
// Первые period-1 позиций не определены (NaN).
func MA(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period {
		return out
	}

	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA рассчитывает экспоненциальное скользящее среднее.
// Первое определенное значение (на позиции period-1) — это SMA первых
// period цен, далее рекурсия с коэффициентом 2/(period+1).
func EMA(closes []float64, period int) []float64 {
	return emaSeries(closes, period)
}

// emaSeries считает EMA по серии, которая может начинаться с NaN
// (например, линия MACD). Затравка — SMA первых period валидных значений.
func emaSeries(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}

	first := -1
	for i, v := range values {
		if !math.IsNaN(v) {
			first = i
			break
		}
	}
	if first < 0 || len(values)-first < period {
		return out
	}

	seed := 0.0
	for i := first; i < first+period; i++ {
		seed += values[i]
	}
	seedIdx := first + period - 1
	out[seedIdx] = seed / float64(period)

	alpha := 2.0 / float64(period+1)
	for i := seedIdx + 1; i < len(values); i++ {
		out[i] = values[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// RSI рассчитывает индекс относительной силы по методу Уайлдера.
// Первое определенное значение — на позиции period. Если средний убыток
// равен нулю, RSI равен 100.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		// Сглаживание Уайлдера
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD рассчитывает линии MACD: macd = EMA(fast) - EMA(slow),
// signal = EMA(signal) от линии macd, histogram = macd - signal.
func MACD(closes []float64, fast, slow, signal int) (macd, signalLine, hist []float64) {
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)

	macd = nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) {
			macd[i] = fastEMA[i] - slowEMA[i]
		}
	}

	signalLine = emaSeries(macd, signal)

	hist = nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(macd[i]) && !math.IsNaN(signalLine[i]) {
			hist[i] = macd[i] - signalLine[i]
		}
	}
	return macd, signalLine, hist
}

// BBands рассчитывает полосы Боллинджера. Стандартное отклонение
// считается выборочным (делитель n-1) по тому же окну, что и среднее.
func BBands(closes []float64, period, devUp, devDown int) (upper, middle, lower []float64) {
	middle = MA(closes, period)
	upper = nanSlice(len(closes))
	lower = nanSlice(len(closes))

	for i := period - 1; i < len(closes); i++ {
		mean := middle[i]
		if math.IsNaN(mean) {
			continue
		}
		sumSq := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - mean
			sumSq += d * d
		}
		std := math.Sqrt(sumSq / float64(period-1))
		upper[i] = mean + float64(devUp)*std
		lower[i] = mean - float64(devDown)*std
	}
	return upper, middle, lower
}

// ATR рассчитывает средний истинный диапазон со сглаживанием Уайлдера.
// Первое определенное значение — на позиции period.
func ATR(highs, lows, closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	tr := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	out[period] = sum / float64(period)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		out[i] = (out[i-1]*(p-1) + tr[i]) / p
	}
	return out
}

// KDJ рассчитывает стохастический осциллятор KDJ. Сглаживание K и D
// рекурсивное в стиле Уайлдера с коэффициентом 1/period (не простое
// скользящее среднее), затравка — первое валидное значение RSV.
func KDJ(highs, lows, closes []float64, fastK, slowK, slowD int) (k, d, j []float64) {
	n := len(closes)
	rsv := nanSlice(n)

	for i := fastK - 1; i < n; i++ {
		lowest := lows[i]
		highest := highs[i]
		for idx := i - fastK + 1; idx <= i; idx++ {
			if lows[idx] < lowest {
				lowest = lows[idx]
			}
			if highs[idx] > highest {
				highest = highs[idx]
			}
		}
		if highest == lowest {
			rsv[i] = 50
		} else {
			rsv[i] = (closes[i] - lowest) / (highest - lowest) * 100
		}
	}

	k = wilderSmooth(rsv, slowK)
	d = wilderSmooth(k, slowD)

	j = nanSlice(n)
	for i := 0; i < n; i++ {
		if !math.IsNaN(k[i]) && !math.IsNaN(d[i]) {
			j[i] = 3*k[i] - 2*d[i]
		}
	}
	return k, d, j
}

// wilderSmooth рекурсивно сглаживает серию с коэффициентом 1/period,
// первое валидное значение серии используется как затравка.
func wilderSmooth(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}

	alpha := 1.0 / float64(period)
	prev := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(prev) {
			prev = v
		} else {
			prev = v*alpha + prev*(1-alpha)
		}
		out[i] = prev
	}
	return out
}
