package indicator

import "math"

// Series результат расчета одного индикатора по серии свечей.
// Простые индикаторы заполняют Values, составные (MACD, BBANDS, KDJ) —
// Components. Длина всех массивов равна длине исходной серии свечей,
// недостаток истории в начале выражается значениями NaN.
type Series struct {
	Values     []float64
	Components map[string][]float64
}

// Composite сообщает, является ли индикатор составным
func (s Series) Composite() bool {
	return s.Components != nil
}

// Len возвращает длину серии
func (s Series) Len() int {
	if s.Composite() {
		for _, vals := range s.Components {
			return len(vals)
		}
		return 0
	}
	return len(s.Values)
}

// Valid сообщает, содержит ли серия хотя бы одно валидное значение
func (s Series) Valid() bool {
	if s.Composite() {
		for _, vals := range s.Components {
			if _, ok := LastValid(vals); ok {
				return true
			}
		}
		return false
	}
	_, ok := LastValid(s.Values)
	return ok
}

// LastValid возвращает последнее не-NaN значение массива
func LastValid(vals []float64) (float64, bool) {
	for i := len(vals) - 1; i >= 0; i-- {
		if !math.IsNaN(vals[i]) {
			return vals[i], true
		}
	}
	return 0, false
}

// nanSlice возвращает массив длины n, заполненный NaN
func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
