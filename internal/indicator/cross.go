package indicator

import "math"

// CrossType тип пересечения двух линий
type CrossType string

const (
	CrossGolden CrossType = "golden" // быстрая линия пересекла медленную снизу вверх
	CrossDeath  CrossType = "death"  // быстрая линия пересекла медленную сверху вниз
	CrossNone   CrossType = "none"
)

// Относительное положение быстрой линии на последней валидной позиции
const (
	PositionAbove = "above"
	PositionBelow = "below"
	PositionEqual = "equal"
)

// CrossInfo результат поиска пересечений
type CrossInfo struct {
	Latest    CrossType
	Index     int // индекс последнего пересечения в исходной серии, -1 если нет
	Position  string
	FastValue float64
	SlowValue float64
}

// DetectCross ищет пересечения быстрой и медленной линий по смене
// знака разности fast-slow. Позиции с нулевой разностью (касание)
// знак не меняют: переход минус-ноль-плюс считается одним золотым
// пересечением на позиции, где разность снова стала ненулевой.
// NaN-значения в начале серий пропускаются.
func DetectCross(fast, slow []float64) CrossInfo {
	info := CrossInfo{Latest: CrossNone, Index: -1}

	// Индексы, на которых определены обе линии
	var valid []int
	for i := range fast {
		if i < len(slow) && !math.IsNaN(fast[i]) && !math.IsNaN(slow[i]) {
			valid = append(valid, i)
		}
	}
	if len(valid) == 0 {
		return info
	}

	last := valid[len(valid)-1]
	info.FastValue = fast[last]
	info.SlowValue = slow[last]

	lastDiff := fast[last] - slow[last]
	switch {
	case lastDiff > 0:
		info.Position = PositionAbove
	case lastDiff < 0:
		info.Position = PositionBelow
	default:
		info.Position = PositionEqual
	}

	// Отслеживается последний ненулевой знак разности, а не только
	// соседние позиции: касание линии не сбрасывает поиск
	prevSign := 0
	for _, idx := range valid {
		diff := fast[idx] - slow[idx]
		sign := 0
		switch {
		case diff > 0:
			sign = 1
		case diff < 0:
			sign = -1
		}
		if sign == 0 {
			continue
		}

		if prevSign == -1 && sign == 1 {
			info.Latest = CrossGolden
			info.Index = idx
		} else if prevSign == 1 && sign == -1 {
			info.Latest = CrossDeath
			info.Index = idx
		}
		prevSign = sign
	}

	return info
}
