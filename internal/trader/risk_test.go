package trader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionSize(t *testing.T) {
	// Риск 100 USDT на расстоянии 1000 с плечом 10
	size, err := PositionSize(10000, 0.01, 50000, 49000, 10)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, size, 1e-9)
}

func TestPositionSizeShort(t *testing.T) {
	// Для шорта стоп выше входа, расстояние берется по модулю
	size, err := PositionSize(10000, 0.01, 49000, 50000, 10)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, size, 1e-9)
}

func TestPositionSizeErrors(t *testing.T) {
	_, err := PositionSize(0, 0.01, 50000, 49000, 10)
	assert.Error(t, err)

	_, err = PositionSize(10000, 0.01, 50000, 50000, 10)
	assert.Error(t, err)

	_, err = PositionSize(10000, 0.01, -1, 49000, 10)
	assert.Error(t, err)
}

func TestRoundToLotStep(t *testing.T) {
	// Округление всегда вниз, чтобы не превысить рассчитанный риск
	assert.InDelta(t, 1.234, RoundToLotStep(1.2349, 0.001), 1e-9)
	assert.InDelta(t, 1.0, RoundToLotStep(1.9, 1.0), 1e-9)
	assert.InDelta(t, 0.0, RoundToLotStep(0.0004, 0.001), 1e-9)

	// Двоичное представление не должно давать 0.07/0.01 -> 6 шагов
	assert.InDelta(t, 0.07, RoundToLotStep(0.07, 0.01), 1e-9)

	// Нулевой шаг оставляет размер без изменений
	assert.InDelta(t, 1.2349, RoundToLotStep(1.2349, 0), 1e-9)
}

func TestClampLeverage(t *testing.T) {
	assert.Equal(t, 5, clampLeverage(5, 10, 20))
	assert.Equal(t, 20, clampLeverage(50, 10, 20))
	assert.Equal(t, 10, clampLeverage(0, 10, 20))
	assert.Equal(t, 10, clampLeverage(-3, 10, 20))
}
