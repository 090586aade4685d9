package exchange

import (
	"errors"
	"fmt"
	"testing"

	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/aitrade/internal/config"
)

func TestNewBinanceClientBaseURL(t *testing.T) {
	// Базовый адрес выбирается при создании клиента: режим тестовой
	// сети обязан действовать уже в момент вызова NewClient
	c, err := NewBinanceClient(config.BinanceConfig{}, true)
	require.NoError(t, err)
	assert.Contains(t, c.futures.BaseURL, "testnet")

	c, err = NewBinanceClient(config.BinanceConfig{}, false)
	require.NoError(t, err)
	assert.NotContains(t, c.futures.BaseURL, "testnet")
	assert.Contains(t, c.futures.BaseURL, "fapi.binance.com")
}

func TestMarginNoChange(t *testing.T) {
	// Повторная установка изолированной маржи не является ошибкой
	already := &common.APIError{Code: codeMarginNoChange, Message: "No need to change margin type."}
	assert.True(t, marginNoChange(already))
	assert.True(t, marginNoChange(fmt.Errorf("обертка: %w", already)))

	other := &common.APIError{Code: -2019, Message: "Margin is insufficient."}
	assert.False(t, marginNoChange(other))
	assert.False(t, marginNoChange(errors.New("сетевая ошибка")))
	assert.False(t, marginNoChange(nil))
}

func TestParseFloat(t *testing.T) {
	assert.InDelta(t, 50000.5, parseFloat("50000.5"), 1e-9)
	assert.Zero(t, parseFloat("мусор"))
}
