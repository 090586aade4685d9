package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/aitrade/internal/exchange"
)

func discoveryTickers() []*exchange.Ticker {
	return []*exchange.Ticker{
		{Symbol: "BTCUSDT", QuoteVolume: 900, PriceChangePercent: 1},
		{Symbol: "ETHUSDT", QuoteVolume: 800, PriceChangePercent: 12},
		{Symbol: "SOLUSDT", QuoteVolume: 700, PriceChangePercent: -9},
		{Symbol: "XRPUSDT", QuoteVolume: 100, PriceChangePercent: 3},
		{Symbol: "BTCBUSD", QuoteVolume: 950, PriceChangePercent: 5},
	}
}

func TestScanSymbolsConfiguredListTakesPriority(t *testing.T) {
	s := NewScanner(&fakeClient{tickers: discoveryTickers()}, testEngine(t), &fakeAnalyzer{}, nil, Config{
		Symbols: []string{"DOGEUSDT"},
		TopN:    2,
	})

	symbols, err := s.ScanSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"DOGEUSDT"}, symbols)
}

func TestScanSymbolsByVolume(t *testing.T) {
	s := NewScanner(&fakeClient{tickers: discoveryTickers()}, testEngine(t), &fakeAnalyzer{}, nil, Config{
		ScanTypes:  []string{"volume"},
		TopN:       2,
		QuoteAsset: "USDT",
	})

	symbols, err := s.ScanSymbols(context.Background())
	require.NoError(t, err)
	// BTCBUSD отфильтрован по котируемой валюте
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, symbols)
}

func TestScanSymbolsGainersAndLosersDeduplicated(t *testing.T) {
	s := NewScanner(&fakeClient{tickers: discoveryTickers()}, testEngine(t), &fakeAnalyzer{}, nil, Config{
		ScanTypes:  []string{"gainers", "losers"},
		TopN:       2,
		QuoteAsset: "USDT",
	})

	symbols, err := s.ScanSymbols(context.Background())
	require.NoError(t, err)

	// gainers: ETH, XRP; losers: SOL, BTC; без дубликатов
	assert.Equal(t, []string{"ETHUSDT", "XRPUSDT", "SOLUSDT", "BTCUSDT"}, symbols)
}

func TestScanSymbolsDefaultScanType(t *testing.T) {
	s := NewScanner(&fakeClient{tickers: discoveryTickers()}, testEngine(t), &fakeAnalyzer{}, nil, Config{
		TopN:       1,
		QuoteAsset: "USDT",
	})

	symbols, err := s.ScanSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT"}, symbols)
}
