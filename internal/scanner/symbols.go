package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/skalibog/aitrade/internal/exchange"
)

// ScanSymbols отбирает символы для анализа. Если в конфигурации задан
// явный список, используется он. Иначе символы отбираются из суточной
// статистики по заданным типам сканирования (volume, gainers, losers),
// объединяются без дубликатов и ограничиваются TopN на каждый тип.
func (s *Scanner) ScanSymbols(ctx context.Context) ([]string, error) {
	if len(s.cfg.Symbols) > 0 {
		return s.cfg.Symbols, nil
	}

	tickers, err := s.client.GetTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения тикеров для сканирования: %w", err)
	}

	filtered := make([]*exchange.Ticker, 0, len(tickers))
	for _, t := range tickers {
		if s.cfg.QuoteAsset != "" && !strings.HasSuffix(t.Symbol, s.cfg.QuoteAsset) {
			continue
		}
		filtered = append(filtered, t)
	}

	scanTypes := s.cfg.ScanTypes
	if len(scanTypes) == 0 {
		scanTypes = []string{"volume"}
	}

	seen := make(map[string]bool)
	var symbols []string
	for _, scanType := range scanTypes {
		for _, t := range topBy(filtered, scanType, s.cfg.TopN) {
			if !seen[t.Symbol] {
				seen[t.Symbol] = true
				symbols = append(symbols, t.Symbol)
			}
		}
	}
	return symbols, nil
}

// topBy возвращает первые n тикеров по критерию сортировки.
// Неизвестный критерий трактуется как сортировка по обороту.
func topBy(tickers []*exchange.Ticker, scanType string, n int) []*exchange.Ticker {
	sorted := make([]*exchange.Ticker, len(tickers))
	copy(sorted, tickers)

	switch scanType {
	case "gainers":
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].PriceChangePercent > sorted[j].PriceChangePercent
		})
	case "losers":
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].PriceChangePercent < sorted[j].PriceChangePercent
		})
	default:
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].QuoteVolume > sorted[j].QuoteVolume
		})
	}

	if n > 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
