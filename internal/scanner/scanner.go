package scanner

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/skalibog/aitrade/internal/exchange"
	"github.com/skalibog/aitrade/internal/indicator"
	"github.com/skalibog/aitrade/internal/storage"
	"github.com/skalibog/aitrade/pkg/logger"
	"github.com/skalibog/aitrade/pkg/models"
)

// MarketAnalyzer абстракция AI-анализатора, от которой зависит сканер
type MarketAnalyzer interface {
	Analyze(ctx context.Context, snapshot *models.MarketSnapshot) (*models.Recommendation, error)
}

// SymbolCandles пара символ-свечи для пакетного анализа
type SymbolCandles struct {
	Symbol  string
	Candles []*models.Candle
}

// Config настройки сканера
type Config struct {
	Timeframe     string
	Lookback      int
	MaxConcurrent int // ограничение одновременных запросов к AI
	Symbols       []string
	ScanTypes     []string
	TopN          int
	QuoteAsset    string
}

// Scanner управляет циклом анализа: получает свечи, считает индикаторы,
// собирает срезы и с ограниченной конкурентностью передает их AI.
// Ошибка анализа одного символа не прерывает анализ остальных.
type Scanner struct {
	client   exchange.Client
	engine   *indicator.Engine
	analyzer MarketAnalyzer
	store    storage.Storage // может быть nil
	cfg      Config
}

// NewScanner создает сканер рынка
func NewScanner(client exchange.Client, engine *indicator.Engine, analyzer MarketAnalyzer, store storage.Storage, cfg Config) *Scanner {
	return &Scanner{
		client:   client,
		engine:   engine,
		analyzer: analyzer,
		store:    store,
		cfg:      cfg,
	}
}

// AnalyzeSymbol анализирует один символ: индикаторы, срез, запрос к AI.
// Пустая серия свечей пропускается с предупреждением. Срез без единого
// валидного индикатора все равно отправляется: анализатор помечает его
// как построенный на неполных данных.
func (s *Scanner) AnalyzeSymbol(ctx context.Context, symbol string, candles []*models.Candle) (*models.Recommendation, error) {
	if len(candles) == 0 {
		logger.Warn("Нет свечей для анализа, символ пропущен", zap.String("symbol", symbol))
		return nil, fmt.Errorf("нет свечей для %s", symbol)
	}

	series, err := s.engine.Compute(candles)
	if err != nil {
		return nil, fmt.Errorf("ошибка расчета индикаторов для %s: %w", symbol, err)
	}

	snapshot := BuildSnapshot(symbol, s.cfg.Timeframe, candles, series)
	if snapshot.ValidIndicators == 0 {
		logger.Warn("Нет валидных индикаторов, анализ на неполных данных",
			zap.String("symbol", symbol),
			zap.Int("total", snapshot.TotalIndicators))
	}

	rec, err := s.analyzer.Analyze(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("ошибка AI-анализа %s: %w", symbol, err)
	}
	return rec, nil
}

// AnalyzeBatch анализирует набор символов. При MaxConcurrent > 1
// задачи выполняются параллельно под семафором, иначе последовательно.
// Оба режима дают одинаковый результат по каждому символу; порядок
// результатов не гарантируется. Символы с ошибками опускаются.
func (s *Scanner) AnalyzeBatch(ctx context.Context, pairs []SymbolCandles) []*models.Recommendation {
	if s.cfg.MaxConcurrent <= 1 {
		return s.analyzeSequential(ctx, pairs)
	}
	return s.analyzeConcurrent(ctx, pairs)
}

// analyzeSequential анализирует символы по одному в детерминированном
// порядке. Используется для тестов и провайдеров без поддержки
// параллельных запросов.
func (s *Scanner) analyzeSequential(ctx context.Context, pairs []SymbolCandles) []*models.Recommendation {
	var results []*models.Recommendation
	for i, pair := range pairs {
		if ctx.Err() != nil {
			logger.Info("Анализ прерван", zap.Int("completed", i), zap.Int("total", len(pairs)))
			break
		}

		rec := s.analyzeOne(ctx, pair, i+1, len(pairs))
		if rec != nil {
			results = append(results, rec)
		}
	}
	return results
}

// analyzeConcurrent анализирует символы параллельно, ограничивая число
// одновременных задач семафором
func (s *Scanner) analyzeConcurrent(ctx context.Context, pairs []SymbolCandles) []*models.Recommendation {
	sem := semaphore.NewWeighted(int64(s.cfg.MaxConcurrent))

	var (
		mu      sync.Mutex
		results []*models.Recommendation
		wg      sync.WaitGroup
	)

	for i, pair := range pairs {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Контекст отменен: запущенные задачи завершатся сами,
			// новые не стартуют
			logger.Info("Анализ прерван", zap.Int("launched", i), zap.Int("total", len(pairs)))
			break
		}

		wg.Add(1)
		go func(pair SymbolCandles, index int) {
			defer wg.Done()
			defer sem.Release(1)

			rec := s.analyzeOne(ctx, pair, index, len(pairs))
			if rec != nil {
				mu.Lock()
				results = append(results, rec)
				mu.Unlock()
			}
		}(pair, i+1)
	}

	wg.Wait()
	return results
}

// analyzeOne выполняет анализ одного символа, изолируя ошибки и паники
// на границе задачи
func (s *Scanner) analyzeOne(ctx context.Context, pair SymbolCandles, index, total int) (rec *models.Recommendation) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Паника при анализе символа",
				zap.String("symbol", pair.Symbol),
				zap.Any("panic", r))
			rec = nil
		}
	}()

	logger.Debug("Начало анализа",
		zap.String("symbol", pair.Symbol),
		zap.Int("index", index),
		zap.Int("total", total))

	rec, err := s.AnalyzeSymbol(ctx, pair.Symbol, pair.Candles)
	if err != nil {
		logger.Warn("Символ пропущен", zap.String("symbol", pair.Symbol), zap.Error(err))
		return nil
	}

	logger.Info("Анализ завершен",
		zap.String("symbol", pair.Symbol),
		zap.String("action", string(rec.Action)),
		zap.Float64("confidence", rec.Confidence))
	return rec
}

// ScanAndAnalyze выполняет полный цикл: отбор символов, загрузка свечей,
// пакетный анализ, сохранение результатов
func (s *Scanner) ScanAndAnalyze(ctx context.Context) ([]*models.Recommendation, error) {
	symbols, err := s.ScanSymbols(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Символы для анализа отобраны", zap.Int("count", len(symbols)))

	var pairs []SymbolCandles
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		candles, err := s.client.GetKlines(ctx, symbol, s.cfg.Timeframe, s.cfg.Lookback)
		if err != nil {
			logger.Warn("Не удалось получить свечи", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		pairs = append(pairs, SymbolCandles{Symbol: symbol, Candles: candles})
	}

	results := s.AnalyzeBatch(ctx, pairs)
	logger.Info("Пакетный анализ завершен",
		zap.Int("analyzed", len(results)),
		zap.Int("requested", len(pairs)))

	if s.store != nil {
		for _, rec := range results {
			if err := s.store.SaveRecommendation(ctx, rec); err != nil {
				logger.Warn("Не удалось сохранить рекомендацию",
					zap.String("symbol", rec.Symbol), zap.Error(err))
			}
		}
	}

	return results, nil
}
