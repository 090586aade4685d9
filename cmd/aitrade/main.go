package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/aitrade/internal/ai"
	"github.com/skalibog/aitrade/internal/config"
	"github.com/skalibog/aitrade/internal/exchange"
	"github.com/skalibog/aitrade/internal/indicator"
	"github.com/skalibog/aitrade/internal/scanner"
	"github.com/skalibog/aitrade/internal/storage"
	"github.com/skalibog/aitrade/internal/trader"
	"github.com/skalibog/aitrade/pkg/logger"
	"github.com/skalibog/aitrade/pkg/models"
)

func main() {
	logger.Init()
	defer logger.GetLogger().Sync()

	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	flag.Parse()

	// Проверяем наличие файла конфигурации
	logger.Info("Проверка наличия файла конфигурации", zap.String("path", *configPath))
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		logger.Fatal("Файл конфигурации не найден", zap.String("path", *configPath))
	}

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	// Создаем контекст с возможностью отмены через горутину
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Настраиваем обработку сигналов завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nЗавершение работы...")
		cancel()
	}()

	// Движок индикаторов по конфигурационной строке
	engine, err := indicator.NewEngineFromString(cfg.Indicators)
	if err != nil {
		logger.Fatal("Ошибка разбора конфигурации индикаторов", zap.Error(err))
	}

	// Инициализируем клиент биржи
	client, err := exchange.NewBinanceClient(cfg.Binance, cfg.Testnet())
	if err != nil {
		logger.Fatal("Ошибка инициализации клиента биржи", zap.Error(err))
	}

	// AI-провайдер и анализатор
	provider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		logger.Fatal("Ошибка инициализации AI-провайдера", zap.Error(err))
	}
	analyzer := ai.NewAnalyzer(provider, cfg.AI, cfg.Risk)

	// Хранилище истории (необязательное)
	var store storage.Storage
	if cfg.Storage.URL != "" {
		influx, err := storage.NewInfluxDBStorage(cfg.Storage)
		if err != nil {
			logger.Fatal("Ошибка инициализации хранилища", zap.Error(err))
		}
		defer influx.Close()
		store = influx
	}

	marketScanner := scanner.NewScanner(client, engine, analyzer, store, scanner.Config{
		Timeframe:     cfg.Trading.Interval,
		Lookback:      cfg.Trading.Lookback,
		MaxConcurrent: cfg.AI.MaxConcurrent,
		Symbols:       cfg.Trading.Symbols,
		ScanTypes:     cfg.Scanner.ScanTypes,
		TopN:          cfg.Scanner.TopN,
		QuoteAsset:    cfg.Scanner.QuoteAsset,
	})

	// В режиме observe сделки не исполняются
	var executor *trader.Trader
	if cfg.Observe() {
		logger.Info("Режим наблюдения: рекомендации не исполняются")
	} else {
		executor = trader.NewTrader(client, store, cfg.Risk, cfg.AI.ConfidenceThreshold)
		logger.Info("Торговый режим",
			zap.String("environment", cfg.Trading.Environment),
			zap.Float64("risk_per_trade", cfg.Risk.RiskPerTrade))
	}

	logger.Info("Бот запущен",
		zap.String("environment", cfg.Trading.Environment),
		zap.String("provider", cfg.AI.Provider),
		zap.String("interval", cfg.Trading.Interval))

	runLoop(ctx, cfg, marketScanner, executor)

	logger.Info("Бот остановлен")
}

// runLoop выполняет циклы анализа по таймеру до отмены контекста.
// Первый цикл запускается сразу.
func runLoop(ctx context.Context, cfg *config.Config, marketScanner *scanner.Scanner, executor *trader.Trader) {
	ticker := time.NewTicker(time.Duration(cfg.Scanner.IntervalSeconds) * time.Second)
	defer ticker.Stop()

	runCycle(ctx, cfg, marketScanner, executor)

	for {
		select {
		case <-ticker.C:
			runCycle(ctx, cfg, marketScanner, executor)
		case <-ctx.Done():
			return
		}
	}
}

// runCycle выполняет один цикл: анализ рынка и исполнение рекомендаций
func runCycle(ctx context.Context, cfg *config.Config, marketScanner *scanner.Scanner, executor *trader.Trader) {
	results, err := marketScanner.ScanAndAnalyze(ctx)
	if err != nil {
		logger.Error("Ошибка цикла анализа", zap.Error(err))
		return
	}

	if executor == nil {
		for _, rec := range results {
			if rec.Action != models.ActionHold {
				logger.Info("Рекомендация (наблюдение)",
					zap.String("symbol", rec.Symbol),
					zap.String("action", string(rec.Action)),
					zap.Float64("confidence", rec.Confidence),
					zap.Float64("entry", rec.EntryPrice),
					zap.Float64("stop_loss", rec.StopLoss),
					zap.Float64("take_profit", rec.TakeProfit))
			}
		}
		return
	}

	for _, rec := range results {
		result, err := executor.Execute(ctx, rec)
		if err != nil {
			if isAdmissionRejection(err) {
				logger.Debug("Рекомендация отклонена",
					zap.String("symbol", rec.Symbol), zap.Error(err))
			} else {
				logger.Error("Ошибка исполнения сделки",
					zap.String("symbol", rec.Symbol), zap.Error(err))
			}
			continue
		}
		logger.Info("Сделка завершена",
			zap.String("symbol", result.Symbol),
			zap.Bool("success", result.Success),
			zap.String("message", result.Message))
	}
}

// isAdmissionRejection отличает ожидаемое отклонение рекомендации от
// сбоя исполнения
func isAdmissionRejection(err error) bool {
	return errors.Is(err, trader.ErrHoldAction) ||
		errors.Is(err, trader.ErrLowConfidence) ||
		errors.Is(err, trader.ErrPositionExists) ||
		errors.Is(err, trader.ErrPositionTooSmall) ||
		errors.Is(err, trader.ErrMissingPrices) ||
		errors.Is(err, trader.ErrMarginExceeded) ||
		errors.Is(err, trader.ErrMaxPositions)
}
