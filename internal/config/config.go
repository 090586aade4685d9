package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Binance    BinanceConfig  `yaml:"binance"`
	Trading    TradingConfig  `yaml:"trading"`
	AI         AIConfig       `yaml:"ai"`
	Risk       RiskConfig     `yaml:"risk"`
	Indicators string         `yaml:"indicators"`
	Scanner    ScannerConfig  `yaml:"scanner"`
	Storage    StorageConfig  `yaml:"storage"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// TradingConfig содержит настройки торговли
type TradingConfig struct {
	// Режим работы: observe (только анализ), testnet, mainnet
	Environment string   `yaml:"environment"`
	Symbols     []string `yaml:"symbols"`
	Interval    string   `yaml:"interval"`
	Lookback    int      `yaml:"lookback"` // количество свечей для анализа
}

// AIConfig содержит настройки AI-провайдера
type AIConfig struct {
	Provider            string  `yaml:"provider"` // deepseek, modelscope, mock
	APIKey              string  `yaml:"api_key"`
	Model               string  `yaml:"model"`
	BaseURL             string  `yaml:"base_url"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	MaxConcurrent       int     `yaml:"max_concurrent"`
	TimeoutSeconds      int     `yaml:"timeout_seconds"`
	Temperature         float64 `yaml:"temperature"`
}

// RiskConfig содержит параметры управления риском.
// Загружается один раз при старте и далее только читается.
type RiskConfig struct {
	AccountBalance  float64 `yaml:"account_balance"`   // резервное значение, если биржа недоступна
	RiskPerTrade    float64 `yaml:"risk_per_trade"`    // доля баланса на сделку, например 0.01
	MaxPositionSize float64 `yaml:"max_position_size"` // максимальная доля баланса под маржу
	MaxPositions    int     `yaml:"max_positions"`
	DefaultLeverage int     `yaml:"default_leverage"`
	MaxLeverage     int     `yaml:"max_leverage"`
	ATRMultiplier   float64 `yaml:"atr_multiplier"`    // для расчета стоп-лосса, если AI его не дал
	RiskRewardRatio float64 `yaml:"risk_reward_ratio"` // для расчета тейк-профита
	LotStep         float64 `yaml:"lot_step"`          // шаг лота по умолчанию
}

// ScannerConfig содержит настройки сканера рынка
type ScannerConfig struct {
	IntervalSeconds int      `yaml:"interval_seconds"`
	ScanTypes       []string `yaml:"scan_types"` // volume, gainers, losers
	TopN            int      `yaml:"top_n"`
	QuoteAsset      string   `yaml:"quote_asset"`
}

// StorageConfig настройки хранения истории анализа
type StorageConfig struct {
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// Load загружает и валидирует конфигурацию из файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyDefaults заполняет незаданные поля значениями по умолчанию
func (c *Config) applyDefaults() {
	if c.Trading.Environment == "" {
		c.Trading.Environment = "observe"
	}
	if c.Trading.Interval == "" {
		c.Trading.Interval = "1h"
	}
	if c.Trading.Lookback == 0 {
		c.Trading.Lookback = 100
	}
	if c.AI.Provider == "" {
		c.AI.Provider = "mock"
	}
	if c.AI.ConfidenceThreshold == 0 {
		c.AI.ConfidenceThreshold = 0.6
	}
	if c.AI.MaxConcurrent == 0 {
		c.AI.MaxConcurrent = 3
	}
	if c.AI.TimeoutSeconds == 0 {
		c.AI.TimeoutSeconds = 60
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = 0.3
	}
	if c.Risk.AccountBalance == 0 {
		c.Risk.AccountBalance = 10000
	}
	if c.Risk.RiskPerTrade == 0 {
		c.Risk.RiskPerTrade = 0.01
	}
	if c.Risk.MaxPositionSize == 0 {
		c.Risk.MaxPositionSize = 0.3
	}
	if c.Risk.MaxPositions == 0 {
		c.Risk.MaxPositions = 5
	}
	if c.Risk.DefaultLeverage == 0 {
		c.Risk.DefaultLeverage = 10
	}
	if c.Risk.MaxLeverage == 0 {
		c.Risk.MaxLeverage = 10
	}
	if c.Risk.ATRMultiplier == 0 {
		c.Risk.ATRMultiplier = 2.0
	}
	if c.Risk.RiskRewardRatio == 0 {
		c.Risk.RiskRewardRatio = 2.0
	}
	if c.Risk.LotStep == 0 {
		c.Risk.LotStep = 0.001
	}
	if c.Scanner.IntervalSeconds == 0 {
		c.Scanner.IntervalSeconds = 300
	}
	if c.Scanner.TopN == 0 {
		c.Scanner.TopN = 20
	}
	if c.Scanner.QuoteAsset == "" {
		c.Scanner.QuoteAsset = "USDT"
	}
}

// Validate проверяет конфигурацию. Ошибки здесь фатальны при старте.
func (c *Config) Validate() error {
	switch c.Trading.Environment {
	case "observe", "testnet", "mainnet":
	default:
		return fmt.Errorf("неизвестный режим работы: %q (допустимо observe, testnet, mainnet)", c.Trading.Environment)
	}

	if c.Trading.Environment != "observe" && (c.Binance.APIKey == "" || c.Binance.APISecret == "") {
		return fmt.Errorf("для режима %s необходимы ключи Binance API", c.Trading.Environment)
	}

	if c.AI.ConfidenceThreshold < 0 || c.AI.ConfidenceThreshold > 1 {
		return fmt.Errorf("порог уверенности должен быть в диапазоне [0, 1], получено %v", c.AI.ConfidenceThreshold)
	}
	if c.AI.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent должен быть не меньше 1, получено %d", c.AI.MaxConcurrent)
	}

	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade >= 1 {
		return fmt.Errorf("риск на сделку должен быть в диапазоне (0, 1), получено %v", c.Risk.RiskPerTrade)
	}
	if c.Risk.MaxPositionSize <= 0 || c.Risk.MaxPositionSize > 1 {
		return fmt.Errorf("максимальная доля позиции должна быть в диапазоне (0, 1], получено %v", c.Risk.MaxPositionSize)
	}
	if c.Risk.DefaultLeverage < 1 || c.Risk.DefaultLeverage > c.Risk.MaxLeverage {
		return fmt.Errorf("плечо по умолчанию %d вне диапазона [1, %d]", c.Risk.DefaultLeverage, c.Risk.MaxLeverage)
	}
	if c.Risk.AccountBalance <= 0 {
		return fmt.Errorf("резервный баланс должен быть положительным, получено %v", c.Risk.AccountBalance)
	}

	return nil
}

// Observe сообщает, работает ли бот в режиме наблюдения (без торговли)
func (c *Config) Observe() bool {
	return c.Trading.Environment == "observe"
}

// Testnet сообщает, используется ли тестовая сеть биржи
func (c *Config) Testnet() bool {
	return c.Trading.Environment == "testnet"
}
