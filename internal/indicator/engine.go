package indicator

import (
	"fmt"

	"github.com/skalibog/aitrade/pkg/models"
)

// Engine рассчитывает настроенный набор индикаторов по серии свечей.
// Без ввода-вывода и без состояния между вызовами — безопасен для
// конкурентного использования из нескольких задач анализа.
type Engine struct {
	config *Config
}

// NewEngine создает движок индикаторов из разобранной конфигурации
func NewEngine(config *Config) *Engine {
	return &Engine{config: config}
}

// NewEngineFromString создает движок из текстовой конфигурации
func NewEngineFromString(raw string) (*Engine, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	return NewEngine(cfg), nil
}

// Config возвращает конфигурацию движка
func (e *Engine) Config() *Config {
	return e.config
}

// Compute рассчитывает все настроенные индикаторы. Ключ результата —
// имя индикатора, для многопериодных запросов — имя_период.
// Недостаток истории не является ошибкой: начальные позиции серий
// заполняются NaN. Ошибка возвращается только для пустой серии свечей.
func (e *Engine) Compute(candles []*models.Candle) (map[string]Series, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("пустая серия свечей")
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	result := make(map[string]Series)
	for _, spec := range e.config.Specs() {
		switch spec.Name {
		case "ma":
			for _, period := range spec.Params {
				result[fmt.Sprintf("ma_%d", period)] = Series{Values: MA(closes, period)}
			}
		case "ema":
			for _, period := range spec.Params {
				result[fmt.Sprintf("ema_%d", period)] = Series{Values: EMA(closes, period)}
			}
		case "rsi":
			result["rsi"] = Series{Values: RSI(closes, spec.Params[0])}
		case "macd":
			macd, signal, hist := MACD(closes, spec.Params[0], spec.Params[1], spec.Params[2])
			result["macd"] = Series{Components: map[string][]float64{
				"macd":      macd,
				"signal":    signal,
				"histogram": hist,
			}}
		case "bbands":
			upper, middle, lower := BBands(closes, spec.Params[0], spec.Params[1], spec.Params[2])
			result["bbands"] = Series{Components: map[string][]float64{
				"upper":  upper,
				"middle": middle,
				"lower":  lower,
			}}
		case "kdj":
			k, d, j := KDJ(highs, lows, closes, spec.Params[0], spec.Params[1], spec.Params[2])
			result["kdj"] = Series{Components: map[string][]float64{
				"k": k,
				"d": d,
				"j": j,
			}}
		case "atr":
			result["atr"] = Series{Values: ATR(highs, lows, closes, spec.Params[0])}
		}
	}

	return result, nil
}

// DetectEMACross рассчитывает EMA двух периодов и классифицирует
// последнее пересечение быстрой и медленной линий
func (e *Engine) DetectEMACross(candles []*models.Candle, fastPeriod, slowPeriod int) (CrossInfo, error) {
	if len(candles) == 0 {
		return CrossInfo{}, fmt.Errorf("пустая серия свечей")
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	return DetectCross(EMA(closes, fastPeriod), EMA(closes, slowPeriod)), nil
}

// DetectMACross аналог DetectEMACross для простых скользящих средних
func (e *Engine) DetectMACross(candles []*models.Candle, fastPeriod, slowPeriod int) (CrossInfo, error) {
	if len(candles) == 0 {
		return CrossInfo{}, fmt.Errorf("пустая серия свечей")
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	return DetectCross(MA(closes, fastPeriod), MA(closes, slowPeriod)), nil
}
