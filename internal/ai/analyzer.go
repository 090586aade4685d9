package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/aitrade/internal/config"
	"github.com/skalibog/aitrade/pkg/logger"
	"github.com/skalibog/aitrade/pkg/models"
)

const systemPrompt = `You are a cryptocurrency futures trading assistant.
You receive a market snapshot with technical indicator values and must answer
with a single JSON object, no prose outside of it:
{"symbol": "...", "action": "long"|"short"|"hold", "confidence": 0.0-1.0,
 "entry_price": number, "stop_loss": number, "take_profit": number,
 "leverage": integer, "reason": "..."}
Use "hold" when there is no clear setup. Confidence reflects how strongly the
data supports the action.`

// Analyzer превращает рыночный срез в торговую рекомендацию через
// AI-провайдера. Если модель не дала цены стопа или тейка, они
// достраиваются из ATR и соотношения риск/прибыль.
type Analyzer struct {
	provider Provider
	cfg      config.AIConfig
	risk     config.RiskConfig
}

// NewAnalyzer создает анализатор поверх AI-провайдера
func NewAnalyzer(provider Provider, cfg config.AIConfig, risk config.RiskConfig) *Analyzer {
	return &Analyzer{provider: provider, cfg: cfg, risk: risk}
}

// Analyze запрашивает у AI рекомендацию по рыночному срезу.
// Срез без валидных индикаторов не отклоняется: модель явно
// предупреждается, что рассуждает на неполных данных.
func (a *Analyzer) Analyze(ctx context.Context, snapshot *models.MarketSnapshot) (*models.Recommendation, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("пустой рыночный срез")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: a.buildPrompt(snapshot)},
	}

	response, err := a.provider.Chat(ctx, messages, ChatOptions{
		Temperature: a.cfg.Temperature,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса к AI: %w", err)
	}

	rec := a.parseResponse(response, snapshot)
	a.applyRiskDefaults(rec, snapshot)
	rec.Provider = a.provider.Name()
	rec.Timestamp = time.Now()

	logger.Debug("Рекомендация получена",
		zap.String("symbol", rec.Symbol),
		zap.String("action", string(rec.Action)),
		zap.Float64("confidence", rec.Confidence))

	return rec, nil
}

// buildPrompt собирает пользовательское сообщение из рыночного среза
func (a *Analyzer) buildPrompt(s *models.MarketSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Symbol: %s\n", s.Symbol)
	fmt.Fprintf(&b, "Timeframe: %s\n", s.Timeframe)
	fmt.Fprintf(&b, "Current price: %g\n", s.Price)
	fmt.Fprintf(&b, "Change: %.2f%%\n", s.ChangePercent)
	fmt.Fprintf(&b, "Volume: %g\n", s.Volume)
	fmt.Fprintf(&b, "High: %g, Low: %g\n", s.High, s.Low)

	if s.ValidIndicators == 0 {
		// Модель должна знать, что индикаторных данных нет
		b.WriteString("\nWARNING: no valid indicator data is available for this symbol. ")
		b.WriteString("Any recommendation is based on price action only; prefer hold and low confidence.\n")
	} else {
		fmt.Fprintf(&b, "\nIndicators (%d/%d valid):\n", s.ValidIndicators, s.TotalIndicators)
		names := make([]string, 0, len(s.Indicators))
		for name := range s.Indicators {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %s: %g\n", name, s.Indicators[name])
		}
	}

	b.WriteString("\nRespond with the JSON object only.")
	return b.String()
}

// recommendationJSON формат JSON-ответа модели
type recommendationJSON struct {
	Symbol     string  `json:"symbol"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	EntryPrice float64 `json:"entry_price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Leverage   int     `json:"leverage"`
	Reason     string  `json:"reason"`
}

// parseResponse разбирает ответ модели. Сначала извлекается JSON
// (в том числе из блока кода), при неудаче используется текстовый
// разбор по ключевым словам с консервативными значениями.
func (a *Analyzer) parseResponse(response string, snapshot *models.MarketSnapshot) *models.Recommendation {
	if jsonStr, ok := extractJSON(response); ok {
		var parsed recommendationJSON
		if err := json.Unmarshal([]byte(jsonStr), &parsed); err == nil {
			rec := &models.Recommendation{
				Symbol:     snapshot.Symbol,
				Action:     normalizeAction(parsed.Action),
				Confidence: clamp01(parsed.Confidence),
				EntryPrice: parsed.EntryPrice,
				StopLoss:   parsed.StopLoss,
				TakeProfit: parsed.TakeProfit,
				Leverage:   parsed.Leverage,
				Reasoning:  parsed.Reason,
			}
			if parsed.Symbol != "" {
				rec.Symbol = parsed.Symbol
			}
			return rec
		}
		logger.Debug("Не удалось разобрать JSON-ответ, переход к текстовому разбору")
	}

	// Текстовый разбор как в исходном анализаторе: направление по
	// ключевым словам, уверенность по силе формулировок
	lower := strings.ToLower(response)

	action := models.ActionHold
	if containsAny(lower, "long", "buy") {
		action = models.ActionLong
	} else if containsAny(lower, "short", "sell") {
		action = models.ActionShort
	}

	confidence := 0.5
	if containsAny(lower, "strong", "very") {
		confidence = 0.8
	} else if containsAny(lower, "weak", "cautious") {
		confidence = 0.3
	}

	return &models.Recommendation{
		Symbol:     snapshot.Symbol,
		Action:     action,
		Confidence: confidence,
		Reasoning:  response,
	}
}

// applyRiskDefaults достраивает отсутствующие цены рекомендации.
// Стоп считается от ATR, тейк — от соотношения риск/прибыль.
func (a *Analyzer) applyRiskDefaults(rec *models.Recommendation, snapshot *models.MarketSnapshot) {
	if rec.Action == models.ActionHold {
		return
	}

	if rec.EntryPrice <= 0 {
		rec.EntryPrice = snapshot.Price
	}

	if rec.StopLoss <= 0 {
		atr, hasATR := snapshot.Indicators["atr"]
		distance := rec.EntryPrice * 0.03
		if hasATR && atr > 0 {
			distance = atr * a.risk.ATRMultiplier
		}
		if rec.Action == models.ActionLong {
			rec.StopLoss = rec.EntryPrice - distance
		} else {
			rec.StopLoss = rec.EntryPrice + distance
		}
		if rec.StopLoss < 0 {
			rec.StopLoss = 0
		}
	}

	if rec.TakeProfit <= 0 {
		distance := abs(rec.EntryPrice-rec.StopLoss) * a.risk.RiskRewardRatio
		if rec.Action == models.ActionLong {
			rec.TakeProfit = rec.EntryPrice + distance
		} else {
			rec.TakeProfit = rec.EntryPrice - distance
			if rec.TakeProfit < 0 {
				rec.TakeProfit = 0
			}
		}
	}
}

// extractJSON вырезает JSON-объект из ответа модели, учитывая блоки кода
func extractJSON(response string) (string, bool) {
	if idx := strings.Index(response, "```json"); idx >= 0 {
		rest := response[idx+7:]
		if end := strings.Index(rest, "```"); end > 0 {
			return strings.TrimSpace(rest[:end]), true
		}
	}
	if idx := strings.Index(response, "```"); idx >= 0 {
		rest := response[idx+3:]
		if end := strings.Index(rest, "```"); end > 0 {
			candidate := strings.TrimSpace(rest[:end])
			if strings.HasPrefix(candidate, "{") {
				return candidate, true
			}
		}
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		return response[start : end+1], true
	}
	return "", false
}

func normalizeAction(raw string) models.Action {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "long", "buy":
		return models.ActionLong
	case "short", "sell":
		return models.ActionShort
	default:
		return models.ActionHold
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
