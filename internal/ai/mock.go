package ai

import (
	"context"
	"fmt"
	"strings"
)

// MockProvider имитирует AI-провайдера без сетевых запросов.
// Используется в режиме наблюдения без ключа API и в тестах.
type MockProvider struct {
	// Response подменяет ответ целиком, если задан
	Response string
	// Err возвращается вместо ответа, если задан
	Err error
}

// NewMockProvider создает мок-провайдера с ответом "наблюдать"
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Chat возвращает детерминированный JSON-ответ в формате рекомендации
func (p *MockProvider) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	if p.Err != nil {
		return "", p.Err
	}
	if p.Response != "" {
		return p.Response, nil
	}

	// Извлекаем символ из пользовательского сообщения, чтобы ответ
	// выглядел правдоподобно в логах
	symbol := "UNKNOWN"
	for _, m := range messages {
		if m.Role != "user" {
			continue
		}
		for _, line := range strings.Split(m.Content, "\n") {
			if rest, found := strings.CutPrefix(line, "Symbol: "); found {
				symbol = strings.TrimSpace(rest)
			}
		}
	}

	return fmt.Sprintf(`{"symbol": %q, "action": "hold", "confidence": 0.5, "reason": "mock provider"}`, symbol), nil
}

// Name возвращает имя провайдера
func (p *MockProvider) Name() string {
	return "mock"
}
