package ai

import "context"

// Message одно сообщение диалога с AI-моделью
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatOptions параметры запроса к AI-модели
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// Provider абстракция AI-провайдера. Отвечает только за обмен
// сообщениями с API конкретного вендора, без торговой логики.
// Анализатор и планировщик зависят только от этого интерфейса.
type Provider interface {
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
	Name() string
}
