package ai

import (
	"fmt"
	"time"

	"github.com/skalibog/aitrade/internal/config"
)

// Базовые адреса известных OpenAI-совместимых провайдеров
const (
	deepseekBaseURL   = "https://api.deepseek.com/v1"
	modelscopeBaseURL = "https://api-inference.modelscope.cn/v1"
)

// NewProvider создает AI-провайдера по имени из конфигурации.
// Неизвестный провайдер — ошибка конфигурации, фатальная при старте.
func NewProvider(cfg config.AIConfig) (Provider, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Provider {
	case "mock":
		return NewMockProvider(), nil

	case "deepseek":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("для провайдера deepseek требуется api_key")
		}
		model := cfg.Model
		if model == "" {
			model = "deepseek-chat"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = deepseekBaseURL
		}
		return NewOpenAICompatProvider("deepseek", baseURL, cfg.APIKey, model, timeout), nil

	case "modelscope":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("для провайдера modelscope требуется api_key")
		}
		model := cfg.Model
		if model == "" {
			model = "ZhipuAI/GLM-4.6"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = modelscopeBaseURL
		}
		return NewOpenAICompatProvider("modelscope", baseURL, cfg.APIKey, model, timeout), nil

	default:
		return nil, fmt.Errorf("неизвестный AI-провайдер: %q", cfg.Provider)
	}
}
