package storage

import (
	"context"

	"github.com/skalibog/aitrade/pkg/models"
)

// Storage интерфейс хранилища истории анализа и сделок
type Storage interface {
	SaveRecommendation(ctx context.Context, rec *models.Recommendation) error
	GetRecommendations(ctx context.Context, symbol string, limit int) ([]*models.Recommendation, error)
	SaveTradeResult(ctx context.Context, result *models.TradeResult) error
	Close()
}
