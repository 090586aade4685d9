package storage

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/skalibog/aitrade/internal/config"
	"github.com/skalibog/aitrade/pkg/models"
)

// InfluxDBStorage реализует интерфейс Storage с использованием InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPI
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	health, err := client.Health(context.Background())
	if err != nil {
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	return &InfluxDBStorage{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Organization),
		writeAPI: client.WriteAPI(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.writeAPI.Flush()
	s.client.Close()
}

// SaveRecommendation сохраняет рекомендацию AI
func (s *InfluxDBStorage) SaveRecommendation(ctx context.Context, rec *models.Recommendation) error {
	point := influxdb2.NewPoint(
		"recommendations",
		map[string]string{
			"symbol":   rec.Symbol,
			"action":   string(rec.Action),
			"provider": rec.Provider,
		},
		map[string]interface{}{
			"confidence":  rec.Confidence,
			"entry_price": rec.EntryPrice,
			"stop_loss":   rec.StopLoss,
			"take_profit": rec.TakeProfit,
			"leverage":    rec.Leverage,
			"reasoning":   rec.Reasoning,
		},
		rec.Timestamp,
	)

	s.writeAPI.WritePoint(point)
	s.writeAPI.Flush()

	return nil
}

// GetRecommendations получает историю рекомендаций по символу
func (s *InfluxDBStorage) GetRecommendations(ctx context.Context, symbol string, limit int) ([]*models.Recommendation, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -30d)
			|> filter(fn: (r) => r._measurement == "recommendations")
			|> filter(fn: (r) => r.symbol == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, s.bucket, symbol, limit)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса рекомендаций: %w", err)
	}

	var recs []*models.Recommendation
	for result.Next() {
		record := result.Record()

		confidence, _ := record.ValueByKey("confidence").(float64)
		entryPrice, _ := record.ValueByKey("entry_price").(float64)
		stopLoss, _ := record.ValueByKey("stop_loss").(float64)
		takeProfit, _ := record.ValueByKey("take_profit").(float64)
		leverage, _ := record.ValueByKey("leverage").(int64)
		reasoning, _ := record.ValueByKey("reasoning").(string)
		action, _ := record.ValueByKey("action").(string)
		provider, _ := record.ValueByKey("provider").(string)

		recs = append(recs, &models.Recommendation{
			Symbol:     symbol,
			Action:     models.Action(action),
			Confidence: confidence,
			EntryPrice: entryPrice,
			StopLoss:   stopLoss,
			TakeProfit: takeProfit,
			Leverage:   int(leverage),
			Reasoning:  reasoning,
			Provider:   provider,
			Timestamp:  record.Time(),
		})
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return recs, nil
}

// SaveTradeResult сохраняет итог исполнения сделки
func (s *InfluxDBStorage) SaveTradeResult(ctx context.Context, result *models.TradeResult) error {
	fields := map[string]interface{}{
		"success":       result.Success,
		"message":       result.Message,
		"position_size": result.PositionSize,
		"leverage":      result.Leverage,
		"compensation":  result.CompensationPerformed,
	}
	if result.EntryOrder != nil {
		fields["entry_order_id"] = result.EntryOrder.OrderID
	}
	if result.StopLossOrder != nil {
		fields["stop_loss_order_id"] = result.StopLossOrder.OrderID
	}
	if result.TakeProfitOrder != nil {
		fields["take_profit_order_id"] = result.TakeProfitOrder.OrderID
	}

	point := influxdb2.NewPoint(
		"trades",
		map[string]string{
			"symbol": result.Symbol,
		},
		fields,
		result.Timestamp,
	)

	s.writeAPI.WritePoint(point)
	s.writeAPI.Flush()

	return nil
}
