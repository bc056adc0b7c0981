// internal/storage/influxdb.go
package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/skalibog/sqlab/internal/config"
	"github.com/skalibog/sqlab/pkg/models"
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

	queryAPI := client.QueryAPI(cfg.Organization)
	writeAPI := client.WriteAPI(cfg.Organization, cfg.Bucket)

	return &InfluxDBStorage{
		client:   client,
		queryAPI: queryAPI,
		writeAPI: writeAPI,
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.client.Close()
}

// SaveCandles сохраняет множество свечей
func (s *InfluxDBStorage) SaveCandles(ctx context.Context, candles []*models.Candle) error {
	for _, candle := range candles {
		point := influxdb2.NewPoint(
			"candles",
			map[string]string{
				"symbol":    candle.Symbol,
				"timeframe": candle.Timeframe,
			},
			map[string]interface{}{
				"open":   candle.Open,
				"high":   candle.High,
				"low":    candle.Low,
				"close":  candle.Close,
				"volume": candle.Volume,
			},
			candle.OpenTime,
		)
		s.writeAPI.WritePoint(point)
	}

	s.writeAPI.Flush()
	return nil
}

// GetCandles получает исторические свечи в хронологическом порядке
func (s *InfluxDBStorage) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]*models.Candle, error) {
	// Формируем Flux-запрос
	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -90d)
			|> filter(fn: (r) => r._measurement == "candles")
			|> filter(fn: (r) => r.symbol == "%s")
			|> filter(fn: (r) => r.timeframe == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
			|> sort(columns: ["_time"])
	`, s.bucket, symbol, timeframe, limit)

	// Выполняем запрос
	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса свечей: %w", err)
	}

	// Обрабатываем результаты
	var candles []*models.Candle
	for result.Next() {
		record := result.Record()

		open, _ := record.ValueByKey("open").(float64)
		high, _ := record.ValueByKey("high").(float64)
		low, _ := record.ValueByKey("low").(float64)
		closePrice, _ := record.ValueByKey("close").(float64)
		volume, _ := record.ValueByKey("volume").(float64)

		candle := &models.Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			OpenTime:  record.Time(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			CloseTime: record.Time().Add(timeframeDuration(timeframe)),
		}
		candles = append(candles, candle)
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return candles, nil
}

// SaveSignal сохраняет сигнал
func (s *InfluxDBStorage) SaveSignal(ctx context.Context, signal *models.Signal) error {
	point := influxdb2.NewPoint(
		"signals",
		map[string]string{
			"symbol": signal.Symbol,
			"tier":   string(signal.Tier),
		},
		map[string]interface{}{
			"id":            signal.ID,
			"direction":     string(signal.Direction),
			"entry":         signal.Entry,
			"stop_loss":     signal.StopLoss,
			"take_profit_1": signal.TakeProfit1,
			"take_profit_2": signal.TakeProfit2,
			"confidence":    signal.Confidence,
			"risk_reward":   signal.RiskReward,
		},
		signal.CreatedAt,
	)

	s.writeAPI.WritePoint(point)
	s.writeAPI.Flush()

	return nil
}

// SaveTradeRecords сохраняет леджер сделок бэктеста
func (s *InfluxDBStorage) SaveTradeRecords(ctx context.Context, runID string, trades []*models.TradeRecord) error {
	for _, t := range trades {
		point := influxdb2.NewPoint(
			"trade_records",
			map[string]string{
				"run":    runID,
				"symbol": t.Symbol,
				"reason": string(t.ExitReason),
			},
			map[string]interface{}{
				"signal_id":     t.SignalID,
				"direction":     string(t.Direction),
				"entry_price":   t.EntryPrice,
				"exit_price":    t.ExitPrice,
				"quantity":      t.Quantity,
				"size_fraction": t.SizeFraction,
				"fees":          t.Fees,
				"net_pnl":       t.NetPnL,
			},
			t.ExitTime,
		)
		s.writeAPI.WritePoint(point)
	}

	s.writeAPI.Flush()
	return nil
}

// SaveEquityCurve сохраняет кривую капитала бэктеста
func (s *InfluxDBStorage) SaveEquityCurve(ctx context.Context, runID string, equity []models.EquityPoint) error {
	for _, p := range equity {
		point := influxdb2.NewPoint(
			"equity_curve",
			map[string]string{
				"run": runID,
			},
			map[string]interface{}{
				"balance": p.Balance,
			},
			p.Time,
		)
		s.writeAPI.WritePoint(point)
	}

	s.writeAPI.Flush()
	return nil
}

// timeframeDuration переводит метку таймфрейма в длительность
func timeframeDuration(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// Storage интерфейс для работы с хранилищем данных
type Storage interface {
	// Методы для свечей
	SaveCandles(ctx context.Context, candles []*models.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]*models.Candle, error)

	// Методы для сигналов
	SaveSignal(ctx context.Context, signal *models.Signal) error

	// Методы для результатов бэктестов
	SaveTradeRecords(ctx context.Context, runID string, trades []*models.TradeRecord) error
	SaveEquityCurve(ctx context.Context, runID string, equity []models.EquityPoint) error

	// Вспомогательные методы
	Close()
}
