package marketdata

import (
	"context"
	"fmt"

	"github.com/skalibog/sqlab/pkg/logger"
	"github.com/skalibog/sqlab/pkg/models"
	"go.uber.org/zap"
)

// CandleProvider поставляет свечи из внешнего источника (биржа)
type CandleProvider interface {
	GetKlines(ctx context.Context, symbol, timeframe string, limit int) (*models.Series, error)
}

// CandleStore хранит свечи между запусками
type CandleStore interface {
	SaveCandles(ctx context.Context, candles []*models.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]*models.Candle, error)
}

// LoadSeriesCached читает ряд свечей сквозь хранилище: при достаточной
// глубине в хранилище сеть не трогается, иначе свечи загружаются у
// поставщика и сохраняются для следующих запусков. Ошибки хранилища
// деградируют до загрузки с биржи, работоспособность от них не зависит.
func LoadSeriesCached(ctx context.Context, store CandleStore, provider CandleProvider, symbol, timeframe string, limit int) (*models.Series, error) {
	if store != nil {
		cached, err := store.GetCandles(ctx, symbol, timeframe, limit)
		if err != nil {
			logger.Warn("Ошибка чтения свечей из хранилища",
				zap.String("symbol", symbol),
				zap.String("timeframe", timeframe),
				zap.Error(err))
		} else if len(cached) >= limit {
			series := &models.Series{Symbol: symbol, Timeframe: timeframe, Candles: cached}
			if err := series.Validate(); err != nil {
				return nil, fmt.Errorf("хранилище вернуло неупорядоченный ряд: %w", err)
			}
			logger.Debug("Свечи взяты из хранилища",
				zap.String("symbol", symbol),
				zap.String("timeframe", timeframe),
				zap.Int("count", len(cached)))
			return series, nil
		}
	}

	series, err := provider.GetKlines(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}

	if store != nil {
		if err := store.SaveCandles(ctx, series.Candles); err != nil {
			logger.Warn("Не удалось сохранить свечи в хранилище",
				zap.String("symbol", symbol),
				zap.String("timeframe", timeframe),
				zap.Error(err))
		}
	}
	return series, nil
}
