package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/skalibog/sqlab/internal/config"
	"github.com/skalibog/sqlab/pkg/models"
)

// BinanceClient поставляет исторические данные с биржи. Ядро оценки и
// симуляции его не знает: клиент лишь наполняет ряды свечей.
type BinanceClient struct {
	futures *futures.Client
	spot    *binance.Client
}

// NewBinanceClient создает новый клиент Binance.
// Переключение на testnet делается до создания клиентов: базовые URL
// фиксируются в NewClient по пакетным флагам UseTestnet.
func NewBinanceClient(cfg config.BinanceConfig) *BinanceClient {
	if cfg.Testnet {
		futures.UseTestnet = true
		binance.UseTestnet = true
	}

	return &BinanceClient{
		futures: futures.NewClient(cfg.APIKey, cfg.APISecret),
		spot:    binance.NewClient(cfg.APIKey, cfg.APISecret),
	}
}

// GetKlines получает исторические свечи одного таймфрейма
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, timeframe string, limit int) (*models.Series, error) {
	klines, err := c.futures.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", err)
	}

	series := &models.Series{Symbol: symbol, Timeframe: timeframe}
	for _, k := range klines {
		candle, err := klineToCandle(symbol, timeframe, k)
		if err != nil {
			return nil, err
		}
		series.Candles = append(series.Candles, candle)
	}

	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("биржа вернула неупорядоченный ряд: %w", err)
	}
	return series, nil
}

// GetSnapshot собирает многотаймфреймовый снимок рынка из исторических
// свечей всех требуемых таймфреймов
func (c *BinanceClient) GetSnapshot(ctx context.Context, symbol string, timeframes []string, limit int) (*models.MarketSnapshot, error) {
	snapshot := &models.MarketSnapshot{
		Symbol: symbol,
		Series: make(map[string]*models.Series),
	}

	for _, tf := range timeframes {
		series, err := c.GetKlines(ctx, symbol, tf, limit)
		if err != nil {
			return nil, fmt.Errorf("ошибка загрузки таймфрейма %s: %w", tf, err)
		}
		snapshot.Series[tf] = series
		if last := series.Last(); last != nil && last.OpenTime.After(snapshot.AsOf) {
			snapshot.AsOf = last.OpenTime
		}
	}

	return snapshot, nil
}

// klineToCandle конвертирует свечу биржи во внутреннюю модель
func klineToCandle(symbol, timeframe string, k *futures.Kline) (*models.Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора цены открытия: %w", err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора максимума: %w", err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора минимума: %w", err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора цены закрытия: %w", err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора объема: %w", err)
	}

	return &models.Candle{
		Symbol:    symbol,
		Timeframe: timeframe,
		OpenTime:  time.Unix(k.OpenTime/1000, 0),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		CloseTime: time.Unix(k.CloseTime/1000, 0),
	}, nil
}
