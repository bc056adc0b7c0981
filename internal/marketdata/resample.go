package marketdata

import (
	"fmt"

	"github.com/skalibog/sqlab/internal/config"
	"github.com/skalibog/sqlab/internal/indicators"
	"github.com/skalibog/sqlab/pkg/models"
)

// Resample агрегирует свечи младшего таймфрейма в старший. Бакеты
// образуются усечением времени открытия до длительности целевого
// таймфрейма; последний (возможно неполный) бакет включается, потому что
// он отражает текущее состояние рынка на момент среза.
func Resample(series *models.Series, target string) (*models.Series, error) {
	srcDur := indicators.TimeframeDuration(series.Timeframe)
	dstDur := indicators.TimeframeDuration(target)
	if dstDur < srcDur {
		return nil, fmt.Errorf("нельзя агрегировать %s в более мелкий %s", series.Timeframe, target)
	}
	if dstDur == srcDur {
		return &models.Series{Symbol: series.Symbol, Timeframe: target, Candles: series.Candles}, nil
	}

	out := &models.Series{Symbol: series.Symbol, Timeframe: target}
	var current *models.Candle
	for _, c := range series.Candles {
		bucket := c.OpenTime.Truncate(dstDur)
		if current == nil || !current.OpenTime.Equal(bucket) {
			current = &models.Candle{
				Symbol:    series.Symbol,
				Timeframe: target,
				OpenTime:  bucket,
				Open:      c.Open,
				High:      c.High,
				Low:       c.Low,
				Close:     c.Close,
				Volume:    c.Volume,
				CloseTime: bucket.Add(dstDur),
			}
			out.Candles = append(out.Candles, current)
			continue
		}
		if c.High > current.High {
			current.High = c.High
		}
		if c.Low < current.Low {
			current.Low = c.Low
		}
		current.Close = c.Close
		current.Volume += c.Volume
	}
	return out, nil
}

// SnapshotFromHistory строит многотаймфреймовый снимок рынка из истории
// баров базового таймфрейма, агрегируя недостающие таймфреймы.
// Момент среза равен времени открытия последнего бара истории.
func SnapshotFromHistory(symbol string, history []*models.Candle, baseTimeframe string, tfs config.TimeframesConfig, news []models.NewsEvent) (*models.MarketSnapshot, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("пустая история для снимка %s", symbol)
	}

	base := &models.Series{Symbol: symbol, Timeframe: baseTimeframe, Candles: history}
	snapshot := &models.MarketSnapshot{
		Symbol: symbol,
		AsOf:   history[len(history)-1].OpenTime,
		Series: make(map[string]*models.Series),
		News:   news,
	}

	for _, tf := range tfs.All() {
		resampled, err := Resample(base, tf)
		if err != nil {
			return nil, fmt.Errorf("ошибка агрегации %s -> %s: %w", baseTimeframe, tf, err)
		}
		snapshot.Series[tf] = resampled
	}
	return snapshot, nil
}
