package criteria

import (
	"fmt"
	"sort"

	"github.com/skalibog/sqlab/internal/indicators"
	"github.com/skalibog/sqlab/pkg/models"
)

// confirmations возвращает подтверждающую батарею для уровня ULTRA_ELITE.
// Все пять проверок обязаны пройти, частичного зачета нет.
func confirmations() []criterion {
	return []criterion{
		{"confirm_mtf_volume_surge", GroupVolume, confirmMTFVolumeSurge},
		{"confirm_conviction_candle", GroupTrend, confirmConvictionCandle},
		{"confirm_clean_trend_structure", GroupMTF, confirmCleanTrendStructure},
		{"confirm_concentrated_volume", GroupVolume, confirmConcentratedVolume},
		{"confirm_volatility_optimal", GroupVolatility, confirmVolatilityOptimal},
	}
}

// confirmMTFVolumeSurge проверяет всплеск объема одновременно на младшем и
// основном таймфреймах
func confirmMTFVolumeSurge(ctx *evalContext) (bool, float64, string, error) {
	entryRatio, err := indicators.VolumeRatio(indicators.Volumes(ctx.entry()), 20)
	if err != nil {
		return false, 0, "", err
	}
	primaryRatio, err := indicators.VolumeRatio(indicators.Volumes(ctx.primary()), 20)
	if err != nil {
		return false, 0, "", err
	}
	passed := entryRatio >= ctx.cfg.VolumeSurgeMin && primaryRatio >= ctx.cfg.VolumeSurgeMin
	min := entryRatio
	if primaryRatio < min {
		min = primaryRatio
	}
	return passed, min, fmt.Sprintf("всплеск объема: %.2f / %.2f", entryRatio, primaryRatio), nil
}

// confirmConvictionCandle проверяет, что последняя свеча основного таймфрейма широкая
// (≥ 1.2 ATR), с телом ≥ 60% и закрытием по направлению
func confirmConvictionCandle(ctx *evalContext) (bool, float64, string, error) {
	candles := ctx.primary()
	atr, err := indicators.ATR(candles, 14)
	if err != nil {
		return false, 0, "", err
	}
	if atr == 0 {
		return false, 0, "", fmt.Errorf("нулевой ATR")
	}
	last := candles[len(candles)-1]
	rangeATR := (last.High - last.Low) / atr
	body := indicators.BodyFraction(last)
	inDirection := ctx.direction.Sign()*(last.Close-last.Open) > 0
	passed := inDirection && rangeATR >= 1.2 && body >= 0.6
	return passed, rangeATR, fmt.Sprintf("диапазон свечи: %.2f ATR, тело %.0f%%", rangeATR, body*100), nil
}

// confirmCleanTrendStructure проверяет, что EMA20 и EMA50 выстроены по направлению
// на всех трех рабочих таймфреймах
func confirmCleanTrendStructure(ctx *evalContext) (bool, float64, string, error) {
	frames := [][]*models.Candle{ctx.entry(), ctx.primary(), ctx.higher()}
	clean := 0
	for _, candles := range frames {
		closes := indicators.Closes(candles)
		ema20, err := indicators.EMA(closes, 20)
		if err != nil {
			return false, 0, "", err
		}
		ema50, err := indicators.EMA(closes, 50)
		if err != nil {
			return false, 0, "", err
		}
		if ctx.direction.Sign()*(ema20-ema50) > 0 {
			clean++
		}
	}
	passed := clean == len(frames)
	return passed, float64(clean), fmt.Sprintf("чистая структура на %d из %d ТФ", clean, len(frames)), nil
}

// confirmConcentratedVolume проверяет, что три самых объемных бара из последних двадцати
// держат не менее 40% совокупного объема, и большинство из них закрыто
// по направлению
func confirmConcentratedVolume(ctx *evalContext) (bool, float64, string, error) {
	candles := ctx.primary()
	if len(candles) < 20 {
		return false, 0, "", fmt.Errorf("недостаточно свечей для концентрации объема")
	}
	window := candles[len(candles)-20:]
	sorted := make([]*models.Candle, len(window))
	copy(sorted, window)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Volume > sorted[j].Volume })

	var total float64
	for _, c := range window {
		total += c.Volume
	}
	if total == 0 {
		return false, 0, "", fmt.Errorf("нулевой совокупный объем")
	}

	var top float64
	withDirection := 0
	for _, c := range sorted[:3] {
		top += c.Volume
		if ctx.direction.Sign()*(c.Close-c.Open) > 0 {
			withDirection++
		}
	}
	share := top / total
	passed := share >= 0.40 && withDirection >= 2
	return passed, share, fmt.Sprintf("доля топ-3 баров: %.0f%%, по направлению %d из 3", share*100, withDirection), nil
}

// confirmVolatilityOptimal проверяет, что волатильность внутри узкого оптимального
// диапазона профиля актива
func confirmVolatilityOptimal(ctx *evalContext) (bool, float64, string, error) {
	closes := indicators.Closes(ctx.primary())
	vol, err := indicators.RealizedVolatility(closes, 30, indicators.PeriodsPerYear(ctx.cfg.Timeframes.Primary))
	if err != nil {
		return false, 0, "", err
	}
	passed := vol >= ctx.profile.OptimalVolatilityMin && vol <= ctx.profile.OptimalVolatilityMax
	return passed, vol, fmt.Sprintf("волатильность: %.0f%% годовых", vol*100), nil
}
