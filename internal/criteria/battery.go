package criteria

import (
	"fmt"
	"time"

	"github.com/skalibog/sqlab/internal/indicators"
	"github.com/skalibog/sqlab/pkg/models"
)

// Группы критериев
const (
	GroupTrend      = "trend"
	GroupSR         = "support_resistance"
	GroupVolatility = "volatility"
	GroupMomentum   = "momentum"
	GroupVolume     = "volume"
	GroupSentiment  = "sentiment"
	GroupRisk       = "risk"
	GroupMTF        = "multi_timeframe"
	GroupNews       = "news"
)

// battery возвращает фиксированную упорядоченную батарею из 20 проверок.
// Порядок стабилен между вызовами, от него зависит воспроизводимость отчетов.
func battery() []criterion {
	return []criterion{
		{"trend_price_vs_ma200", GroupTrend, checkPriceVsMA200},
		{"trend_ma_alignment", GroupTrend, checkMAAlignment},
		{"trend_higher_tf", GroupTrend, checkHigherTFTrend},
		{"trend_candle_structure", GroupTrend, checkCandleStructure},
		{"sr_support_proximity", GroupSR, checkSupportProximity},
		{"sr_room_to_run", GroupSR, checkRoomToRun},
		{"volatility_band", GroupVolatility, checkVolatilityBand},
		{"volatility_atr_stability", GroupVolatility, checkATRStability},
		{"momentum_rsi_zone", GroupMomentum, checkRSIZone},
		{"momentum_rsi_not_extreme", GroupMomentum, checkRSINotExtreme},
		{"momentum_rsi_higher_tf", GroupMomentum, checkRSIHigherTF},
		{"momentum_macd", GroupMomentum, checkMACD},
		{"volume_above_average", GroupVolume, checkVolumeAboveAverage},
		{"volume_obv_trend", GroupVolume, checkOBVTrend},
		{"volume_directional", GroupVolume, checkDirectionalVolume},
		{"sentiment_daily_rsi", GroupSentiment, checkDailySentiment},
		{"risk_reward_minimum", GroupRisk, checkRiskReward},
		{"mtf_ema_agreement", GroupMTF, checkMTFAgreement},
		{"mtf_daily_trend", GroupMTF, checkDailyTrend},
		{"news_quiet_window", GroupNews, checkNewsQuiet},
	}
}

// checkPriceVsMA200 проверяет, что цена по верную сторону SMA200 основного таймфрейма
func checkPriceVsMA200(ctx *evalContext) (bool, float64, string, error) {
	closes := indicators.Closes(ctx.primary())
	sma, err := indicators.SMA(closes, 200)
	if err != nil {
		return false, 0, "", err
	}
	close := closes[len(closes)-1]
	deviation := (close - sma) / sma * 100
	passed := ctx.direction.Sign()*(close-sma) > 0
	return passed, deviation, fmt.Sprintf("отклонение от SMA200: %+.2f%%", deviation), nil
}

// checkMAAlignment проверяет выстроенность SMA20/50/200 по направлению
func checkMAAlignment(ctx *evalContext) (bool, float64, string, error) {
	closes := indicators.Closes(ctx.primary())
	sma20, err := indicators.SMA(closes, 20)
	if err != nil {
		return false, 0, "", err
	}
	sma50, err := indicators.SMA(closes, 50)
	if err != nil {
		return false, 0, "", err
	}
	sma200, err := indicators.SMA(closes, 200)
	if err != nil {
		return false, 0, "", err
	}
	var passed bool
	if ctx.direction == models.DirectionLong {
		passed = sma20 > sma50 && sma50 > sma200
	} else {
		passed = sma20 < sma50 && sma50 < sma200
	}
	spread := (sma20 - sma200) / sma200 * 100
	return passed, spread, fmt.Sprintf("разворот SMA20/200: %+.2f%%", spread), nil
}

// checkHigherTFTrend проверяет, что старший таймфрейм подтверждает направление
func checkHigherTFTrend(ctx *evalContext) (bool, float64, string, error) {
	closes := indicators.Closes(ctx.higher())
	sma, err := indicators.SMA(closes, 50)
	if err != nil {
		return false, 0, "", err
	}
	close := closes[len(closes)-1]
	deviation := (close - sma) / sma * 100
	passed := ctx.direction.Sign()*(close-sma) > 0
	return passed, deviation, fmt.Sprintf("старший ТФ к SMA50: %+.2f%%", deviation), nil
}

// checkCandleStructure проверяет, что последняя свеча закрылась по направлению с телом ≥ 50% диапазона
func checkCandleStructure(ctx *evalContext) (bool, float64, string, error) {
	candles := ctx.primary()
	last := candles[len(candles)-1]
	body := indicators.BodyFraction(last)
	inDirection := ctx.direction.Sign()*(last.Close-last.Open) > 0
	passed := inDirection && body >= 0.5
	return passed, body, fmt.Sprintf("тело свечи: %.0f%% диапазона", body*100), nil
}

// checkSupportProximity проверяет вход рядом с уровнем: не дальше 3 ATR от
// свингового минимума (для лонга) или максимума (для шорта)
func checkSupportProximity(ctx *evalContext) (bool, float64, string, error) {
	candles := ctx.primary()
	atr, err := indicators.ATR(candles, 14)
	if err != nil {
		return false, 0, "", err
	}
	if atr == 0 {
		return false, 0, "", fmt.Errorf("нулевой ATR")
	}
	close := ctx.lastClose()
	var level float64
	if ctx.direction == models.DirectionLong {
		level, err = indicators.SwingLow(candles, 20)
	} else {
		level, err = indicators.SwingHigh(candles, 20)
	}
	if err != nil {
		return false, 0, "", err
	}
	distance := ctx.direction.Sign() * (close - level) / atr
	passed := distance >= 0 && distance <= 3.0
	return passed, distance, fmt.Sprintf("до уровня: %.2f ATR", distance), nil
}

// checkRoomToRun проверяет, что до противоположного свингового уровня не меньше 1.5 ATR
func checkRoomToRun(ctx *evalContext) (bool, float64, string, error) {
	candles := ctx.primary()
	atr, err := indicators.ATR(candles, 14)
	if err != nil {
		return false, 0, "", err
	}
	if atr == 0 {
		return false, 0, "", fmt.Errorf("нулевой ATR")
	}
	close := ctx.lastClose()
	var level float64
	if ctx.direction == models.DirectionLong {
		level, err = indicators.SwingHigh(candles, 20)
	} else {
		level, err = indicators.SwingLow(candles, 20)
	}
	if err != nil {
		return false, 0, "", err
	}
	room := ctx.direction.Sign() * (level - close) / atr
	passed := room >= 1.5
	return passed, room, fmt.Sprintf("пространство до уровня: %.2f ATR", room), nil
}

// checkVolatilityBand проверяет, что годовая волатильность внутри диапазона профиля актива
func checkVolatilityBand(ctx *evalContext) (bool, float64, string, error) {
	closes := indicators.Closes(ctx.primary())
	vol, err := indicators.RealizedVolatility(closes, 30, indicators.PeriodsPerYear(ctx.cfg.Timeframes.Primary))
	if err != nil {
		return false, 0, "", err
	}
	passed := vol >= ctx.profile.VolatilityMin && vol <= ctx.profile.VolatilityMax
	return passed, vol, fmt.Sprintf("волатильность: %.0f%% годовых", vol*100), nil
}

// checkATRStability проверяет, что текущий ATR не взорван относительно своего среднего
func checkATRStability(ctx *evalContext) (bool, float64, string, error) {
	atrSeries, err := indicators.ATRSeries(ctx.primary(), 14)
	if err != nil {
		return false, 0, "", err
	}
	avg, err := indicators.SMA(atrSeries[14:], 20)
	if err != nil {
		return false, 0, "", err
	}
	if avg == 0 {
		return false, 0, "", fmt.Errorf("нулевой средний ATR")
	}
	ratio := atrSeries[len(atrSeries)-1] / avg
	passed := ratio <= 1.5
	return passed, ratio, fmt.Sprintf("ATR к среднему: %.2f", ratio), nil
}

// checkRSIZone проверяет, что RSI в рабочей зоне по направлению
func checkRSIZone(ctx *evalContext) (bool, float64, string, error) {
	rsi, err := indicators.RSI(indicators.Closes(ctx.primary()), 14)
	if err != nil {
		return false, 0, "", err
	}
	var passed bool
	if ctx.direction == models.DirectionLong {
		passed = rsi >= 45 && rsi <= 70
	} else {
		passed = rsi >= 30 && rsi <= 55
	}
	return passed, rsi, fmt.Sprintf("RSI(14): %.1f", rsi), nil
}

// checkRSINotExtreme проверяет, что RSI не в экстремальной зоне против входа
func checkRSINotExtreme(ctx *evalContext) (bool, float64, string, error) {
	rsi, err := indicators.RSI(indicators.Closes(ctx.primary()), 14)
	if err != nil {
		return false, 0, "", err
	}
	var passed bool
	if ctx.direction == models.DirectionLong {
		passed = rsi < 75
	} else {
		passed = rsi > 25
	}
	return passed, rsi, fmt.Sprintf("RSI(14): %.1f", rsi), nil
}

// checkRSIHigherTF проверяет, что RSI старшего таймфрейма по ту же сторону от 50
func checkRSIHigherTF(ctx *evalContext) (bool, float64, string, error) {
	rsi, err := indicators.RSI(indicators.Closes(ctx.higher()), 14)
	if err != nil {
		return false, 0, "", err
	}
	passed := ctx.direction.Sign()*(rsi-50) > 0
	return passed, rsi, fmt.Sprintf("RSI старшего ТФ: %.1f", rsi), nil
}

// checkMACD проверяет, что знак гистограммы MACD совпадает с направлением
func checkMACD(ctx *evalContext) (bool, float64, string, error) {
	hist, err := indicators.MACDHist(indicators.Closes(ctx.primary()))
	if err != nil {
		return false, 0, "", err
	}
	passed := ctx.direction.Sign()*hist > 0
	return passed, hist, fmt.Sprintf("гистограмма MACD: %+.4f", hist), nil
}

// checkVolumeAboveAverage проверяет, что последний объем выше среднего
func checkVolumeAboveAverage(ctx *evalContext) (bool, float64, string, error) {
	ratio, err := indicators.VolumeRatio(indicators.Volumes(ctx.primary()), 20)
	if err != nil {
		return false, 0, "", err
	}
	passed := ratio >= ctx.cfg.VolumeRatioMin
	return passed, ratio, fmt.Sprintf("объем к среднему: %.2f", ratio), nil
}

// checkOBVTrend проверяет, что наклон балансового объема подтверждает направление
func checkOBVTrend(ctx *evalContext) (bool, float64, string, error) {
	candles := ctx.primary()
	slope, err := indicators.OBVSlope(indicators.Closes(candles), indicators.Volumes(candles), 10)
	if err != nil {
		return false, 0, "", err
	}
	passed := ctx.direction.Sign()*slope > 0
	return passed, slope, fmt.Sprintf("наклон OBV: %+.0f", slope), nil
}

// checkDirectionalVolume проверяет, что объем на свечах по направлению преобладает
func checkDirectionalVolume(ctx *evalContext) (bool, float64, string, error) {
	candles := ctx.primary()
	if len(candles) < 20 {
		return false, 0, "", fmt.Errorf("недостаточно свечей для направленного объема")
	}
	var with, against float64
	for _, c := range candles[len(candles)-20:] {
		if ctx.direction.Sign()*(c.Close-c.Open) > 0 {
			with += c.Volume
		} else {
			against += c.Volume
		}
	}
	if against == 0 {
		return with > 0, 0, "весь объем по направлению", nil
	}
	ratio := with / against
	passed := ratio > 1.0
	return passed, ratio, fmt.Sprintf("объем по/против: %.2f", ratio), nil
}

// checkDailySentiment реализует контртрендовый фильтр эйфории: дневной RSI
// не в экстремальной зоне по направлению входа
func checkDailySentiment(ctx *evalContext) (bool, float64, string, error) {
	rsi, err := indicators.RSI(indicators.Closes(ctx.daily()), 14)
	if err != nil {
		return false, 0, "", err
	}
	var passed bool
	if ctx.direction == models.DirectionLong {
		passed = rsi < 70
	} else {
		passed = rsi > 30
	}
	return passed, rsi, fmt.Sprintf("дневной RSI: %.1f", rsi), nil
}

// checkRiskReward проверяет, что прогнозное соотношение риск/прибыль до свингового
// уровня не хуже минимума профиля при стопе 1.5 ATR
func checkRiskReward(ctx *evalContext) (bool, float64, string, error) {
	candles := ctx.primary()
	atr, err := indicators.ATR(candles, 14)
	if err != nil {
		return false, 0, "", err
	}
	if atr == 0 {
		return false, 0, "", fmt.Errorf("нулевой ATR")
	}
	close := ctx.lastClose()
	var target float64
	if ctx.direction == models.DirectionLong {
		target, err = indicators.SwingHigh(candles, 20)
	} else {
		target, err = indicators.SwingLow(candles, 20)
	}
	if err != nil {
		return false, 0, "", err
	}
	risk := atr * 1.5
	reward := ctx.direction.Sign() * (target - close)
	rr := reward / risk
	passed := rr >= ctx.profile.MinRiskReward
	return passed, rr, fmt.Sprintf("прогнозный R:R: %.2f", rr), nil
}

// checkMTFAgreement проверяет, что наклон EMA20 совпадает на младшем, основном
// и старшем таймфреймах
func checkMTFAgreement(ctx *evalContext) (bool, float64, string, error) {
	frames := [][]*models.Candle{ctx.entry(), ctx.primary(), ctx.higher()}
	agree := 0
	for _, candles := range frames {
		slope, err := indicators.EMASlope(indicators.Closes(candles), 20, 3)
		if err != nil {
			return false, 0, "", err
		}
		if ctx.direction.Sign()*slope > 0 {
			agree++
		}
	}
	passed := agree == len(frames)
	return passed, float64(agree), fmt.Sprintf("согласовано таймфреймов: %d из %d", agree, len(frames)), nil
}

// checkDailyTrend проверяет, что дневной тренд не противоречит направлению
func checkDailyTrend(ctx *evalContext) (bool, float64, string, error) {
	closes := indicators.Closes(ctx.daily())
	sma, err := indicators.SMA(closes, 20)
	if err != nil {
		return false, 0, "", err
	}
	close := closes[len(closes)-1]
	deviation := (close - sma) / sma * 100
	passed := ctx.direction.Sign()*(close-sma) > 0
	return passed, deviation, fmt.Sprintf("дневная цена к SMA20: %+.2f%%", deviation), nil
}

// checkNewsQuiet проверяет отсутствие новостей высокого влияния в скользящем
// окне перед моментом оценки
func checkNewsQuiet(ctx *evalContext) (bool, float64, string, error) {
	window := time.Duration(ctx.cfg.NewsQuietMinutes) * time.Minute
	cutoff := ctx.snapshot.AsOf.Add(-window)
	count := 0
	for _, n := range ctx.snapshot.News {
		if n.Impact == models.NewsImpactHigh && n.Time.After(cutoff) && !n.Time.After(ctx.snapshot.AsOf) {
			count++
		}
	}
	passed := count == 0
	return passed, float64(count), fmt.Sprintf("новостей высокого влияния за %d мин: %d", ctx.cfg.NewsQuietMinutes, count), nil
}
