package indicators

import (
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/skalibog/sqlab/pkg/models"
)

// Пакет indicators содержит чистые функции расчета производных рядов
// из сырых свечей. Состояния и ввода-вывода нет.

// Closes извлекает цены закрытия
func Closes(candles []*models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs извлекает максимумы
func Highs(candles []*models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows извлекает минимумы
func Lows(candles []*models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Volumes извлекает объемы
func Volumes(candles []*models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// SMA возвращает последнее значение простой скользящей средней
func SMA(values []float64, period int) (float64, error) {
	if len(values) < period || period <= 0 {
		return 0, fmt.Errorf("недостаточно данных для SMA(%d): %d значений", period, len(values))
	}
	sma := talib.Sma(values, period)
	return sma[len(sma)-1], nil
}

// EMA возвращает последнее значение экспоненциальной скользящей средней
func EMA(values []float64, period int) (float64, error) {
	if len(values) < period || period <= 0 {
		return 0, fmt.Errorf("недостаточно данных для EMA(%d): %d значений", period, len(values))
	}
	ema := talib.Ema(values, period)
	return ema[len(ema)-1], nil
}

// EMASlope возвращает наклон EMA за lookback баров (разница последних значений)
func EMASlope(values []float64, period, lookback int) (float64, error) {
	if len(values) < period+lookback {
		return 0, fmt.Errorf("недостаточно данных для наклона EMA(%d): %d значений", period, len(values))
	}
	ema := talib.Ema(values, period)
	return ema[len(ema)-1] - ema[len(ema)-1-lookback], nil
}

// RSI возвращает последнее значение индекса относительной силы
func RSI(closes []float64, period int) (float64, error) {
	if len(closes) < period+1 {
		return 0, fmt.Errorf("недостаточно данных для RSI(%d): %d значений", period, len(closes))
	}
	rsi := talib.Rsi(closes, period)
	return rsi[len(rsi)-1], nil
}

// ATR возвращает последнее значение среднего истинного диапазона
func ATR(candles []*models.Candle, period int) (float64, error) {
	if len(candles) < period+1 {
		return 0, fmt.Errorf("недостаточно данных для ATR(%d): %d свечей", period, len(candles))
	}
	atr := talib.Atr(Highs(candles), Lows(candles), Closes(candles), period)
	return atr[len(atr)-1], nil
}

// ATRSeries возвращает полный ряд ATR
func ATRSeries(candles []*models.Candle, period int) ([]float64, error) {
	if len(candles) < period+1 {
		return nil, fmt.Errorf("недостаточно данных для ATR(%d): %d свечей", period, len(candles))
	}
	return talib.Atr(Highs(candles), Lows(candles), Closes(candles), period), nil
}

// MACDHist возвращает последнее значение гистограммы MACD(12,26,9)
func MACDHist(closes []float64) (float64, error) {
	if len(closes) < 35 {
		return 0, fmt.Errorf("недостаточно данных для MACD: %d значений", len(closes))
	}
	_, _, hist := talib.Macd(closes, 12, 26, 9)
	return hist[len(hist)-1], nil
}

// OBVSlope возвращает изменение балансового объема за lookback баров
func OBVSlope(closes, volumes []float64, lookback int) (float64, error) {
	if len(closes) < lookback+1 || len(closes) != len(volumes) {
		return 0, fmt.Errorf("недостаточно данных для OBV: %d значений", len(closes))
	}
	obv := talib.Obv(closes, volumes)
	return obv[len(obv)-1] - obv[len(obv)-1-lookback], nil
}

// VolumeRatio возвращает отношение последнего объема к среднему за period баров
// (без учета самого последнего бара)
func VolumeRatio(volumes []float64, period int) (float64, error) {
	if len(volumes) < period+1 {
		return 0, fmt.Errorf("недостаточно данных для отношения объемов(%d): %d значений", period, len(volumes))
	}
	var sum float64
	for _, v := range volumes[len(volumes)-period-1 : len(volumes)-1] {
		sum += v
	}
	avg := sum / float64(period)
	if avg == 0 {
		return 0, fmt.Errorf("нулевой средний объем за %d баров", period)
	}
	return volumes[len(volumes)-1] / avg, nil
}

// RealizedVolatility возвращает годовую реализованную волатильность
// (стандартное отклонение логарифмических доходностей за lookback баров)
func RealizedVolatility(closes []float64, lookback int, periodsPerYear float64) (float64, error) {
	if len(closes) < lookback+1 {
		return 0, fmt.Errorf("недостаточно данных для волатильности(%d): %d значений", lookback, len(closes))
	}
	window := closes[len(closes)-lookback-1:]
	returns := make([]float64, 0, lookback)
	for i := 1; i < len(window); i++ {
		if window[i-1] <= 0 || window[i] <= 0 {
			return 0, fmt.Errorf("неположительная цена в окне волатильности")
		}
		returns = append(returns, math.Log(window[i]/window[i-1]))
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance) * math.Sqrt(periodsPerYear), nil
}

// SwingLow возвращает минимальный low за lookback баров до последнего
func SwingLow(candles []*models.Candle, lookback int) (float64, error) {
	if len(candles) < lookback+1 {
		return 0, fmt.Errorf("недостаточно данных для swing low(%d): %d свечей", lookback, len(candles))
	}
	low := math.Inf(1)
	for _, c := range candles[len(candles)-lookback-1 : len(candles)-1] {
		if c.Low < low {
			low = c.Low
		}
	}
	return low, nil
}

// SwingHigh возвращает максимальный high за lookback баров до последнего
func SwingHigh(candles []*models.Candle, lookback int) (float64, error) {
	if len(candles) < lookback+1 {
		return 0, fmt.Errorf("недостаточно данных для swing high(%d): %d свечей", lookback, len(candles))
	}
	high := math.Inf(-1)
	for _, c := range candles[len(candles)-lookback-1 : len(candles)-1] {
		if c.High > high {
			high = c.High
		}
	}
	return high, nil
}

// BodyFraction возвращает долю тела свечи от полного диапазона (0..1)
func BodyFraction(c *models.Candle) float64 {
	r := c.High - c.Low
	if r <= 0 {
		return 0
	}
	return math.Abs(c.Close-c.Open) / r
}

// TimeframeDuration возвращает длительность бара по метке таймфрейма
func TimeframeDuration(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "2h":
		return 2 * time.Hour
	case "4h":
		return 4 * time.Hour
	case "6h":
		return 6 * time.Hour
	case "8h":
		return 8 * time.Hour
	case "12h":
		return 12 * time.Hour
	case "1d":
		return 24 * time.Hour
	case "3d":
		return 72 * time.Hour
	case "1w":
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// PeriodsPerYear возвращает количество баров таймфрейма в году
func PeriodsPerYear(timeframe string) float64 {
	d := TimeframeDuration(timeframe)
	return float64(365*24*time.Hour) / float64(d)
}
