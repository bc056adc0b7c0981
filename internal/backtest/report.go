package backtest

import (
	"math"
	"time"

	"github.com/skalibog/sqlab/pkg/models"
)

// logicalTrade собирает одну логическую сделку: все участки одного сигнала
// в порядке закрытия
type logicalTrade struct {
	legs []*models.TradeRecord
}

func (t *logicalTrade) entryTime() time.Time {
	return t.legs[0].EntryTime
}

func (t *logicalTrade) exitTime() time.Time {
	return t.legs[len(t.legs)-1].ExitTime
}

func (t *logicalTrade) finalLeg() *models.TradeRecord {
	return t.legs[len(t.legs)-1]
}

func (t *logicalTrade) totalPnL() float64 {
	var sum float64
	for _, leg := range t.legs {
		sum += leg.NetPnL
	}
	return sum
}

// closed сообщает, что сделка закрыта полностью (последний участок не частичный TP1)
func (t *logicalTrade) closed() bool {
	return t.finalLeg().ExitReason != models.ExitTP1
}

// groupTrades собирает участки в логические сделки, сохраняя порядок
// первого появления
func groupTrades(records []*models.TradeRecord) []*logicalTrade {
	index := make(map[string]*logicalTrade)
	var trades []*logicalTrade
	for _, r := range records {
		t, ok := index[r.SignalID]
		if !ok {
			t = &logicalTrade{}
			index[r.SignalID] = t
			trades = append(trades, t)
		}
		t.legs = append(t.legs, r)
	}
	return trades
}

// Summarize считает сводную статистику по леджеру сделок и кривой капитала.
// Чистая детерминированная функция. При нуле закрытых сделок все
// относительные метрики остаются нулями с HasTrades=false, NaN наружу
// не протекает.
func Summarize(records []*models.TradeRecord, equity []models.EquityPoint, initialCapital float64) *models.Report {
	report := &models.Report{
		InitialCapital: initialCapital,
		FinalBalance:   initialCapital,
	}
	if len(equity) > 0 {
		report.FinalBalance = equity[len(equity)-1].Balance
	}
	if initialCapital > 0 {
		report.TotalReturn = (report.FinalBalance - initialCapital) / initialCapital * 100
	}

	report.MaxDrawdown = maxDrawdown(equity)
	report.SharpeRatio, report.SortinoRatio = riskAdjustedReturns(equity)

	for _, r := range records {
		report.TotalFees += r.Fees
	}

	trades := groupTrades(records)
	var closed []*logicalTrade
	for _, t := range trades {
		if t.closed() {
			closed = append(closed, t)
		}
	}
	if len(closed) == 0 {
		return report
	}

	report.HasTrades = true
	report.TotalTrades = len(closed)

	var totalDuration time.Duration
	var tp1First, stopFirst int
	winStreak, lossStreak := 0, 0

	for _, t := range closed {
		// Победа определяется по последнему закрывающему участку
		if t.finalLeg().NetPnL > 0 {
			report.WinningTrades++
			winStreak++
			lossStreak = 0
		} else {
			report.LosingTrades++
			lossStreak++
			winStreak = 0
		}
		if winStreak > report.LongestWinStreak {
			report.LongestWinStreak = winStreak
		}
		if lossStreak > report.LongestLossStreak {
			report.LongestLossStreak = lossStreak
		}

		pnl := t.totalPnL()
		if pnl > 0 {
			report.GrossProfit += pnl
		} else {
			report.GrossLoss += -pnl
		}

		totalDuration += t.exitTime().Sub(t.entryTime())

		switch t.legs[0].ExitReason {
		case models.ExitTP1:
			tp1First++
		case models.ExitStop:
			stopFirst++
		}
	}

	report.WinRate = float64(report.WinningTrades) / float64(report.TotalTrades) * 100
	if report.GrossLoss > 0 {
		report.ProfitFactor = report.GrossProfit / report.GrossLoss
	}
	report.AvgTradeDuration = totalDuration / time.Duration(report.TotalTrades)
	report.TP1HitRate = float64(tp1First) / float64(report.TotalTrades) * 100
	report.StopOutRate = float64(stopFirst) / float64(report.TotalTrades) * 100

	return report
}

// maxDrawdown считает максимальную просадку от пика до дна в процентах
func maxDrawdown(equity []models.EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range equity {
		if p.Balance > peak {
			peak = p.Balance
		}
		if peak > 0 {
			dd := (peak - p.Balance) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// riskAdjustedReturns считает годовые коэффициенты Шарпа и Сортино по
// периодным доходностям кривой капитала. Частота периодов выводится из
// шага между точками.
func riskAdjustedReturns(equity []models.EquityPoint) (sharpe, sortino float64) {
	if len(equity) < 3 {
		return 0, 0
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Balance
		if prev <= 0 {
			return 0, 0
		}
		returns = append(returns, (equity[i].Balance-prev)/prev)
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance, downVariance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
		if r < 0 {
			downVariance += r * r
		}
	}
	variance /= float64(len(returns))
	downVariance /= float64(len(returns))

	annual := math.Sqrt(periodsPerYear(equity))
	if std := math.Sqrt(variance); std > 0 {
		sharpe = mean / std * annual
	}
	if downStd := math.Sqrt(downVariance); downStd > 0 {
		sortino = mean / downStd * annual
	}
	return sharpe, sortino
}

// periodsPerYear выводит количество периодов в году из шага между точками
// кривой капитала. Берется минимальный положительный шаг: он соответствует
// периоду бара даже при пропусках в данных.
func periodsPerYear(equity []models.EquityPoint) float64 {
	var step time.Duration
	for i := 1; i < len(equity); i++ {
		g := equity[i].Time.Sub(equity[i-1].Time)
		if g > 0 && (step == 0 || g < step) {
			step = g
		}
	}
	if step <= 0 {
		return 0
	}
	return float64(365*24*time.Hour) / float64(step)
}
