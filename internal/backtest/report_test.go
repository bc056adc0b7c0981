package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/skalibog/sqlab/pkg/models"
)

// leg строит одну запись леджера; времена разносятся по часам от t0
func leg(signalID string, entryHour, exitHour int, pnl, fees float64, reason models.ExitReason) *models.TradeRecord {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.TradeRecord{
		SignalID:   signalID,
		Symbol:     "TESTUSDT",
		Direction:  models.DirectionLong,
		Tier:       models.TierElite,
		EntryTime:  t0.Add(time.Duration(entryHour) * time.Hour),
		ExitTime:   t0.Add(time.Duration(exitHour) * time.Hour),
		Fees:       fees,
		NetPnL:     pnl,
		ExitReason: reason,
	}
}

func equityCurve(balances ...float64) []models.EquityPoint {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.EquityPoint, len(balances))
	for i, b := range balances {
		points[i] = models.EquityPoint{Time: t0.Add(time.Duration(i) * time.Hour), Balance: b}
	}
	return points
}

func TestSummarize_ZeroTrades(t *testing.T) {
	report := Summarize(nil, equityCurve(10000, 10000, 10000), 10000)

	if report.HasTrades {
		t.Fatal("HasTrades must be false without closed trades")
	}
	if report.TotalTrades != 0 || report.WinningTrades != 0 || report.LosingTrades != 0 {
		t.Errorf("trade counts must be zero: %+v", report)
	}
	// Все относительные метрики нулевые, не NaN
	for name, v := range map[string]float64{
		"WinRate":      report.WinRate,
		"ProfitFactor": report.ProfitFactor,
		"SharpeRatio":  report.SharpeRatio,
		"SortinoRatio": report.SortinoRatio,
		"MaxDrawdown":  report.MaxDrawdown,
		"TotalReturn":  report.TotalReturn,
		"TP1HitRate":   report.TP1HitRate,
		"StopOutRate":  report.StopOutRate,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s is not finite: %v", name, v)
		}
		if v != 0 {
			t.Errorf("%s = %v, want 0 without trades", name, v)
		}
	}
	if report.FinalBalance != 10000 {
		t.Errorf("FinalBalance = %.2f, want 10000", report.FinalBalance)
	}
}

func TestSummarize_GroupsLegsIntoTrades(t *testing.T) {
	// Одна логическая сделка из двух участков и одна стоповая
	records := []*models.TradeRecord{
		leg("S-1", 0, 2, 75, 1, models.ExitTP1),
		leg("S-1", 0, 4, 150, 1, models.ExitTP2),
		leg("S-2", 5, 6, -100, 1, models.ExitStop),
	}
	report := Summarize(records, equityCurve(10000, 10075, 10225, 10125), 10000)

	if !report.HasTrades {
		t.Fatal("expected HasTrades")
	}
	if report.TotalTrades != 2 {
		t.Fatalf("TotalTrades = %d, want 2 logical trades", report.TotalTrades)
	}
	if report.WinningTrades != 1 || report.LosingTrades != 1 {
		t.Errorf("win/loss = %d/%d, want 1/1", report.WinningTrades, report.LosingTrades)
	}
	if math.Abs(report.WinRate-50) > 1e-9 {
		t.Errorf("WinRate = %.2f, want 50", report.WinRate)
	}
	// Валовая прибыль считается по совокупному P&L логической сделки
	if math.Abs(report.GrossProfit-225) > 1e-9 || math.Abs(report.GrossLoss-100) > 1e-9 {
		t.Errorf("gross P/L = %.2f/%.2f, want 225/100", report.GrossProfit, report.GrossLoss)
	}
	if math.Abs(report.ProfitFactor-2.25) > 1e-9 {
		t.Errorf("ProfitFactor = %.4f, want 2.25", report.ProfitFactor)
	}
	if math.Abs(report.TotalFees-3) > 1e-9 {
		t.Errorf("TotalFees = %.2f, want 3", report.TotalFees)
	}
	// Первый участок каждой сделки классифицирует исход
	if math.Abs(report.TP1HitRate-50) > 1e-9 || math.Abs(report.StopOutRate-50) > 1e-9 {
		t.Errorf("TP1/stop rates = %.2f/%.2f, want 50/50", report.TP1HitRate, report.StopOutRate)
	}
	// Длительности: 4ч и 1ч, среднее 2ч30м
	if report.AvgTradeDuration != 2*time.Hour+30*time.Minute {
		t.Errorf("AvgTradeDuration = %v, want 2h30m", report.AvgTradeDuration)
	}
}

func TestSummarize_OpenTradeExcluded(t *testing.T) {
	// Сделка только с участком TP1 еще не закрыта и не попадает в статистику
	records := []*models.TradeRecord{
		leg("S-1", 0, 2, 75, 1.5, models.ExitTP1),
	}
	report := Summarize(records, equityCurve(10000, 10075), 10000)

	if report.HasTrades || report.TotalTrades != 0 {
		t.Fatalf("open trade must not count: %+v", report)
	}
	// Но комиссии уже уплачены и учитываются
	if math.Abs(report.TotalFees-1.5) > 1e-9 {
		t.Errorf("TotalFees = %.2f, want 1.5", report.TotalFees)
	}
}

func TestSummarize_Streaks(t *testing.T) {
	records := []*models.TradeRecord{
		leg("S-1", 0, 1, 50, 0, models.ExitTP2),
		leg("S-2", 2, 3, 60, 0, models.ExitTP2),
		leg("S-3", 4, 5, 70, 0, models.ExitTP2),
		leg("S-4", 6, 7, -30, 0, models.ExitStop),
		leg("S-5", 8, 9, -30, 0, models.ExitStop),
		leg("S-6", 10, 11, 40, 0, models.ExitTP2),
	}
	report := Summarize(records, equityCurve(10000, 10050, 10110, 10180, 10150, 10120, 10160), 10000)

	if report.LongestWinStreak != 3 {
		t.Errorf("LongestWinStreak = %d, want 3", report.LongestWinStreak)
	}
	if report.LongestLossStreak != 2 {
		t.Errorf("LongestLossStreak = %d, want 2", report.LongestLossStreak)
	}
}

func TestMaxDrawdown(t *testing.T) {
	// Пик 11000, дно 9900: просадка (11000-9900)/11000 = 10%
	dd := maxDrawdown(equityCurve(10000, 11000, 9900, 10500))
	if math.Abs(dd-10) > 1e-9 {
		t.Errorf("maxDrawdown = %.4f, want 10", dd)
	}

	if dd := maxDrawdown(equityCurve(10000, 10100, 10200)); dd != 0 {
		t.Errorf("monotone equity must have zero drawdown, got %.4f", dd)
	}

	if dd := maxDrawdown(nil); dd != 0 {
		t.Errorf("empty curve must have zero drawdown, got %.4f", dd)
	}
}

func TestRiskAdjustedReturns(t *testing.T) {
	// Переменные доходности с отрицательным периодом: оба коэффициента
	// конечны, Сортино не меньше Шарпа при преобладании роста
	sharpe, sortino := riskAdjustedReturns(equityCurve(10000, 10200, 10100, 10400, 10600))
	if math.IsNaN(sharpe) || math.IsNaN(sortino) {
		t.Fatalf("ratios must be finite: sharpe=%v sortino=%v", sharpe, sortino)
	}
	if sharpe <= 0 || sortino <= 0 {
		t.Errorf("growing curve must have positive ratios: sharpe=%.4f sortino=%.4f", sharpe, sortino)
	}

	// Плоская кривая: нулевая дисперсия, нулевые коэффициенты
	sharpe, sortino = riskAdjustedReturns(equityCurve(10000, 10000, 10000, 10000))
	if sharpe != 0 || sortino != 0 {
		t.Errorf("flat curve ratios = %.4f/%.4f, want 0/0", sharpe, sortino)
	}

	// Слишком короткая кривая
	sharpe, sortino = riskAdjustedReturns(equityCurve(10000, 10100))
	if sharpe != 0 || sortino != 0 {
		t.Errorf("short curve ratios = %.4f/%.4f, want 0/0", sharpe, sortino)
	}
}

func TestPeriodsPerYear(t *testing.T) {
	// Часовые бары: 8760 периодов в году даже при пропуске в данных
	points := equityCurve(10000, 10010, 10020)
	points = append(points, models.EquityPoint{
		Time:    points[2].Time.Add(5 * time.Hour), // разрыв в данных
		Balance: 10030,
	})
	got := periodsPerYear(points)
	if math.Abs(got-8760) > 1e-9 {
		t.Errorf("periodsPerYear = %.2f, want 8760", got)
	}
}
