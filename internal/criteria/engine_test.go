package criteria

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/skalibog/sqlab/internal/config"
	"github.com/skalibog/sqlab/internal/indicators"
	"github.com/skalibog/sqlab/pkg/models"
)

// makeSeries строит синтетический ряд свечей с шагом таймфрейма
func makeSeries(symbol, tf string, n int, price func(i int) float64) *models.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dur := indicators.TimeframeDuration(tf)
	series := &models.Series{Symbol: symbol, Timeframe: tf}
	for i := 0; i < n; i++ {
		p := price(i)
		series.Candles = append(series.Candles, &models.Candle{
			Symbol:    symbol,
			Timeframe: tf,
			OpenTime:  start.Add(time.Duration(i) * dur),
			Open:      p,
			High:      p,
			Low:       p,
			Close:     p,
			Volume:    1000,
			CloseTime: start.Add(time.Duration(i+1) * dur),
		})
	}
	return series
}

// flatSnapshot строит снимок без движения цены на всех требуемых таймфреймах
func flatSnapshot(cfg config.CriteriaConfig) *models.MarketSnapshot {
	flat := func(int) float64 { return 100 }
	snapshot := &models.MarketSnapshot{
		Symbol: "TESTUSDT",
		AsOf:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Series: make(map[string]*models.Series),
	}
	for _, tf := range cfg.Timeframes.All() {
		n := cfg.MinBars[tf] + 10
		snapshot.Series[tf] = makeSeries("TESTUSDT", tf, n, flat)
	}
	return snapshot
}

func TestEvaluate_FlatMarketRejected(t *testing.T) {
	cfg := config.DefaultCriteria()
	engine := NewEngine(cfg)

	eval, err := engine.Evaluate(flatSnapshot(cfg), config.DefaultProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.TotalCount != 20 {
		t.Fatalf("expected 20 criteria, got %d", eval.TotalCount)
	}
	if eval.PassedCount >= cfg.StandardMin {
		t.Fatalf("flat market passed too many criteria: %d", eval.PassedCount)
	}
	if eval.Tier != models.TierRejected {
		t.Errorf("expected REJECTED, got %s", eval.Tier)
	}
	// Подтверждающая батарея не вызывается ниже порога ULTRA_ELITE
	if len(eval.Confirmations) != 0 {
		t.Errorf("confirmations must not run for %s", eval.Tier)
	}
}

func TestEvaluate_CriteriaNeverShortCircuit(t *testing.T) {
	cfg := config.DefaultCriteria()
	engine := NewEngine(cfg)

	eval, err := engine.Evaluate(flatSnapshot(cfg), config.DefaultProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// На вырожденных данных часть критериев деградирует, но батарея
	// обязана отработать целиком
	if len(eval.Criteria) != eval.TotalCount {
		t.Fatalf("expected %d results, got %d", eval.TotalCount, len(eval.Criteria))
	}
	degraded := 0
	for _, c := range eval.Criteria {
		if c.Degraded {
			degraded++
			if c.Passed {
				t.Errorf("degraded criterion %s must be recorded as failed", c.Name)
			}
			if c.Note == "" {
				t.Errorf("degraded criterion %s must carry an evidence note", c.Name)
			}
		}
	}
	if degraded == 0 {
		t.Error("expected at least one degraded criterion on degenerate data")
	}
}

func TestEvaluate_MissingTimeframe(t *testing.T) {
	cfg := config.DefaultCriteria()
	engine := NewEngine(cfg)

	snapshot := flatSnapshot(cfg)
	delete(snapshot.Series, cfg.Timeframes.Higher)

	_, err := engine.Evaluate(snapshot, config.DefaultProfile())
	if !errors.Is(err, ErrMissingTimeframe) {
		t.Fatalf("expected ErrMissingTimeframe, got %v", err)
	}
}

func TestEvaluate_InsufficientHistory(t *testing.T) {
	cfg := config.DefaultCriteria()
	engine := NewEngine(cfg)

	snapshot := flatSnapshot(cfg)
	primary := snapshot.Series[cfg.Timeframes.Primary]
	primary.Candles = primary.Candles[:cfg.MinBars[cfg.Timeframes.Primary]-1]

	_, err := engine.Evaluate(snapshot, config.DefaultProfile())
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestEvaluate_MalformedSeries(t *testing.T) {
	cfg := config.DefaultCriteria()
	engine := NewEngine(cfg)

	snapshot := flatSnapshot(cfg)
	primary := snapshot.Series[cfg.Timeframes.Primary]
	// Ломаем хронологию: дублируем метку времени
	primary.Candles[5].OpenTime = primary.Candles[4].OpenTime

	_, err := engine.Evaluate(snapshot, config.DefaultProfile())
	if !errors.Is(err, ErrMalformedSeries) {
		t.Fatalf("expected ErrMalformedSeries, got %v", err)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	cfg := config.DefaultCriteria()
	engine := NewEngine(cfg)
	snapshot := flatSnapshot(cfg)
	profile := config.DefaultProfile()

	first, err := engine.Evaluate(snapshot, profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := engine.Evaluate(snapshot, profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated evaluation of the same snapshot must be identical")
	}
}

func TestEvaluate_UltraEliteDowngradeOnFailedConfirmation(t *testing.T) {
	// Нулевые пороги загоняют любой результат на порог ULTRA_ELITE,
	// чтобы проверить нулевую толерантность подтверждающей батареи
	cfg := config.DefaultCriteria()
	cfg.StandardMin = 0
	cfg.EliteMin = 0
	cfg.UltraEliteMin = 0
	engine := NewEngine(cfg)

	eval, err := engine.Evaluate(flatSnapshot(cfg), config.DefaultProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eval.Confirmations) != 5 {
		t.Fatalf("expected 5 confirmations, got %d", len(eval.Confirmations))
	}
	if eval.Tier != models.TierElite {
		t.Errorf("failed confirmations must downgrade to ELITE, got %s", eval.Tier)
	}
	if len(eval.FailedConfirmations) == 0 {
		t.Error("downgrade must record which confirmations failed")
	}
}

func TestEvaluate_TierIsConsistentWithConfirmations(t *testing.T) {
	cfg := config.DefaultCriteria()
	cfg.StandardMin = 0
	cfg.EliteMin = 0
	cfg.UltraEliteMin = 0
	engine := NewEngine(cfg)

	eval, err := engine.Evaluate(flatSnapshot(cfg), config.DefaultProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Tier == models.TierUltraElite {
		for _, c := range eval.Confirmations {
			if !c.Passed {
				t.Fatalf("ULTRA_ELITE with failed confirmation %s", c.Name)
			}
		}
	}
}

func TestInferDirection(t *testing.T) {
	cfg := config.DefaultCriteria()

	down := flatSnapshot(cfg)
	tf := cfg.Timeframes.Primary
	down.Series[tf] = makeSeries("TESTUSDT", tf, cfg.MinBars[tf]+10, func(i int) float64 {
		return 1000 - float64(i)
	})

	ctx := &evalContext{cfg: cfg, snapshot: down}
	if dir := inferDirection(ctx); dir != models.DirectionShort {
		t.Errorf("expected SHORT for downtrend, got %s", dir)
	}

	ctx.snapshot = flatSnapshot(cfg)
	if dir := inferDirection(ctx); dir != models.DirectionLong {
		t.Errorf("expected LONG default for flat market, got %s", dir)
	}
}
