package marketdata

import (
	"testing"
	"time"

	"github.com/skalibog/sqlab/internal/config"
	"github.com/skalibog/sqlab/pkg/models"
)

func minuteBars15(n int, start time.Time) []*models.Candle {
	candles := make([]*models.Candle, n)
	for i := range candles {
		base := 100 + float64(i)
		candles[i] = &models.Candle{
			Symbol:    "TESTUSDT",
			Timeframe: "15m",
			OpenTime:  start.Add(time.Duration(i) * 15 * time.Minute),
			Open:      base,
			High:      base + 1,
			Low:       base - 1,
			Close:     base + 0.5,
			Volume:    100,
			CloseTime: start.Add(time.Duration(i+1) * 15 * time.Minute),
		}
	}
	return candles
}

func TestResample_15mTo1h(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := &models.Series{Symbol: "TESTUSDT", Timeframe: "15m", Candles: minuteBars15(8, start)}

	out, err := Resample(series, "1h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Candles) != 2 {
		t.Fatalf("expected 2 hourly bars from 8 quarter bars, got %d", len(out.Candles))
	}

	first := out.Candles[0]
	// Бакет 00:00 собирает бары 0..3: open первого, close последнего,
	// экстремумы и сумма объемов по всем четырем
	if !first.OpenTime.Equal(start) {
		t.Errorf("first bucket OpenTime = %v, want %v", first.OpenTime, start)
	}
	if first.Open != 100 {
		t.Errorf("first bucket Open = %.2f, want 100", first.Open)
	}
	if first.Close != 103.5 {
		t.Errorf("first bucket Close = %.2f, want 103.5", first.Close)
	}
	if first.High != 104 || first.Low != 99 {
		t.Errorf("first bucket High/Low = %.2f/%.2f, want 104/99", first.High, first.Low)
	}
	if first.Volume != 400 {
		t.Errorf("first bucket Volume = %.2f, want 400", first.Volume)
	}
	if first.Timeframe != "1h" {
		t.Errorf("bucket Timeframe = %q, want 1h", first.Timeframe)
	}
}

func TestResample_PartialLastBucket(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// 5 баров по 15 минут: полный час плюс один бар следующего часа
	series := &models.Series{Symbol: "TESTUSDT", Timeframe: "15m", Candles: minuteBars15(5, start)}

	out, err := Resample(series, "1h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Candles) != 2 {
		t.Fatalf("partial bucket must be included, got %d bars", len(out.Candles))
	}
	last := out.Candles[1]
	if last.Volume != 100 {
		t.Errorf("partial bucket Volume = %.2f, want one source bar (100)", last.Volume)
	}
}

func TestResample_SameTimeframePassThrough(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := &models.Series{Symbol: "TESTUSDT", Timeframe: "15m", Candles: minuteBars15(4, start)}

	out, err := Resample(series, "15m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Candles) != 4 {
		t.Fatalf("pass-through must keep all bars, got %d", len(out.Candles))
	}
}

func TestResample_DownscaleRejected(t *testing.T) {
	series := &models.Series{Symbol: "TESTUSDT", Timeframe: "1h"}
	if _, err := Resample(series, "15m"); err == nil {
		t.Fatal("expected error when aggregating into a smaller timeframe")
	}
}

func TestSnapshotFromHistory(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	history := minuteBars15(8*96, start) // 96 баров в сутках

	tfs := config.TimeframesConfig{Entry: "15m", Primary: "1h", Higher: "4h", Daily: "1d"}
	news := []models.NewsEvent{{Title: "CPI", Impact: models.NewsImpactHigh, Time: start}}

	snapshot, err := SnapshotFromHistory("TESTUSDT", history, "15m", tfs, news)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Symbol != "TESTUSDT" {
		t.Errorf("Symbol = %q", snapshot.Symbol)
	}
	if !snapshot.AsOf.Equal(history[len(history)-1].OpenTime) {
		t.Errorf("AsOf = %v, want last bar open time", snapshot.AsOf)
	}
	if len(snapshot.News) != 1 {
		t.Errorf("news must be carried into the snapshot")
	}

	for tf, wantBars := range map[string]int{"15m": 768, "1h": 192, "4h": 48, "1d": 8} {
		series := snapshot.Timeframe(tf)
		if series.Len() != wantBars {
			t.Errorf("timeframe %s: %d bars, want %d", tf, series.Len(), wantBars)
		}
		if err := series.Validate(); err != nil {
			t.Errorf("timeframe %s: resampled series malformed: %v", tf, err)
		}
	}

	if _, err := SnapshotFromHistory("TESTUSDT", nil, "15m", tfs, nil); err == nil {
		t.Error("expected error for empty history")
	}
}
