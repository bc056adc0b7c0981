package exchange

import (
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/skalibog/sqlab/internal/config"
)

func TestNewBinanceClient_Testnet(t *testing.T) {
	defer func() {
		futures.UseTestnet = false
		binance.UseTestnet = false
	}()

	client := NewBinanceClient(config.BinanceConfig{Testnet: true})
	if client == nil {
		t.Fatal("expected a client")
	}
	// Переключение на testnet идет через пакетные флаги библиотеки
	if !futures.UseTestnet {
		t.Error("futures.UseTestnet must be set for testnet config")
	}
	if !binance.UseTestnet {
		t.Error("binance.UseTestnet must be set for testnet config")
	}
}

func TestNewBinanceClient_Production(t *testing.T) {
	futures.UseTestnet = false
	binance.UseTestnet = false

	NewBinanceClient(config.BinanceConfig{})
	if futures.UseTestnet || binance.UseTestnet {
		t.Error("production config must leave testnet flags untouched")
	}
}

func TestKlineToCandle(t *testing.T) {
	k := &futures.Kline{
		OpenTime:  1704067200000, // 2024-01-01T00:00:00Z в миллисекундах
		Open:      "42000.5",
		High:      "42100.0",
		Low:       "41900.25",
		Close:     "42050.75",
		Volume:    "123.456",
		CloseTime: 1704068099999,
	}

	candle, err := klineToCandle("BTCUSDT", "15m", k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candle.Open != 42000.5 || candle.High != 42100.0 || candle.Low != 41900.25 {
		t.Errorf("bad prices: %+v", candle)
	}
	if candle.Close != 42050.75 || candle.Volume != 123.456 {
		t.Errorf("bad close/volume: %+v", candle)
	}
	if candle.OpenTime.UTC().Format("2006-01-02T15:04:05Z") != "2024-01-01T00:00:00Z" {
		t.Errorf("bad open time: %v", candle.OpenTime)
	}
	if candle.Symbol != "BTCUSDT" || candle.Timeframe != "15m" {
		t.Errorf("bad identity: %s/%s", candle.Symbol, candle.Timeframe)
	}
}

func TestKlineToCandle_BadNumber(t *testing.T) {
	k := &futures.Kline{Open: "не число", High: "1", Low: "1", Close: "1", Volume: "1"}
	if _, err := klineToCandle("BTCUSDT", "15m", k); err == nil {
		t.Fatal("expected error for unparseable kline field")
	}
}
