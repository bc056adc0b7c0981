package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/skalibog/sqlab/pkg/models"
)

// ExportTradesCSV выгружает леджер сделок в плоский CSV-файл для
// внешней отчетности
func ExportTradesCSV(path string, trades []*models.TradeRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ошибка создания файла леджера: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{
		"signal_id", "symbol", "direction", "tier",
		"entry_time", "entry_price", "exit_time", "exit_price",
		"quantity", "size_fraction", "fees", "net_pnl", "exit_reason",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("ошибка записи заголовка леджера: %w", err)
	}

	for _, t := range trades {
		row := []string{
			t.SignalID,
			t.Symbol,
			string(t.Direction),
			string(t.Tier),
			t.EntryTime.UTC().Format(time.RFC3339),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			t.ExitTime.UTC().Format(time.RFC3339),
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			strconv.FormatFloat(t.SizeFraction, 'f', -1, 64),
			strconv.FormatFloat(t.Fees, 'f', -1, 64),
			strconv.FormatFloat(t.NetPnL, 'f', -1, 64),
			string(t.ExitReason),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("ошибка записи строки леджера: %w", err)
		}
	}

	return nil
}

// ExportEquityCSV выгружает кривую капитала в CSV-файл
func ExportEquityCSV(path string, equity []models.EquityPoint) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ошибка создания файла кривой капитала: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"time", "balance"}); err != nil {
		return fmt.Errorf("ошибка записи заголовка кривой: %w", err)
	}
	for _, p := range equity {
		row := []string{
			p.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(p.Balance, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("ошибка записи точки кривой: %w", err)
		}
	}

	return nil
}
