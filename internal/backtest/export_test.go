package backtest

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/skalibog/sqlab/pkg/models"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	return rows
}

func TestExportTradesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	trades := []*models.TradeRecord{
		leg("S-1", 0, 2, 75, 1.5, models.ExitTP1),
		leg("S-1", 0, 4, 150, 1.5, models.ExitTP2),
	}

	if err := ExportTradesCSV(path, trades); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "signal_id" || rows[0][len(rows[0])-1] != "exit_reason" {
		t.Errorf("bad header: %v", rows[0])
	}
	if rows[1][0] != "S-1" || rows[1][len(rows[1])-1] != string(models.ExitTP1) {
		t.Errorf("bad first row: %v", rows[1])
	}
	if rows[2][len(rows[2])-1] != string(models.ExitTP2) {
		t.Errorf("bad second row: %v", rows[2])
	}
}

func TestExportEquityCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equity.csv")

	if err := ExportEquityCSV(path, equityCurve(10000, 10075)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 points, got %d", len(rows))
	}
	if rows[1][0] != "2024-01-01T00:00:00Z" || rows[1][1] != "10000" {
		t.Errorf("bad first point: %v", rows[1])
	}
	if rows[2][1] != "10075" {
		t.Errorf("bad second point: %v", rows[2])
	}
}
