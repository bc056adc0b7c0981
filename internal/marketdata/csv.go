package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/skalibog/sqlab/internal/indicators"
	"github.com/skalibog/sqlab/pkg/models"
)

// LoadSeriesCSV читает ряд свечей из плоского CSV-файла
// (time,open,high,low,close,volume; время в RFC3339 или unix-секундах).
// Предварительная очистка данных лежит на поставщике файла, здесь
// проверяется только хронологический порядок.
func LoadSeriesCSV(path, symbol, timeframe string) (*models.Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла свечей: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	series := &models.Series{Symbol: symbol, Timeframe: timeframe}
	dur := indicators.TimeframeDuration(timeframe)

	line := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения CSV: %w", err)
		}
		line++
		if line == 1 && row[0] == "time" {
			continue // заголовок
		}
		if len(row) < 6 {
			return nil, fmt.Errorf("строка %d: ожидается 6 колонок, получено %d", line, len(row))
		}

		ts, err := parseTime(row[0])
		if err != nil {
			return nil, fmt.Errorf("строка %d: %w", line, err)
		}
		values := make([]float64, 5)
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("строка %d, колонка %d: %w", line, i+2, err)
			}
			values[i] = v
		}

		series.Candles = append(series.Candles, &models.Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			OpenTime:  ts,
			Open:      values[0],
			High:      values[1],
			Low:       values[2],
			Close:     values[3],
			Volume:    values[4],
			CloseTime: ts.Add(dur),
		})
	}

	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

// parseTime принимает RFC3339 или unix-секунды
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("нераспознанный формат времени: %q", s)
}
