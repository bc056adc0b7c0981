package backtest

import (
	"context"
	"runtime"

	"github.com/skalibog/sqlab/internal/config"
	"github.com/skalibog/sqlab/pkg/logger"
	"github.com/skalibog/sqlab/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SweepVariant описывает один вариант перебора параметров: своя конфигурация
// движка и своя стратегия
type SweepVariant struct {
	Name     string
	Config   config.BacktestConfig
	Strategy Strategy
}

// SweepResult содержит результат одного варианта перебора
type SweepResult struct {
	Name   string
	Result *Result
	Report *models.Report
}

// Sweep прогоняет независимые бэктесты параллельно. У каждого прогона
// свое состояние позиции и свой леджер, общего изменяемого состояния нет,
// поэтому параллелизм безопасен.
func Sweep(ctx context.Context, series *models.Series, variants []SweepVariant) ([]SweepResult, error) {
	results := make([]SweepResult, len(variants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, v := range variants {
		i, v := i, v
		g.Go(func() error {
			engine := NewEngine(v.Config)
			res, err := engine.Run(gctx, series, v.Strategy)
			if err != nil {
				return err
			}
			results[i] = SweepResult{
				Name:   v.Name,
				Result: res,
				Report: Summarize(res.Trades, res.Equity, v.Config.InitialCapital),
			}
			logger.Debug("Вариант перебора завершен",
				zap.String("variant", v.Name),
				zap.Float64("final_balance", res.FinalBalance()))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
