package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/skalibog/sqlab/internal/backtest"
	"github.com/skalibog/sqlab/internal/config"
	"github.com/skalibog/sqlab/internal/criteria"
	"github.com/skalibog/sqlab/internal/exchange"
	"github.com/skalibog/sqlab/internal/marketdata"
	sig "github.com/skalibog/sqlab/internal/signal"
	"github.com/skalibog/sqlab/internal/storage"
	"github.com/skalibog/sqlab/internal/ui"
	"github.com/skalibog/sqlab/pkg/logger"
	"github.com/skalibog/sqlab/pkg/models"
	"go.uber.org/zap"
)

func main() {
	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	mode := flag.String("mode", "backtest", "режим работы: evaluate | backtest | sweep")
	symbol := flag.String("symbol", "BTCUSDT", "торговый символ")
	candlesPath := flag.String("candles", "", "CSV-файл свечей для бэктеста (иначе загрузка с биржи)")
	exportPrefix := flag.String("export", "", "префикс CSV-файлов результата (леджер и кривая капитала)")
	flag.Parse()

	logger.Init(true)
	defer logger.GetLogger().Sync()

	// Проверяем наличие файла конфигурации
	logger.Info("Проверка наличия файла конфигурации", zap.String("path", *configPath))
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		logger.Fatal("Файл конфигурации не найден", zap.String("path", *configPath))
	}

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	// Создаем контекст с отменой по сигналам завершения
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nЗавершение работы...")
		cancel()
	}()

	// Хранилище опционально: без него результаты остаются в CSV/логах
	var store storage.Storage
	if cfg.Storage.URL != "" {
		store, err = storage.NewInfluxDBStorage(cfg.Storage)
		if err != nil {
			logger.Fatal("Ошибка инициализации хранилища", zap.Error(err))
		}
		defer store.Close()
	}

	profile := cfg.Profile(*symbol)
	engine := criteria.NewEngine(cfg.Criteria)
	assembler := sig.NewAssembler(cfg.Signal, cfg.Criteria.Timeframes.Primary, sig.NewIDGenerator("SQL"))

	switch *mode {
	case "evaluate":
		runEvaluate(ctx, cfg, store, engine, assembler, profile, *symbol)
	case "backtest":
		runBacktest(ctx, cfg, store, engine, assembler, profile, *symbol, *candlesPath, *exportPrefix)
	case "sweep":
		runSweep(ctx, cfg, store, engine, profile, *symbol, *candlesPath)
	default:
		logger.Fatal("Неизвестный режим", zap.String("mode", *mode))
	}
}

// runEvaluate оценивает текущий срез рынка и собирает сигнал
func runEvaluate(ctx context.Context, cfg *config.Config, store storage.Storage, engine *criteria.Engine, assembler *sig.Assembler, profile config.AssetProfile, symbol string) {
	client := exchange.NewBinanceClient(cfg.Binance)

	snapshot, err := client.GetSnapshot(ctx, symbol, cfg.Criteria.Timeframes.All(), 300)
	if err != nil {
		logger.Fatal("Ошибка загрузки снимка рынка", zap.Error(err))
	}

	// Загруженная история сохраняется для последующих запусков
	if store != nil {
		for _, tf := range cfg.Criteria.Timeframes.All() {
			if series := snapshot.Timeframe(tf); series != nil {
				if err := store.SaveCandles(ctx, series.Candles); err != nil {
					logger.Warn("Не удалось сохранить свечи", zap.String("timeframe", tf), zap.Error(err))
				}
			}
		}
	}

	eval, err := engine.Evaluate(snapshot, profile)
	if err != nil {
		logger.Fatal("Ошибка оценки", zap.Error(err))
	}

	logger.Info("Оценка завершена",
		zap.String("symbol", symbol),
		zap.String("tier", string(eval.Tier)),
		zap.String("direction", string(eval.Direction)),
		zap.Int("passed", eval.PassedCount),
		zap.Int("total", eval.TotalCount),
		zap.Strings("failed_confirmations", eval.FailedConfirmations))

	signal, err := assembler.Assemble(eval, snapshot, profile)
	if err != nil {
		logger.Fatal("Ошибка сборки сигнала", zap.Error(err))
	}
	if signal == nil {
		logger.Info("Сигнал не собран: уровень ниже минимального или не выдержан R:R")
		return
	}

	logger.Info("Сигнал собран",
		zap.String("id", signal.ID),
		zap.String("direction", string(signal.Direction)),
		zap.Float64("entry", signal.Entry),
		zap.Float64("stop", signal.StopLoss),
		zap.Float64("tp1", signal.TakeProfit1),
		zap.Float64("tp2", signal.TakeProfit2),
		zap.Float64("confidence", signal.Confidence))

	if store != nil {
		if err := store.SaveSignal(ctx, signal); err != nil {
			logger.Warn("Не удалось сохранить сигнал", zap.Error(err))
		}
	}
}

// runBacktest прогоняет стратегию по историческим свечам
func runBacktest(ctx context.Context, cfg *config.Config, store storage.Storage, engine *criteria.Engine, assembler *sig.Assembler, profile config.AssetProfile, symbol, candlesPath, exportPrefix string) {
	series, err := loadSeries(ctx, cfg, store, symbol, candlesPath)
	if err != nil {
		logger.Fatal("Ошибка загрузки свечей", zap.Error(err))
	}

	strategy := criteriaStrategy(cfg, engine, assembler, profile, symbol, series.Timeframe)

	btEngine := backtest.NewEngine(cfg.Backtest)
	result, err := btEngine.Run(ctx, series, strategy)
	if err != nil {
		logger.Fatal("Ошибка бэктеста", zap.Error(err))
	}

	report := backtest.Summarize(result.Trades, result.Equity, cfg.Backtest.InitialCapital)

	if exportPrefix != "" {
		if err := backtest.ExportTradesCSV(exportPrefix+"_trades.csv", result.Trades); err != nil {
			logger.Warn("Не удалось выгрузить леджер", zap.Error(err))
		}
		if err := backtest.ExportEquityCSV(exportPrefix+"_equity.csv", result.Equity); err != nil {
			logger.Warn("Не удалось выгрузить кривую капитала", zap.Error(err))
		}
	}

	if store != nil {
		runID := uuid.NewString()
		if err := store.SaveTradeRecords(ctx, runID, result.Trades); err != nil {
			logger.Warn("Не удалось сохранить леджер", zap.Error(err))
		}
		if err := store.SaveEquityCurve(ctx, runID, result.Equity); err != nil {
			logger.Warn("Не удалось сохранить кривую капитала", zap.Error(err))
		}
	}

	if cfg.UI.Enabled {
		viewer := ui.NewReportViewer(cfg.UI, report, result.Trades)
		if err := viewer.Start(); err != nil {
			logger.Fatal("Ошибка интерфейса", zap.Error(err))
		}
		return
	}

	logger.Info("Итог бэктеста",
		zap.Bool("has_trades", report.HasTrades),
		zap.Int("trades", report.TotalTrades),
		zap.Float64("win_rate", report.WinRate),
		zap.Float64("profit_factor", report.ProfitFactor),
		zap.Float64("sharpe", report.SharpeRatio),
		zap.Float64("max_drawdown", report.MaxDrawdown),
		zap.Float64("final_balance", report.FinalBalance))
}

// runSweep перебирает варианты параметров симуляции параллельно
func runSweep(ctx context.Context, cfg *config.Config, store storage.Storage, engine *criteria.Engine, profile config.AssetProfile, symbol, candlesPath string) {
	series, err := loadSeries(ctx, cfg, store, symbol, candlesPath)
	if err != nil {
		logger.Fatal("Ошибка загрузки свечей", zap.Error(err))
	}

	var variants []backtest.SweepVariant
	for _, mult := range []float64{1.0, 1.5, 2.0} {
		for _, risk := range []float64{0.005, 0.01, 0.02} {
			sigCfg := cfg.Signal
			sigCfg.ATRMultiplier = mult
			btCfg := cfg.Backtest
			btCfg.RiskPerTrade = risk

			asm := sig.NewAssembler(sigCfg, cfg.Criteria.Timeframes.Primary, sig.NewIDGenerator("SWP"))
			variants = append(variants, backtest.SweepVariant{
				Name:     fmt.Sprintf("atr=%.1f risk=%.3f", mult, risk),
				Config:   btCfg,
				Strategy: criteriaStrategy(cfg, engine, asm, profile, symbol, series.Timeframe),
			})
		}
	}

	results, err := backtest.Sweep(ctx, series, variants)
	if err != nil {
		logger.Fatal("Ошибка перебора параметров", zap.Error(err))
	}

	for _, r := range results {
		logger.Info("Вариант перебора",
			zap.String("variant", r.Name),
			zap.Int("trades", r.Report.TotalTrades),
			zap.Float64("win_rate", r.Report.WinRate),
			zap.Float64("final_balance", r.Report.FinalBalance))
	}
}

// loadSeries берет свечи из CSV-файла или с биржи сквозь хранилище
func loadSeries(ctx context.Context, cfg *config.Config, store storage.Storage, symbol, candlesPath string) (*models.Series, error) {
	if candlesPath != "" {
		return marketdata.LoadSeriesCSV(candlesPath, symbol, cfg.Criteria.Timeframes.Entry)
	}

	client := exchange.NewBinanceClient(cfg.Binance)
	return marketdata.LoadSeriesCached(ctx, store, client, symbol, cfg.Criteria.Timeframes.Entry, 1500)
}

// criteriaStrategy оборачивает движок критериев и сборщик сигналов в
// стратегию бэктеста. Недостаточная глубина истории в начале ряда
// считается штатным отсутствием сигнала, а не ошибкой прогона.
func criteriaStrategy(cfg *config.Config, engine *criteria.Engine, assembler *sig.Assembler, profile config.AssetProfile, symbol, baseTimeframe string) backtest.Strategy {
	return func(history []*models.Candle) (*models.Signal, error) {
		snapshot, err := marketdata.SnapshotFromHistory(symbol, history, baseTimeframe, cfg.Criteria.Timeframes, nil)
		if err != nil {
			return nil, err
		}

		eval, err := engine.Evaluate(snapshot, profile)
		if errors.Is(err, criteria.ErrInsufficientHistory) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		return assembler.Assemble(eval, snapshot, profile)
	}
}
