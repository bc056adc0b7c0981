package signal

import (
	"fmt"

	"github.com/skalibog/sqlab/internal/config"
	"github.com/skalibog/sqlab/internal/indicators"
	"github.com/skalibog/sqlab/pkg/logger"
	"github.com/skalibog/sqlab/pkg/models"
	"go.uber.org/zap"
)

// Assembler превращает прошедшую оценку в конкретный торговый сигнал:
// вход по последнему закрытию, стоп на волатильностном отступе,
// два тейк-профита на фиксированных кратных риску.
type Assembler struct {
	cfg       config.SignalConfig
	timeframe string
	gen       *IDGenerator
}

// NewAssembler создает сборщик сигналов.
// timeframe задает основной таймфрейм, по которому считаются вход и ATR.
func NewAssembler(cfg config.SignalConfig, timeframe string, gen *IDGenerator) *Assembler {
	return &Assembler{
		cfg:       cfg,
		timeframe: timeframe,
		gen:       gen,
	}
}

// tierRank задает порядок уровней для сравнения с минимальным
var tierRank = map[models.Tier]int{
	models.TierRejected:   0,
	models.TierStandard:   1,
	models.TierElite:      2,
	models.TierUltraElite: 3,
}

// Assemble собирает сигнал из результата оценки.
// Возвращает (nil, nil) как документированный исход «сигнала нет»:
// уровень ниже минимального или нарушено соотношение риск/прибыль.
func (a *Assembler) Assemble(eval *models.EvaluationResult, snapshot *models.MarketSnapshot, profile config.AssetProfile) (*models.Signal, error) {
	if eval.Tier == models.TierRejected {
		return nil, nil
	}
	if tierRank[eval.Tier] < tierRank[models.Tier(a.cfg.MinTier)] {
		return nil, nil
	}

	series := snapshot.Timeframe(a.timeframe)
	if series.Len() == 0 {
		return nil, fmt.Errorf("нет свечей таймфрейма %s для сборки сигнала", a.timeframe)
	}

	atr, err := indicators.ATR(series.Candles, a.cfg.ATRPeriod)
	if err != nil {
		return nil, fmt.Errorf("ошибка расчета ATR для сигнала: %w", err)
	}
	if atr <= 0 {
		return nil, fmt.Errorf("вырожденный ATR (%.8f) для %s", atr, snapshot.Symbol)
	}

	sign := eval.Direction.Sign()
	entry := series.Last().Close
	stop := entry - sign*atr*a.cfg.ATRMultiplier
	risk := sign * (entry - stop)
	tp1 := entry + sign*risk*a.cfg.TP1RiskMultiple
	tp2 := entry + sign*risk*a.cfg.TP2RiskMultiple

	// Соотношение риск/прибыль до TP2 обязано выдерживать минимум профиля.
	// Батарея критериев делает похожую проверку по свинговым уровням, но
	// здесь считаются финальные цены сигнала: расхождение возможно и
	// разрешается отказом от сигнала, а не нарушением контракта
	rr := sign * (tp2 - entry) / risk
	if rr < profile.MinRiskReward {
		logger.Debug("Сигнал отброшен по соотношению риск/прибыль",
			zap.String("symbol", snapshot.Symbol),
			zap.Float64("rr", rr),
			zap.Float64("min_rr", profile.MinRiskReward))
		return nil, nil
	}

	sig := &models.Signal{
		ID:          a.gen.Next(snapshot.AsOf),
		Symbol:      snapshot.Symbol,
		Direction:   eval.Direction,
		Entry:       entry,
		StopLoss:    stop,
		TakeProfit1: tp1,
		TakeProfit2: tp2,
		Confidence:  eval.Confidence(),
		Tier:        eval.Tier,
		RiskReward:  rr,
		CreatedAt:   snapshot.AsOf,
	}

	// Ценовой инвариант проверяется при создании, а не вызывающими ad hoc
	if err := sig.Validate(); err != nil {
		logger.Debug("Сигнал отброшен по ценовому инварианту",
			zap.String("symbol", snapshot.Symbol),
			zap.Error(err))
		return nil, nil
	}

	return sig, nil
}
