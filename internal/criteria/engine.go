package criteria

import (
	"errors"
	"fmt"

	"github.com/skalibog/sqlab/internal/config"
	"github.com/skalibog/sqlab/internal/indicators"
	"github.com/skalibog/sqlab/pkg/logger"
	"github.com/skalibog/sqlab/pkg/models"
	"go.uber.org/zap"
)

// Ошибки валидации входных данных. Фатальны для всей оценки.
var (
	ErrMissingTimeframe    = errors.New("отсутствует требуемый таймфрейм")
	ErrInsufficientHistory = errors.New("недостаточная глубина истории")
	ErrMalformedSeries     = errors.New("нарушен порядок свечей в ряду")
)

// Engine реализует движок оценки по батарее критериев.
// Никакого состояния между вызовами: повторная оценка того же
// снимка дает идентичный результат.
type Engine struct {
	cfg config.CriteriaConfig
}

// NewEngine создает новый движок оценки критериев
func NewEngine(cfg config.CriteriaConfig) *Engine {
	return &Engine{cfg: cfg}
}

// evalContext собирает все, что нужно отдельным проверкам:
// снимок рынка, профиль актива и гипотезу направления
type evalContext struct {
	cfg       config.CriteriaConfig
	profile   config.AssetProfile
	snapshot  *models.MarketSnapshot
	direction models.Direction
}

// entry, primary, higher, daily возвращают свечи соответствующих таймфреймов
func (c *evalContext) entry() []*models.Candle {
	return c.snapshot.Series[c.cfg.Timeframes.Entry].Candles
}

func (c *evalContext) primary() []*models.Candle {
	return c.snapshot.Series[c.cfg.Timeframes.Primary].Candles
}

func (c *evalContext) higher() []*models.Candle {
	return c.snapshot.Series[c.cfg.Timeframes.Higher].Candles
}

func (c *evalContext) daily() []*models.Candle {
	return c.snapshot.Series[c.cfg.Timeframes.Daily].Candles
}

// lastClose возвращает цену закрытия последней свечи основного таймфрейма
func (c *evalContext) lastClose() float64 {
	candles := c.primary()
	return candles[len(candles)-1].Close
}

// criterion описывает одну независимую проверку батареи
type criterion struct {
	Name  string
	Group string
	Check func(*evalContext) (bool, float64, string, error)
}

// Evaluate оценивает снимок рынка по полной батарее критериев и
// классифицирует результат по уровням. Чистая функция своих аргументов.
func (e *Engine) Evaluate(snapshot *models.MarketSnapshot, profile config.AssetProfile) (*models.EvaluationResult, error) {
	if err := e.validate(snapshot); err != nil {
		return nil, err
	}

	ctx := &evalContext{
		cfg:      e.cfg,
		profile:  profile,
		snapshot: snapshot,
	}
	ctx.direction = inferDirection(ctx)

	result := &models.EvaluationResult{
		Symbol:    snapshot.Symbol,
		AsOf:      snapshot.AsOf,
		Direction: ctx.direction,
	}

	// Каждый критерий считается независимо: провал или ошибка одного
	// никогда не прерывает остальные: решение принимает суммарный счет
	for _, cr := range battery() {
		result.Criteria = append(result.Criteria, runCriterion(cr, ctx))
	}
	for _, r := range result.Criteria {
		if r.Passed {
			result.PassedCount++
		}
	}
	result.TotalCount = len(result.Criteria)

	result.Tier = e.mapTier(result.PassedCount)

	// Подтверждающая батарея вызывается только при достижении порога
	// ULTRA_ELITE; частичного зачета нет, одна проваленная проверка
	// понижает результат до ELITE
	if result.Tier == models.TierUltraElite {
		for _, cr := range confirmations() {
			res := runCriterion(cr, ctx)
			result.Confirmations = append(result.Confirmations, res)
			if !res.Passed {
				result.FailedConfirmations = append(result.FailedConfirmations, res.Name)
			}
		}
		if len(result.FailedConfirmations) > 0 {
			result.Tier = models.TierElite
		}
	}

	return result, nil
}

// validate проверяет наличие таймфреймов, глубину истории и порядок свечей
func (e *Engine) validate(snapshot *models.MarketSnapshot) error {
	for _, tf := range e.cfg.Timeframes.All() {
		series, ok := snapshot.Series[tf]
		if !ok || series == nil {
			return fmt.Errorf("%w: %s (%s)", ErrMissingTimeframe, tf, snapshot.Symbol)
		}
		if err := series.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedSeries, err)
		}
		if min, ok := e.cfg.MinBars[tf]; ok && series.Len() < min {
			return fmt.Errorf("%w: %s имеет %d свечей, требуется %d",
				ErrInsufficientHistory, tf, series.Len(), min)
		}
	}
	return nil
}

// mapTier отображает количество пройденных критериев в уровень
func (e *Engine) mapTier(passed int) models.Tier {
	switch {
	case passed >= e.cfg.UltraEliteMin:
		return models.TierUltraElite
	case passed >= e.cfg.EliteMin:
		return models.TierElite
	case passed >= e.cfg.StandardMin:
		return models.TierStandard
	default:
		return models.TierRejected
	}
}

// runCriterion выполняет одну проверку с локальным восстановлением:
// ошибка расчета деградирует критерий в провал с пометкой, а не
// прерывает батарею
func runCriterion(cr criterion, ctx *evalContext) models.CriterionResult {
	passed, evidence, note, err := cr.Check(ctx)
	if err != nil {
		logger.Warn("Критерий деградирован из-за ошибки расчета",
			zap.String("criterion", cr.Name),
			zap.String("symbol", ctx.snapshot.Symbol),
			zap.Error(err))
		return models.CriterionResult{
			Name:     cr.Name,
			Group:    cr.Group,
			Passed:   false,
			Note:     fmt.Sprintf("ошибка расчета: %v", err),
			Degraded: true,
		}
	}
	return models.CriterionResult{
		Name:     cr.Name,
		Group:    cr.Group,
		Passed:   passed,
		Evidence: evidence,
		Note:     note,
	}
}

// inferDirection определяет гипотезу направления по положению цены
// относительно SMA200 основного таймфрейма
func inferDirection(ctx *evalContext) models.Direction {
	closes := indicators.Closes(ctx.primary())
	sma, err := indicators.SMA(closes, 200)
	if err != nil || closes[len(closes)-1] >= sma {
		return models.DirectionLong
	}
	return models.DirectionShort
}
