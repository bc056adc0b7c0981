package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/skalibog/sqlab/internal/config"
	"github.com/skalibog/sqlab/pkg/logger"
	"github.com/skalibog/sqlab/pkg/models"
	"go.uber.org/zap"
)

// Ошибки симуляции
var (
	// ErrInvalidSignal возвращается, когда стратегия отдает сигнал с
	// нарушенным ценовым инвариантом. Молчаливая симуляция такого
	// сигнала исказила бы всю последующую статистику, поэтому ошибка фатальна
	ErrInvalidSignal = errors.New("некорректный сигнал для симуляции")
	// ErrBarOrder возвращается при нарушении хронологии входного ряда
	ErrBarOrder = errors.New("нарушен порядок баров")
	// ErrEmptySeries возвращается для пустого входного ряда
	ErrEmptySeries = errors.New("пустой входной ряд")
)

// Strategy задает стратегию бэктеста: получает историю баров по бар i
// включительно и возвращает сигнал либо nil
type Strategy func(history []*models.Candle) (*models.Signal, error)

// Result содержит леджер сделок и кривую капитала одного прогона
type Result struct {
	Trades []*models.TradeRecord
	Equity []models.EquityPoint
}

// FinalBalance возвращает последний баланс кривой капитала
func (r *Result) FinalBalance() float64 {
	if len(r.Equity) == 0 {
		return 0
	}
	return r.Equity[len(r.Equity)-1].Balance
}

// Engine реализует движок исполнения бэктеста. Все состояние прогона
// локально одному вызову Run: независимые прогоны безопасно идут параллельно.
type Engine struct {
	cfg config.BacktestConfig
}

// NewEngine создает движок бэктеста
func NewEngine(cfg config.BacktestConfig) *Engine {
	return &Engine{cfg: cfg}
}

// position хранит живое состояние одной симулируемой сделки
type position struct {
	signal       *models.Signal
	entryTime    time.Time
	entryPrice   float64 // цена входа с учетом слиппеджа
	quantity     float64 // исходный размер в единицах актива
	sizeFraction float64 // оставшаяся доля, начинается с 1.0
	stop         float64 // текущий стоп, может быть сдвинут в безубыток
	status       models.PositionStatus
	barsHeld     int
}

// Run прогоняет стратегию по ряду баров строго в хронологическом порядке.
// Одновременно открыта не более одной позиции: новый сигнал при открытой
// позиции игнорируется, это осознанное упрощение, а не ошибка.
func (e *Engine) Run(ctx context.Context, series *models.Series, strategy Strategy) (*Result, error) {
	if series.Len() == 0 {
		return nil, ErrEmptySeries
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBarOrder, err)
	}

	result := &Result{}
	balance := e.cfg.InitialCapital
	var pos *position

	candles := series.Candles
	for i, bar := range candles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if pos != nil {
			pos.barsHeld++
			closed, err := e.processBar(pos, bar, &balance, result)
			if err != nil {
				return nil, err
			}
			if closed {
				pos = nil
			}
		}

		if pos == nil {
			sig, err := strategy(candles[:i+1])
			if err != nil {
				return nil, fmt.Errorf("ошибка стратегии на баре %d: %w", i, err)
			}
			if sig != nil {
				p, err := e.openPosition(sig, bar, balance)
				if err != nil {
					return nil, err
				}
				pos = p
			}
		}

		// Капитал фиксируется на каждом баре независимо от сделок,
		// чтобы кривая оставалась непрерывной и в плоские периоды
		result.Equity = append(result.Equity, models.EquityPoint{
			Time:    bar.OpenTime,
			Balance: balance,
		})
	}

	// Ряд закончился с открытой позицией: принудительный выход по
	// последнему закрытию с причиной TIME
	if pos != nil {
		last := candles[len(candles)-1]
		e.closeLeg(pos, last.OpenTime, last.Close, pos.sizeFraction, models.ExitTime, &balance, result)
		result.Equity[len(result.Equity)-1].Balance = balance
	}

	logger.Info("Бэктест завершен",
		zap.String("symbol", series.Symbol),
		zap.Int("bars", len(candles)),
		zap.Int("trade_legs", len(result.Trades)),
		zap.Float64("final_balance", balance))

	return result, nil
}

// processBar применяет покадровую машину состояний открытой позиции.
// Возвращает true, когда позиция полностью закрыта.
//
// Если диапазон одного бара задевает и стоп, и тейк-профит, первым
// исполняется стоп, консервативное допущение (худший случай для трейдера),
// оптимистичное разрешение не применяется.
func (e *Engine) processBar(pos *position, bar *models.Candle, balance *float64, result *Result) (bool, error) {
	sig := pos.signal
	long := sig.Direction == models.DirectionLong

	stopHit := (long && bar.Low <= pos.stop) || (!long && bar.High >= pos.stop)
	tp1Hit := (long && bar.High >= sig.TakeProfit1) || (!long && bar.Low <= sig.TakeProfit1)
	tp2Hit := (long && bar.High >= sig.TakeProfit2) || (!long && bar.Low <= sig.TakeProfit2)

	switch {
	case stopHit:
		// Стоп первым: закрытие остатка по стоповой цене
		e.closeLeg(pos, bar.OpenTime, pos.stop, pos.sizeFraction, models.ExitStop, balance, result)
		return true, nil

	case tp1Hit && pos.sizeFraction == 1.0:
		// Частичный выход 50% на TP1 и перенос стопа в безубыток
		// (на исходную цену входа сигнала)
		e.closeLeg(pos, bar.OpenTime, sig.TakeProfit1, 0.5, models.ExitTP1, balance, result)
		pos.sizeFraction = 0.5
		pos.stop = sig.Entry
		pos.status = models.PositionPartiallyClosed
		return false, nil

	case tp2Hit && pos.sizeFraction == 0.5:
		// Финальный выход остатка на TP2
		e.closeLeg(pos, bar.OpenTime, sig.TakeProfit2, 0.5, models.ExitTP2, balance, result)
		return true, nil

	case e.cfg.MaxHoldBars > 0 && pos.barsHeld >= e.cfg.MaxHoldBars:
		// Выход по времени по текущему закрытию
		e.closeLeg(pos, bar.OpenTime, bar.Close, pos.sizeFraction, models.ExitTime, balance, result)
		return true, nil
	}

	return false, nil
}

// openPosition открывает позицию по сигналу. Слиппедж сдвигает цену входа
// против трейдера, но никогда не меняет цены срабатывания стопа и тейков.
func (e *Engine) openPosition(sig *models.Signal, bar *models.Candle, balance float64) (*position, error) {
	if err := sig.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}

	riskPerUnit := math.Abs(sig.Entry - sig.StopLoss)
	if riskPerUnit <= 0 || balance <= 0 {
		return nil, fmt.Errorf("%w: нулевой риск на единицу или исчерпан капитал", ErrInvalidSignal)
	}

	slip := sig.Entry * e.cfg.SlippageBps / 10000
	entryPrice := sig.Entry + sig.Direction.Sign()*slip

	quantity := balance * e.cfg.RiskPerTrade / riskPerUnit

	logger.Debug("Открыта позиция",
		zap.String("signal", sig.ID),
		zap.String("direction", string(sig.Direction)),
		zap.Float64("entry", entryPrice),
		zap.Float64("quantity", quantity))

	return &position{
		signal:       sig,
		entryTime:    bar.OpenTime,
		entryPrice:   entryPrice,
		quantity:     quantity,
		sizeFraction: 1.0,
		stop:         sig.StopLoss,
		status:       models.PositionOpen,
	}, nil
}

// closeLeg закрывает долю fraction исходного размера по цене price.
// Комиссия берется с обеих сторон: доля комиссии входа распределяется
// пропорционально закрываемой доле, комиссия выхода по цене выхода.
func (e *Engine) closeLeg(pos *position, at time.Time, price, fraction float64, reason models.ExitReason, balance *float64, result *Result) {
	sig := pos.signal
	legQty := pos.quantity * fraction

	feeRate := e.cfg.FeePercent / 100
	fees := pos.entryPrice*legQty*feeRate + price*legQty*feeRate

	pnl := sig.Direction.Sign()*(price-pos.entryPrice)*legQty - fees
	*balance += pnl

	record := &models.TradeRecord{
		SignalID:     sig.ID,
		Symbol:       sig.Symbol,
		Direction:    sig.Direction,
		Tier:         sig.Tier,
		EntryTime:    pos.entryTime,
		EntryPrice:   pos.entryPrice,
		ExitTime:     at,
		ExitPrice:    price,
		Quantity:     legQty,
		SizeFraction: fraction,
		Fees:         fees,
		NetPnL:       pnl,
		ExitReason:   reason,
	}
	result.Trades = append(result.Trades, record)

	if reason != models.ExitTP1 {
		pos.sizeFraction = 0
		pos.status = models.PositionClosed
	}

	logger.Debug("Закрыт участок позиции",
		zap.String("signal", sig.ID),
		zap.String("reason", string(reason)),
		zap.Float64("price", price),
		zap.Float64("fraction", fraction),
		zap.Float64("pnl", pnl))
}
