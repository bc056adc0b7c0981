package models

import (
	"fmt"
	"time"
)

// Candle представляет свечу OHLCV
type Candle struct {
	Symbol    string
	Timeframe string
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// Series представляет упорядоченный ряд свечей одного таймфрейма.
// Инвариант: метки времени строго возрастают.
type Series struct {
	Symbol    string
	Timeframe string
	Candles   []*Candle
}

// Len возвращает количество свечей в ряду
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Candles)
}

// Last возвращает последнюю свечу ряда или nil, если ряд пуст
func (s *Series) Last() *Candle {
	if s.Len() == 0 {
		return nil
	}
	return s.Candles[len(s.Candles)-1]
}

// Validate проверяет строгую упорядоченность меток времени
func (s *Series) Validate() error {
	for i := 1; i < len(s.Candles); i++ {
		if !s.Candles[i].OpenTime.After(s.Candles[i-1].OpenTime) {
			return fmt.Errorf("нарушен порядок свечей %s/%s: индекс %d (%s не позже %s)",
				s.Symbol, s.Timeframe, i,
				s.Candles[i].OpenTime.Format(time.RFC3339),
				s.Candles[i-1].OpenTime.Format(time.RFC3339))
		}
	}
	return nil
}

// NewsImpact уровень влияния новости
type NewsImpact string

const (
	NewsImpactLow    NewsImpact = "LOW"
	NewsImpactMedium NewsImpact = "MEDIUM"
	NewsImpactHigh   NewsImpact = "HIGH"
)

// NewsEvent представляет новостное событие, поставляемое внешним коллектором
type NewsEvent struct {
	Time   time.Time
	Impact NewsImpact
	Title  string
}

// MarketSnapshot представляет многотаймфреймовый срез рынка на один момент времени.
// Создается заново для каждой оценки и не мутируется.
type MarketSnapshot struct {
	Symbol string
	AsOf   time.Time
	Series map[string]*Series
	News   []NewsEvent
}

// Timeframe возвращает ряд указанного таймфрейма или nil
func (m *MarketSnapshot) Timeframe(label string) *Series {
	if m == nil || m.Series == nil {
		return nil
	}
	return m.Series[label]
}

// Direction направление сделки
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Sign возвращает +1 для лонга и -1 для шорта
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

// Tier уровень качества сигнала
type Tier string

const (
	TierRejected   Tier = "REJECTED"
	TierStandard   Tier = "STANDARD"
	TierElite      Tier = "ELITE"
	TierUltraElite Tier = "ULTRA_ELITE"
)

// CriterionResult представляет результат одной независимой проверки
type CriterionResult struct {
	Name     string
	Group    string
	Passed   bool
	Evidence float64
	Note     string
	// Degraded выставляется, когда расчет критерия упал и проверка
	// засчитана как проваленная, а не как осознанный отказ
	Degraded bool
}

// EvaluationResult представляет совокупный результат батареи критериев
type EvaluationResult struct {
	Symbol        string
	AsOf          time.Time
	Direction     Direction
	Criteria      []CriterionResult
	PassedCount   int
	TotalCount    int
	Tier          Tier
	Confirmations []CriterionResult
	// FailedConfirmations перечисляет подтверждения, из-за которых
	// результат понижен с ULTRA_ELITE до ELITE
	FailedConfirmations []string
}

// Confidence возвращает уверенность 0-100 как долю пройденных критериев
func (e *EvaluationResult) Confidence() float64 {
	if e.TotalCount == 0 {
		return 0
	}
	return float64(e.PassedCount) / float64(e.TotalCount) * 100
}

// Signal представляет полностью определенную кандидатную сделку.
// Инвариант для лонга: StopLoss < Entry < TakeProfit1 < TakeProfit2,
// для шорта зеркально. После создания не изменяется.
type Signal struct {
	ID          string
	Symbol      string
	Direction   Direction
	Entry       float64
	StopLoss    float64
	TakeProfit1 float64
	TakeProfit2 float64
	Confidence  float64
	Tier        Tier
	RiskReward  float64
	CreatedAt   time.Time
}

// Validate проверяет ценовой инвариант сигнала
func (s *Signal) Validate() error {
	switch s.Direction {
	case DirectionLong:
		if !(s.StopLoss < s.Entry && s.Entry < s.TakeProfit1 && s.TakeProfit1 < s.TakeProfit2) {
			return fmt.Errorf("нарушен ценовой инвариант лонга %s: stop=%.8f entry=%.8f tp1=%.8f tp2=%.8f",
				s.ID, s.StopLoss, s.Entry, s.TakeProfit1, s.TakeProfit2)
		}
	case DirectionShort:
		if !(s.StopLoss > s.Entry && s.Entry > s.TakeProfit1 && s.TakeProfit1 > s.TakeProfit2) {
			return fmt.Errorf("нарушен ценовой инвариант шорта %s: stop=%.8f entry=%.8f tp1=%.8f tp2=%.8f",
				s.ID, s.StopLoss, s.Entry, s.TakeProfit1, s.TakeProfit2)
		}
	default:
		return fmt.Errorf("неизвестное направление сигнала %s: %q", s.ID, s.Direction)
	}
	return nil
}

// PositionStatus статус открытой позиции в бэктесте
type PositionStatus string

const (
	PositionOpen            PositionStatus = "OPEN"
	PositionPartiallyClosed PositionStatus = "PARTIALLY_CLOSED"
	PositionClosed          PositionStatus = "CLOSED"
)

// ExitReason причина выхода из позиции
type ExitReason string

const (
	ExitTP1  ExitReason = "TP1"
	ExitTP2  ExitReason = "TP2"
	ExitStop ExitReason = "STOP"
	ExitTime ExitReason = "TIME"
)

// TradeRecord представляет неизменяемую запись одного закрытого (полностью
// или частично) участка позиции
type TradeRecord struct {
	SignalID     string
	Symbol       string
	Direction    Direction
	Tier         Tier
	EntryTime    time.Time
	EntryPrice   float64
	ExitTime     time.Time
	ExitPrice    float64
	Quantity     float64
	SizeFraction float64
	Fees         float64
	NetPnL       float64
	ExitReason   ExitReason
}

// EquityPoint представляет точку кривой капитала
type EquityPoint struct {
	Time    time.Time
	Balance float64
}

// Report представляет сводную статистику бэктеста
type Report struct {
	// HasTrades=false означает, что закрытых сделок не было и все
	// относительные метрики не определены (нули, а не NaN)
	HasTrades bool

	InitialCapital float64
	FinalBalance   float64
	TotalReturn    float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64

	GrossProfit  float64
	GrossLoss    float64
	ProfitFactor float64

	SharpeRatio  float64
	SortinoRatio float64
	MaxDrawdown  float64

	AvgTradeDuration time.Duration

	TP1HitRate  float64
	StopOutRate float64

	LongestWinStreak  int
	LongestLossStreak int

	TotalFees float64
}
