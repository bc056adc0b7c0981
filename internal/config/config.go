package config

import (
	"fmt"
	"os"

	"github.com/skalibog/sqlab/pkg/logger"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Binance  BinanceConfig           `yaml:"binance"`
	Storage  StorageConfig           `yaml:"storage"`
	Criteria CriteriaConfig          `yaml:"criteria"`
	Signal   SignalConfig            `yaml:"signal"`
	Backtest BacktestConfig          `yaml:"backtest"`
	UI       UIConfig                `yaml:"ui"`
	Profiles map[string]AssetProfile `yaml:"profiles"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
}

// StorageConfig настройки хранения данных
type StorageConfig struct {
	Type         string `yaml:"type"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// TimeframesConfig набор таймфреймов, которые требует батарея критериев
type TimeframesConfig struct {
	Entry   string `yaml:"entry"`   // младший таймфрейм входа
	Primary string `yaml:"primary"` // основной рабочий таймфрейм
	Higher  string `yaml:"higher"`  // старший подтверждающий таймфрейм
	Daily   string `yaml:"daily"`   // дневной таймфрейм
}

// All возвращает все требуемые таймфреймы в фиксированном порядке
func (t TimeframesConfig) All() []string {
	return []string{t.Entry, t.Primary, t.Higher, t.Daily}
}

// CriteriaConfig настройки батареи критериев и порогов уровней
type CriteriaConfig struct {
	Timeframes TimeframesConfig `yaml:"timeframes"`

	// Минимальная глубина истории на таймфрейм
	MinBars map[string]int `yaml:"min_bars"`

	// Пороги уровней по количеству пройденных критериев
	StandardMin   int `yaml:"standard_min"`
	EliteMin      int `yaml:"elite_min"`
	UltraEliteMin int `yaml:"ultra_elite_min"`

	// Параметры отдельных проверок
	VolumeRatioMin   float64 `yaml:"volume_ratio_min"`
	VolumeSurgeMin   float64 `yaml:"volume_surge_min"`
	NewsQuietMinutes int     `yaml:"news_quiet_minutes"`
}

// SignalConfig настройки сборки сигнала
type SignalConfig struct {
	ATRPeriod       int     `yaml:"atr_period"`
	ATRMultiplier   float64 `yaml:"atr_multiplier"`
	TP1RiskMultiple float64 `yaml:"tp1_risk_multiple"`
	TP2RiskMultiple float64 `yaml:"tp2_risk_multiple"`
	MinTier         string  `yaml:"min_tier"`
}

// BacktestConfig настройки симуляции
type BacktestConfig struct {
	InitialCapital float64 `yaml:"initial_capital"`
	RiskPerTrade   float64 `yaml:"risk_per_trade"`
	SlippageBps    float64 `yaml:"slippage_bps"`
	FeePercent     float64 `yaml:"fee_percent"`
	MaxHoldBars    int     `yaml:"max_hold_bars"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	Enabled    bool `yaml:"enabled"`
	PageSize   int  `yaml:"page_size"`
	ShowLegs   bool `yaml:"show_legs"`
	Monochrome bool `yaml:"monochrome"`
}

// AssetProfile числовые границы для одного класса активов.
// Пороги задаются конфигурацией, а не константами в коде: одна и та же батарея
// критериев обслуживает крипту, металлы, форекс и индексные фьючерсы.
type AssetProfile struct {
	// Допустимый диапазон годовой волатильности (доли, 0.30 = 30%)
	VolatilityMin float64 `yaml:"volatility_min"`
	VolatilityMax float64 `yaml:"volatility_max"`

	// Более узкий «оптимальный» диапазон для подтверждения ULTRA_ELITE
	OptimalVolatilityMin float64 `yaml:"optimal_volatility_min"`
	OptimalVolatilityMax float64 `yaml:"optimal_volatility_max"`

	// Минимальное соотношение риск/прибыль до TP2
	MinRiskReward float64 `yaml:"min_risk_reward"`

	// Стоимость пункта (для внешней отчетности, ядро не использует)
	PointValue float64 `yaml:"point_value"`
}

// DefaultCriteria возвращает настройки батареи по умолчанию
func DefaultCriteria() CriteriaConfig {
	return CriteriaConfig{
		Timeframes: TimeframesConfig{
			Entry:   "15m",
			Primary: "1h",
			Higher:  "4h",
			Daily:   "1d",
		},
		MinBars: map[string]int{
			"15m": 60,
			"1h":  210,
			"4h":  60,
			"1d":  30,
		},
		StandardMin:      12,
		EliteMin:         17,
		UltraEliteMin:    19,
		VolumeRatioMin:   1.2,
		VolumeSurgeMin:   2.0,
		NewsQuietMinutes: 60,
	}
}

// DefaultSignal возвращает настройки сборщика сигналов по умолчанию
func DefaultSignal() SignalConfig {
	return SignalConfig{
		ATRPeriod:       14,
		ATRMultiplier:   1.5,
		TP1RiskMultiple: 1.5,
		TP2RiskMultiple: 3.0,
		MinTier:         "ELITE",
	}
}

// DefaultBacktest возвращает настройки симуляции по умолчанию
func DefaultBacktest() BacktestConfig {
	return BacktestConfig{
		InitialCapital: 10000,
		RiskPerTrade:   0.01,
		SlippageBps:    5,
		FeePercent:     0.04,
		MaxHoldBars:    0, // 0 = без выхода по времени
	}
}

// DefaultProfile возвращает профиль актива по умолчанию (крипта)
func DefaultProfile() AssetProfile {
	return AssetProfile{
		VolatilityMin:        0.30,
		VolatilityMax:        0.80,
		OptimalVolatilityMin: 0.35,
		OptimalVolatilityMax: 0.65,
		MinRiskReward:        2.0,
		PointValue:           1.0,
	}
}

// Load загружает конфигурацию из файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	config := Config{
		Criteria: DefaultCriteria(),
		Signal:   DefaultSignal(),
		Backtest: DefaultBacktest(),
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}
	if config.Profiles == nil {
		config.Profiles = map[string]AssetProfile{"default": DefaultProfile()}
	}

	logger.Debug("Загружена конфигурация", zap.String("path", path), zap.Any("config", config))

	return &config, nil
}

// Profile возвращает профиль актива для символа или профиль по умолчанию
func (c *Config) Profile(symbol string) AssetProfile {
	if p, ok := c.Profiles[symbol]; ok {
		return p
	}
	if p, ok := c.Profiles["default"]; ok {
		return p
	}
	return DefaultProfile()
}
