package signal

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDGenerator выдает уникальные идентификаторы сигналов и ведет суточный
// счетчик. Это явное состояние, которое протягивает вызывающая сторона,
// а не скрытый глобальный синглтон.
type IDGenerator struct {
	mu     sync.Mutex
	prefix string
	day    string
	count  int
}

// NewIDGenerator создает генератор идентификаторов с заданным префиксом
func NewIDGenerator(prefix string) *IDGenerator {
	return &IDGenerator{prefix: prefix}
}

// Next возвращает следующий идентификатор вида PREFIX-YYYYMMDD-NNNN-xxxxxxxx.
// Счетчик сбрасывается при смене календарного дня.
func (g *IDGenerator) Next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := now.UTC().Format("20060102")
	if day != g.day {
		g.day = day
		g.count = 0
	}
	g.count++

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-%04d-%s", g.prefix, day, g.count, suffix)
}

// TodayCount возвращает количество идентификаторов, выданных за день day
func (g *IDGenerator) TodayCount(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if now.UTC().Format("20060102") != g.day {
		return 0
	}
	return g.count
}
