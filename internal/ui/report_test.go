package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/skalibog/sqlab/internal/config"
	"github.com/skalibog/sqlab/pkg/models"
)

func TestNewStyles_Monochrome(t *testing.T) {
	mono := newStyles(true)

	// Монохромный набор не задает ни одного цвета
	for name, st := range map[string]lipgloss.Style{
		"title":         mono.title,
		"sectionHeader": mono.sectionHeader,
		"profit":        mono.profit,
		"loss":          mono.loss,
		"selectedRow":   mono.selectedRow,
	} {
		if _, ok := st.GetForeground().(lipgloss.NoColor); !ok {
			t.Errorf("monochrome %s style carries a foreground color", name)
		}
		if _, ok := st.GetBackground().(lipgloss.NoColor); !ok {
			t.Errorf("monochrome %s style carries a background color", name)
		}
	}
	// Выделение строки сохраняется инверсией
	if !mono.selectedRow.GetReverse() {
		t.Error("monochrome selected row must use reverse video")
	}

	colored := newStyles(false)
	if _, ok := colored.title.GetBackground().(lipgloss.NoColor); ok {
		t.Error("colored title style must set a background")
	}
	if _, ok := colored.loss.GetForeground().(lipgloss.NoColor); ok {
		t.Error("colored loss style must set a foreground")
	}
}

func TestNewReportViewer_HonorsMonochromeConfig(t *testing.T) {
	report := &models.Report{InitialCapital: 10000, FinalBalance: 10000}

	v := NewReportViewer(config.UIConfig{Monochrome: true}, report, nil)
	if _, ok := v.st.title.GetBackground().(lipgloss.NoColor); !ok {
		t.Error("viewer with monochrome config must pick plain styles")
	}

	v = NewReportViewer(config.UIConfig{}, report, nil)
	if _, ok := v.st.title.GetBackground().(lipgloss.NoColor); ok {
		t.Error("viewer without monochrome config must pick colored styles")
	}
}

func TestReportViewer_ViewSmoke(t *testing.T) {
	report := &models.Report{InitialCapital: 10000, FinalBalance: 10000}
	v := NewReportViewer(config.UIConfig{Monochrome: true, ShowLegs: true}, report, nil)

	out := v.View()
	if !strings.Contains(out, "Сводные метрики") {
		t.Error("summary section missing from view")
	}
	// Без закрытых сделок панель честно сообщает об отсутствии метрик
	if !strings.Contains(out, "Закрытых сделок нет") {
		t.Error("zero-trade notice missing from view")
	}
}
