package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/skalibog/sqlab/internal/config"
	"github.com/skalibog/sqlab/pkg/models"
)

// Основные цвета
var (
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
)

// styles собирает все стили просмотрщика в один набор
type styles struct {
	app           lipgloss.Style
	title         lipgloss.Style
	sectionHeader lipgloss.Style
	section       lipgloss.Style
	profit        lipgloss.Style
	loss          lipgloss.Style
	footer        lipgloss.Style
	selectedRow   lipgloss.Style
}

// newStyles строит набор стилей. Монохромный режим оставляет рамки и
// начертание, но не задает цветов, выделение строки идет инверсией
func newStyles(monochrome bool) styles {
	if monochrome {
		return styles{
			app: lipgloss.NewStyle().
				Padding(1, 2).
				Border(lipgloss.RoundedBorder()),
			title: lipgloss.NewStyle().
				Bold(true).
				Padding(0, 1).
				Align(lipgloss.Center),
			sectionHeader: lipgloss.NewStyle().
				Bold(true).
				Padding(0, 1),
			section: lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				Padding(0, 1),
			profit:      lipgloss.NewStyle(),
			loss:        lipgloss.NewStyle(),
			footer:      lipgloss.NewStyle().Padding(0, 1),
			selectedRow: lipgloss.NewStyle().Reverse(true),
		}
	}

	return styles{
		app: lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor),
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1).
			Align(lipgloss.Center),
		sectionHeader: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(secondaryColor).
			Padding(0, 1),
		section: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1),
		profit: lipgloss.NewStyle().Foreground(successColor),
		loss:   lipgloss.NewStyle().Foreground(errorColor),
		footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			Padding(0, 1),
		selectedRow: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor),
	}
}

// ReportViewer реализует терминальный просмотрщик результатов бэктеста:
// панель сводных метрик и прокручиваемый леджер сделок
type ReportViewer struct {
	cfg    config.UIConfig
	st     styles
	report *models.Report
	trades []*models.TradeRecord
	cursor int
	offset int
	width  int
	height int
}

// NewReportViewer создает просмотрщик отчета
func NewReportViewer(cfg config.UIConfig, report *models.Report, trades []*models.TradeRecord) *ReportViewer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 15
	}
	return &ReportViewer{
		cfg:    cfg,
		st:     newStyles(cfg.Monochrome),
		report: report,
		trades: trades,
		width:  120,
		height: 40,
	}
}

// Start запускает просмотрщик в основном потоке (блокирующий вызов)
func (v *ReportViewer) Start() error {
	program := tea.NewProgram(v, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("ошибка запуска UI: %w", err)
	}
	return nil
}

// Init реализует tea.Model
func (v *ReportViewer) Init() tea.Cmd {
	return nil
}

// Update реализует tea.Model
func (v *ReportViewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return v, tea.Quit
		case "up", "k":
			if v.cursor > 0 {
				v.cursor--
			}
			if v.cursor < v.offset {
				v.offset = v.cursor
			}
		case "down", "j":
			if v.cursor < len(v.trades)-1 {
				v.cursor++
			}
			if v.cursor >= v.offset+v.cfg.PageSize {
				v.offset = v.cursor - v.cfg.PageSize + 1
			}
		case "home", "g":
			v.cursor, v.offset = 0, 0
		}
	}
	return v, nil
}

// View реализует tea.Model
func (v *ReportViewer) View() string {
	var b strings.Builder

	b.WriteString(v.st.title.Width(v.width - 8).Render("SQLAB — отчет бэктеста"))
	b.WriteString("\n\n")

	b.WriteString(v.st.sectionHeader.Render("Сводные метрики"))
	b.WriteString("\n")
	b.WriteString(v.st.section.Render(v.renderSummary()))
	b.WriteString("\n\n")

	if v.cfg.ShowLegs && len(v.trades) > 0 {
		b.WriteString(v.st.sectionHeader.Render(fmt.Sprintf("Леджер сделок (%d участков)", len(v.trades))))
		b.WriteString("\n")
		b.WriteString(v.st.section.Render(v.renderTrades()))
		b.WriteString("\n")
	}

	b.WriteString(v.st.footer.Render("↑/↓ — прокрутка, q — выход"))

	return v.st.app.Render(b.String())
}

// renderSummary строит панель метрик
func (v *ReportViewer) renderSummary() string {
	r := v.report

	pnl := r.FinalBalance - r.InitialCapital
	pnlStr := v.st.profit.Render(fmt.Sprintf("%+.2f", pnl))
	if pnl < 0 {
		pnlStr = v.st.loss.Render(fmt.Sprintf("%+.2f", pnl))
	}

	rows := []string{
		fmt.Sprintf("Капитал: %.2f → %.2f (%s, %+.2f%%)", r.InitialCapital, r.FinalBalance, pnlStr, r.TotalReturn),
	}

	if !r.HasTrades {
		rows = append(rows, "Закрытых сделок нет, относительные метрики не определены")
		return strings.Join(rows, "\n")
	}

	rows = append(rows,
		fmt.Sprintf("Сделок: %d (побед %d, поражений %d), винрейт %.1f%%",
			r.TotalTrades, r.WinningTrades, r.LosingTrades, r.WinRate),
		fmt.Sprintf("Профит-фактор: %.2f, Шарп: %.2f, Сортино: %.2f",
			r.ProfitFactor, r.SharpeRatio, r.SortinoRatio),
		fmt.Sprintf("Макс. просадка: %.2f%%, средняя длительность: %s",
			r.MaxDrawdown, r.AvgTradeDuration.Round(time.Minute)),
		fmt.Sprintf("Первый выход TP1: %.1f%%, сразу в стоп: %.1f%%",
			r.TP1HitRate, r.StopOutRate),
		fmt.Sprintf("Серии: %d побед подряд / %d поражений подряд, комиссии: %.2f",
			r.LongestWinStreak, r.LongestLossStreak, r.TotalFees),
	)
	return strings.Join(rows, "\n")
}

// renderTrades строит видимую страницу леджера
func (v *ReportViewer) renderTrades() string {
	var rows []string
	rows = append(rows, fmt.Sprintf("%-28s %-6s %-10s %-10s %-5s %-8s %10s",
		"сигнал", "напр.", "вход", "выход", "доля", "причина", "P&L"))

	end := v.offset + v.cfg.PageSize
	if end > len(v.trades) {
		end = len(v.trades)
	}
	for i := v.offset; i < end; i++ {
		t := v.trades[i]
		line := fmt.Sprintf("%-28s %-6s %-10.4f %-10.4f %-5.2f %-8s %10.2f",
			shorten(t.SignalID, 28), t.Direction, t.EntryPrice, t.ExitPrice,
			t.SizeFraction, t.ExitReason, t.NetPnL)
		if i == v.cursor {
			line = v.st.selectedRow.Render(line)
		} else if t.NetPnL < 0 {
			line = v.st.loss.Render(line)
		} else {
			line = v.st.profit.Render(line)
		}
		rows = append(rows, line)
	}
	return strings.Join(rows, "\n")
}

// shorten обрезает строку до n символов
func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
