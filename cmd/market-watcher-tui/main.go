package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/mintbay/gomart/pkg/sdk/api"
)

const (
	refreshEvery = 3 * time.Second
	maxEventRows = 12
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	soldStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	unsoldStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

type itemsMsg struct {
	items []api.MarketItem
	err   error
}

type eventMsg struct {
	ev api.Event
	ok bool
}

type tickMsg time.Time

type model struct {
	client *api.Client
	ctx    context.Context

	items    []api.MarketItem
	events   []api.Event
	stream   <-chan api.Event
	lastErr  error
	lastSync time.Time
}

func newModel(ctx context.Context, client *api.Client) model {
	return model{client: client, ctx: ctx}
}

func (m model) fetchItems() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
		defer cancel()
		items, err := m.client.MarketItems(ctx)
		return itemsMsg{items: items, err: err}
	}
}

func (m model) waitEvent() tea.Cmd {
	stream := m.stream
	return func() tea.Msg {
		ev, ok := <-stream
		return eventMsg{ev: ev, ok: ok}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.fetchItems(), tick()}
	if m.stream != nil {
		cmds = append(cmds, m.waitEvent())
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.fetchItems()
		}

	case itemsMsg:
		m.lastErr = msg.err
		if msg.err == nil {
			m.items = msg.items
			m.lastSync = time.Now()
		}
		return m, nil

	case eventMsg:
		if !msg.ok {
			return m, nil
		}
		m.events = append(m.events, msg.ev)
		if len(m.events) > maxEventRows {
			m.events = m.events[len(m.events)-maxEventRows:]
		}
		// A committed mutation usually changes the unsold view too.
		return m, tea.Batch(m.waitEvent(), m.fetchItems())

	case tickMsg:
		return m, tea.Batch(m.fetchItems(), tick())
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("gomart market watcher"))
	b.WriteString("  ")
	if m.lastErr != nil {
		b.WriteString(errStyle.Render("offline: " + m.lastErr.Error()))
	} else if !m.lastSync.IsZero() {
		b.WriteString(dimStyle.Render("synced " + m.lastSync.Format("15:04:05")))
	}
	b.WriteString("\n\n")

	b.WriteString(borderStyle.Render(m.renderItems()))
	b.WriteString("\n")
	b.WriteString(borderStyle.Render(m.renderEvents()))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("r refresh · q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m model) renderItems() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("For sale (%d)\n", len(m.items)))
	if len(m.items) == 0 {
		b.WriteString(dimStyle.Render("nothing listed"))
		return b.String()
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("%-6s %-10s %-12s %s\n", "item", "token", "price", "seller")))
	for _, it := range m.items {
		line := fmt.Sprintf("%-6d %-10d %-12s %s", it.ItemID, it.TokenID, it.Price.String(), shortAddr(it.Seller))
		if it.Sold {
			b.WriteString(soldStyle.Render(line))
		} else {
			b.WriteString(unsoldStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m model) renderEvents() string {
	var b strings.Builder
	b.WriteString("Events\n")
	if m.stream == nil {
		b.WriteString(dimStyle.Render("event stream unavailable"))
		return b.String()
	}
	if len(m.events) == 0 {
		b.WriteString(dimStyle.Render("waiting..."))
		return b.String()
	}
	for i := len(m.events) - 1; i >= 0; i-- {
		ev := m.events[i]
		line := fmt.Sprintf("%s  %-18s %s", ev.At.Format("15:04:05"), ev.Type, shortAddr(ev.Caller))
		if ev.ItemID != nil {
			line += fmt.Sprintf("  item=%d", *ev.ItemID)
		} else if ev.TokenID != nil {
			line += fmt.Sprintf("  token=%d", *ev.TokenID)
		}
		if ev.Amount != nil {
			line += "  " + ev.Amount.String()
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func shortAddr(addr string) string {
	if len(addr) > 12 {
		return addr[:8] + "…" + addr[len(addr)-4:]
	}
	return addr
}

func main() {
	_ = godotenv.Load()

	host := os.Getenv("GOMART_API")
	if host == "" {
		host = "http://localhost:8080"
	}
	flag.StringVar(&host, "api", host, "server base URL")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := api.NewClient(host)
	m := newModel(ctx, client)

	// Live updates are best-effort; polling still works without them.
	if stream, err := client.WatchEvents(ctx); err == nil {
		m.stream = stream
	}

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
