package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/qi-prompt/qi-prompt/internal/application"
	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
)

// HybridBackend is the default frontend: a full Bubble Tea program that
// visually drives entity.AppState instead of printing ANSI escapes line by
// line. It is the only backend that renders the busy/ready.sub machine as a
// persistent status line rather than a transient spinner message.
type HybridBackend struct {
	Info BannerInfo
}

var _ Backend = (*HybridBackend)(nil)

// Run implements Backend.
func (b *HybridBackend) Run(ctx context.Context, d *Driver) error {
	outCh, err := d.Messages(ctx)
	if err != nil {
		return err
	}
	m := newHybridModel(ctx, d, b.Info, outCh)
	p := tea.NewProgram(m, tea.WithContext(ctx))
	_, err = p.Run()
	d.Shutdown()
	return err
}

type backendMsg struct {
	msg *entity.Message
	ok  bool
}

func waitForOutbound(ch <-chan *entity.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		return backendMsg{msg: msg, ok: ok}
	}
}

type hybridModel struct {
	ctx    context.Context
	driver *Driver
	info   BannerInfo
	outCh  <-chan *entity.Message

	input       textinput.Model
	history     []string
	cmdHistory  []string
	histIdx     int
	streaming   strings.Builder
	lastCtrlC   time.Time
	quitting    bool
	width       int
}

func newHybridModel(ctx context.Context, d *Driver, info BannerInfo, outCh <-chan *entity.Message) hybridModel {
	ti := textinput.New()
	ti.Placeholder = "ask anything..."
	ti.Prompt = "❯ "
	ti.Focus()
	ti.CharLimit = 4000
	return hybridModel{ctx: ctx, driver: d, info: info, outCh: outCh, input: ti, width: 80}
}

func (m hybridModel) Init() tea.Cmd {
	return waitForOutbound(m.outCh)
}

func (m hybridModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if time.Since(m.lastCtrlC) < 2*time.Second {
				m.quitting = true
				return m, tea.Quit
			}
			m.lastCtrlC = time.Now()
			_ = m.driver.Cancel("")
			m.history = append(m.history, dimText+"按 Ctrl+C 两次以退出"+reset)
			return m, nil

		case tea.KeyShiftTab:
			_ = m.driver.AppState.Apply(entity.EventCycleSubstate, "")
			return m, nil

		case tea.KeyUp:
			if len(m.cmdHistory) > 0 && m.histIdx > 0 {
				m.histIdx--
				m.input.SetValue(m.cmdHistory[m.histIdx])
				m.input.CursorEnd()
			}
			return m, nil

		case tea.KeyDown:
			if m.histIdx < len(m.cmdHistory)-1 {
				m.histIdx++
				m.input.SetValue(m.cmdHistory[m.histIdx])
				m.input.CursorEnd()
			} else {
				m.histIdx = len(m.cmdHistory)
				m.input.SetValue("")
			}
			return m, nil

		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if text == "" {
				return m, nil
			}
			m.cmdHistory = append(m.cmdHistory, text)
			m.histIdx = len(m.cmdHistory)

			m.history = append(m.history, cyanBold+"❯ "+reset+text)
			if _, err := m.driver.Submit(text); err != nil {
				m.history = append(m.history, fmt.Sprintf("%s✗ %s%s", redBold, err, reset))
			}
			return m, nil
		}

	case backendMsg:
		if !msg.ok {
			return m, nil
		}
		m = m.applyOutbound(msg.msg)
		return m, waitForOutbound(m.outCh)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m hybridModel) applyOutbound(msg *entity.Message) hybridModel {
	switch msg.Kind() {
	case valueobject.KindPartialResult:
		if p, ok := msg.Payload().(application.ProgressPayload); ok {
			m.streaming.WriteString(p.Text)
		}
	case valueobject.KindProgress:
		if p, ok := msg.Payload().(application.ProgressPayload); ok {
			m.history = append(m.history, dimText+"… "+p.Text+reset)
		}
	case valueobject.KindFinalResult:
		if m.streaming.Len() > 0 {
			m.history = append(m.history, m.streaming.String())
			m.streaming.Reset()
		} else if p, ok := msg.Payload().(application.ResultPayload); ok && p.Text != "" {
			m.history = append(m.history, p.Text)
		}
	case valueobject.KindError:
		if p, ok := msg.Payload().(application.ResultPayload); ok && p.Err != nil {
			m.history = append(m.history, fmt.Sprintf("%s✗ %s%s", redBold, p.Err, reset))
		}
		m.streaming.Reset()
	case valueobject.KindStatusResponse:
		if p, ok := msg.Payload().(application.ResultPayload); ok {
			m.history = append(m.history, p.Text)
		}
	}
	return m
}

func (m hybridModel) View() string {
	if m.quitting {
		return dimText + "再见\n" + reset
	}

	var sb strings.Builder
	sb.WriteString(RenderBanner(m.info, m.width))
	sb.WriteString("\n")

	start := 0
	if len(m.history) > 20 {
		start = len(m.history) - 20
	}
	for _, line := range m.history[start:] {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if m.streaming.Len() > 0 {
		sb.WriteString(m.streaming.String())
		sb.WriteString("\n")
	}

	sb.WriteString(m.statusLine())
	sb.WriteString("\n")
	sb.WriteString(m.input.View())
	return sb.String()
}

func (m hybridModel) statusLine() string {
	snap := m.driver.AppState.Snapshot()
	style := lipgloss.NewStyle().Foreground(colorGray)
	if snap.Top == entity.TopBusy {
		style = lipgloss.NewStyle().Foreground(colorYellow)
		return style.Render(fmt.Sprintf("● busy: %s", snap.TaskName))
	}
	return style.Render(fmt.Sprintf("○ ready.%s", snap.Sub))
}
