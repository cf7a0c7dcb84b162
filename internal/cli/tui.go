package cli

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/harvest/pkg/bubble"
	"github.com/matzehuels/harvest/pkg/debounce"
	herrors "github.com/matzehuels/harvest/pkg/errors"
	"github.com/matzehuels/harvest/pkg/reference"
	"github.com/matzehuels/harvest/pkg/story"
	"github.com/matzehuels/harvest/pkg/units"
)

// Terminal cells are mapped onto the machine's pixel canvas.
const (
	cellWidth  = 10
	cellHeight = 20
)

// Zoom factors for the +/- keys.
const (
	zoomIn  = 1.5
	zoomOut = 0.75
)

// panStep is the pan distance in canvas pixels for the w/a/s/d keys.
const panStep = 40

var (
	tuiHeadlineStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCocoa)
	tuiCopyStyle     = lipgloss.NewStyle().Foreground(colorWhite)
	tuiPromptStyle   = lipgloss.NewStyle().Italic(true).Foreground(colorGray)
	tuiPanelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim).Padding(0, 1)
)

// =============================================================================
// Messages
// =============================================================================

type startedMsg struct {
	frame story.Frame
	err   error
}

type frameMsg struct {
	frame story.Frame
	err   error
}

// resizeMsg fires after a terminal resize settles; seq discards stale ones.
type resizeMsg struct {
	seq           int
	width, height int
}

// =============================================================================
// StoryModel - Interactive story walkthrough
// =============================================================================

// StoryModel is the bubbletea model for `harvest play`. Keys become story
// events; the machine's frames become the view.
type StoryModel struct {
	ctx     context.Context
	machine *story.Machine
	ref     *reference.Tables

	frame   story.Frame
	loading bool
	fatal   error
	notice  string

	width, height int
	resizeSeq     int
	selected      int
}

// NewStoryModel creates a model for an idle machine. Init starts it.
func NewStoryModel(ctx context.Context, m *story.Machine, ref *reference.Tables) StoryModel {
	if ref == nil {
		ref = reference.Default()
	}
	return StoryModel{ctx: ctx, machine: m, ref: ref, loading: true, selected: -1}
}

func (m StoryModel) Init() tea.Cmd {
	return func() tea.Msg {
		f, err := m.machine.Start(m.ctx)
		return startedMsg{frame: f, err: err}
	}
}

func (m StoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startedMsg:
		m.loading = false
		if msg.err != nil {
			m.fatal = msg.err
			return m, nil
		}
		m.frame = msg.frame
		return m, nil
	case frameMsg:
		m.apply(msg.frame, msg.err)
		return m, nil
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resizeSeq++
		seq := m.resizeSeq
		return m, tea.Tick(debounce.DefaultWait, func(time.Time) tea.Msg {
			return resizeMsg{seq: seq, width: msg.Width, height: msg.Height}
		})
	case resizeMsg:
		if msg.seq != m.resizeSeq {
			return m, nil
		}
		return m, m.send(story.Resize{Width: float64(msg.width * cellWidth), Height: float64(msg.height * cellHeight)})
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m StoryModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "q" || key == "ctrl+c" {
		return m, tea.Quit
	}
	if m.loading || m.fatal != nil {
		return m, nil
	}
	m.notice = ""

	idx := m.frame.StepIndex
	switch key {
	case "down", "j", "right", "l", " ", "pgdown":
		if idx+1 < m.frame.StepCount {
			m.selected = -1
			return m, m.send(story.Scroll{Index: idx + 1})
		}
	case "up", "k", "left", "h", "pgup":
		if idx > 0 {
			m.selected = -1
			return m, m.send(story.Scroll{Index: idx - 1})
		}
	case "]", ".":
		return m, m.send(story.Slide{Year: m.frame.Year + 1})
	case "[", ",":
		return m, m.send(story.Slide{Year: m.frame.Year - 1})
	case "}", ">":
		return m, m.send(story.Slide{Year: m.frame.Year + 10})
	case "{", "<":
		return m, m.send(story.Slide{Year: m.frame.Year - 10})
	case "+", "=":
		return m, m.send(story.Zoom{Factor: zoomIn})
	case "-", "_":
		return m, m.send(story.Zoom{Factor: zoomOut})
	case "0":
		return m, m.send(story.ResetZoom{})
	case "w":
		return m, m.send(story.Pan{DY: panStep})
	case "s":
		return m, m.send(story.Pan{DY: -panStep})
	case "a":
		return m, m.send(story.Pan{DX: panStep})
	case "d":
		return m, m.send(story.Pan{DX: -panStep})
	case "tab":
		if m.frame.Map != nil && len(m.frame.Map.Bubbles) > 0 {
			m.selected = (m.selected + 1) % len(m.frame.Map.Bubbles)
			return m, m.send(story.Select{Country: m.frame.Map.Bubbles[m.selected].Country})
		}
	case "esc":
		m.selected = -1
		return m, m.send(story.CloseInfo{})
	default:
		if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= m.frame.StepCount {
			m.selected = -1
			return m, m.send(story.Scroll{Index: n - 1})
		}
	}
	return m, nil
}

// send applies ev on the machine off the UI goroutine.
func (m StoryModel) send(ev story.Event) tea.Cmd {
	machine, ctx := m.machine, m.ctx
	return func() tea.Msg {
		f, err := machine.Handle(ctx, ev)
		return frameMsg{frame: f, err: err}
	}
}

func (m *StoryModel) apply(f story.Frame, err error) {
	if err != nil {
		if herrors.Is(err, herrors.ErrCodeSliderDisabled) {
			m.notice = "The year slider is only available on the map step"
		} else {
			m.notice = herrors.UserMessage(err)
		}
	}
	if f.StepCount > 0 {
		m.frame = f
	}
}

// =============================================================================
// View
// =============================================================================

func (m StoryModel) View() string {
	if m.fatal != nil {
		return styleIconError.Render(iconError) + " " + story.FailureMessage + "\n" +
			StyleDim.Render(herrors.UserMessage(m.fatal)) + "\n\n" + StyleDim.Render("q quit") + "\n"
	}
	if m.loading {
		return styleIconSpinner.Render("⠿") + " " + StyleDim.Render(story.LoadingMessage) + "\n"
	}

	f := m.frame
	var b strings.Builder
	b.WriteString(StyleDim.Render(f.StepLabel()))
	b.WriteString("\n\n")
	b.WriteString(tuiHeadlineStyle.Render(f.Step.Headline))
	b.WriteString("\n")
	if f.Step.Copy != "" {
		b.WriteString(tuiCopyStyle.Render(f.Step.Copy))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(renderYear(f))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("Global production: ") +
		StyleValue.Render(units.FormatTons(units.TonnesToUSTons(f.Total))+" US tons"))
	b.WriteString("\n\n")

	if f.Mode == story.ModeMap {
		b.WriteString(m.viewMap())
	} else {
		b.WriteString(m.viewBubbles())
	}

	if f.Step.Prompt != "" {
		b.WriteString("\n")
		b.WriteString(tuiPromptStyle.Render(f.Step.Prompt))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(StyleWarning.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(helpLine(f)))
	b.WriteString("\n")
	return b.String()
}

// viewBubbles lists the largest producers, muting the rest on highlight
// steps, followed by the continent labels.
func (m StoryModel) viewBubbles() string {
	f := m.frame
	limit := 10
	if m.height > 0 {
		limit = max(3, min(len(f.Nodes), m.height-20))
	}

	nodes := slices.Clone(f.Nodes)
	slices.SortFunc(nodes, func(a, b bubble.Node) int { return cmp.Compare(a.Rank, b.Rank) })

	var rows [][]string
	for _, n := range nodes {
		if n.Rank > limit {
			break
		}
		rows = append(rows, []string{
			strconv.Itoa(n.Rank),
			m.ref.Flag(n.ID) + " " + n.ID,
			n.Continent,
			units.FormatTons(units.TonnesToUSTons(n.Production)),
			units.FormatPercent(n.Share),
		})
	}
	t := newTable([]string{"#", "Country", "Continent", "US tons", "Share"}, rows, func(row int) bool {
		return f.Highlight && row >= 2
	})

	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString("\n")
	if len(f.Labels) > 0 {
		names := make([]string, len(f.Labels))
		for i, l := range f.Labels {
			names[i] = l.Text
		}
		b.WriteString(StyleDim.Render(strings.Join(names, " · ")))
		b.WriteString("\n")
	}
	return b.String()
}

// viewMap shows the plotted countries and, when open, the info panel.
func (m StoryModel) viewMap() string {
	mf := m.frame.Map
	if mf == nil || !mf.Ready {
		return StyleWarning.Render("Map geometry unavailable") + "\n"
	}

	var rows [][]string
	for i, bub := range mf.Bubbles {
		if i >= 12 {
			break
		}
		cursor := " "
		if i == m.selected {
			cursor = "▸"
		}
		rows = append(rows, []string{cursor, m.ref.Flag(bub.Country) + " " + bub.DisplayName, units.FormatTons(units.TonnesToUSTons(bub.Production))})
	}

	var b strings.Builder
	b.WriteString(newTable([]string{"", "Country", "US tons"}, rows, nil).Render())
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("%d countries plotted · zoom ×%.2f", len(mf.Bubbles), mf.Transform.K)))
	b.WriteString("\n")

	if info := m.frame.Info; info != nil {
		var p strings.Builder
		p.WriteString(StyleTitle.Render(fmt.Sprintf("%s %s (%d)", info.Flag, info.DisplayName, info.Year)))
		for _, line := range info.Lines {
			p.WriteString("\n")
			p.WriteString(StyleDim.Render(line[0]+": ") + StyleValue.Render(line[1]))
		}
		b.WriteString(tuiPanelStyle.Render(p.String()))
		b.WriteString("\n")
	}
	return b.String()
}

// renderYear draws the year, with a slider bar on slider steps.
func renderYear(f story.Frame) string {
	year := StyleHighlight.Render(strconv.Itoa(f.Year))
	if !f.Step.Slider {
		return year
	}
	const width = 40
	lo, hi := story.StartYear, story.EndYear
	pos := 0
	if hi > lo {
		pos = (f.Year - lo) * (width - 1) / (hi - lo)
	}
	pos = max(0, min(width-1, pos))
	bar := strings.Repeat("─", pos) + "●" + strings.Repeat("─", width-1-pos)
	return fmt.Sprintf("%d %s %d  %s", lo, StyleDim.Render(bar), hi, year)
}

func helpLine(f story.Frame) string {
	help := "↑/↓ step  1-9 jump"
	if f.Step.Slider {
		help += "  [/] year  {/} decade"
	}
	if f.Mode == story.ModeMap {
		help += "  +/- zoom  0 reset  wasd pan  tab select  esc close"
	}
	return help + "  q quit"
}
