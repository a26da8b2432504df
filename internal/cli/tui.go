package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/fibertree/pkg/fibertree"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// BrowseModel - Interactive fiber navigation
// =============================================================================

// browseFrame is one open fiber on the navigation stack.
type browseFrame struct {
	fiber  *fibertree.Fiber
	coord  fibertree.Coord // coordinate that led here, nil for the root
	cursor int
	offset int
}

// BrowseModel is the bubbletea model for walking a tensor one fiber at a
// time. Enter descends into the sub-fiber under the cursor, backspace goes
// back up.
type BrowseModel struct {
	Tensor *fibertree.Tensor
	Height int

	stack []browseFrame
}

// NewBrowseModel creates a browser positioned at the root fiber of t.
func NewBrowseModel(t *fibertree.Tensor) BrowseModel {
	m := BrowseModel{Tensor: t, Height: 15}
	if root := t.Root(); root != nil {
		m.stack = []browseFrame{{fiber: root}}
	}
	return m
}

// Level returns the depth of the fiber on screen.
func (m BrowseModel) Level() int {
	return len(m.stack) - 1
}

// Path returns the coordinates from the root to the fiber on screen.
func (m BrowseModel) Path() []fibertree.Coord {
	var path []fibertree.Coord
	for _, f := range m.stack[1:] {
		path = append(path, f.coord)
	}
	return path
}

func (m BrowseModel) top() *browseFrame {
	return &m.stack[len(m.stack)-1]
}

func (m BrowseModel) Init() tea.Cmd {
	return nil
}

func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if len(m.stack) == 0 {
		if k, ok := msg.(tea.KeyMsg); ok && k.String() != "" {
			return m, tea.Quit
		}
		return m, nil
	}

	// Frames are values; copy the stack so earlier models stay intact.
	m.stack = append([]browseFrame(nil), m.stack...)
	cur := m.top()

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if cur.cursor > 0 {
				cur.cursor--
				if cur.cursor < cur.offset {
					cur.offset = cur.cursor
				}
			}
		case "down", "j":
			if cur.cursor < cur.fiber.Len()-1 {
				cur.cursor++
				if cur.cursor >= cur.offset+m.Height {
					cur.offset = cur.cursor - m.Height + 1
				}
			}
		case "enter", "right", "l":
			if cur.fiber.Len() == 0 {
				return m, nil
			}
			cp := cur.fiber.At(cur.cursor)
			if sub, ok := cp.Payload.(*fibertree.Fiber); ok {
				m.stack = append(m.stack, browseFrame{fiber: sub, coord: cp.Coord})
			}
		case "backspace", "left", "h":
			if len(m.stack) > 1 {
				m.stack = m.stack[:len(m.stack)-1]
			}
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 8
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m BrowseModel) View() string {
	var b strings.Builder

	name := m.Tensor.Name()
	if name == "" {
		name = "tensor"
	}
	if len(m.stack) == 0 {
		b.WriteString(StyleTitle.Render(name))
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "  scalar %v\n\n", fibertree.Unbox(m.Tensor.Value()))
		b.WriteString(listDimStyle.Render("any key to quit"))
		return b.String()
	}

	ids := m.Tensor.RankIDs()
	crumbs := []string{StyleTitle.Render(name)}
	for i, c := range m.Path() {
		crumbs = append(crumbs, fmt.Sprintf("%s=%v", ids[i], c))
	}
	crumbs = append(crumbs, StyleHighlight.Render(ids[m.Level()]))
	b.WriteString(strings.Join(crumbs, listDimStyle.Render(" › ")))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ open  ⌫ back  q quit"))
	b.WriteString("\n\n")

	cur := m.top()
	end := min(cur.offset+m.Height, cur.fiber.Len())

	rows := [][]string{}
	for i := cur.offset; i < end; i++ {
		cp := cur.fiber.At(i)
		cursor := "  "
		if i == cur.cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{cursor, fmt.Sprint(cp.Coord), payloadSummary(cp.Payload)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", ids[m.Level()], "Payload").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			idx := cur.offset + row
			if idx >= cur.fiber.Len() {
				return lipgloss.NewStyle()
			}
			_, isFiber := cur.fiber.At(idx).Payload.(*fibertree.Fiber)
			base := lipgloss.NewStyle()
			if idx == cur.cursor {
				base = base.Bold(true)
			}
			switch {
			case col == 1:
				return base.Foreground(colorCyan)
			case isFiber:
				return base.Foreground(colorGray)
			}
			return base.Foreground(colorWhite)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	pos := 0
	if cur.fiber.Len() > 0 {
		pos = cur.cursor + 1
	}
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]  rank %d of %d", pos, cur.fiber.Len(), m.Level()+1, len(ids))))

	return b.String()
}

// payloadSummary shows a leaf value, or the size of a sub-fiber.
func payloadSummary(p any) string {
	if sub, ok := p.(*fibertree.Fiber); ok {
		return fmt.Sprintf("fiber · %d", sub.Len())
	}
	return fmt.Sprint(fibertree.Unbox(p))
}

// browseCommand creates the browse command.
func (c *CLI) browseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse FILE",
		Short: "Walk a tensor interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == stdinPath {
				return fmt.Errorf("browse reads the terminal for keys; pass a file instead of -")
			}
			t, err := readTensor(cmd, args[0])
			if err != nil {
				return err
			}
			p := tea.NewProgram(NewBrowseModel(t), tea.WithContext(cmd.Context()), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
}
