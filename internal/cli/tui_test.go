package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/fibertree/pkg/fibertree"
	ftio "github.com/matzehuels/fibertree/pkg/io"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m BrowseModel, keys ...string) BrowseModel {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(BrowseModel)
	}
	return m
}

func browseA(t *testing.T) BrowseModel {
	t.Helper()
	a, err := ftio.ReadYAML(strings.NewReader(matrixA))
	require.NoError(t, err)
	return NewBrowseModel(a)
}

func TestBrowseModelNavigation(t *testing.T) {
	m := browseA(t)
	require.Equal(t, 0, m.Level())
	require.Empty(t, m.Path())

	m = press(m, "down", "enter")
	assert.Equal(t, 1, m.Level())
	assert.Equal(t, []fibertree.Coord{1}, m.Path())
	view := m.View()
	assert.Contains(t, view, "M=1")
	assert.Contains(t, view, "[1/1]")

	// Leaves do not open.
	m = press(m, "enter")
	assert.Equal(t, 1, m.Level(), "enter on a leaf changed level")

	m = press(m, "backspace", "up", "enter")
	assert.Equal(t, []fibertree.Coord{0}, m.Path())

	// Going up from the root stays at the root.
	m = press(m, "h", "h")
	assert.Equal(t, 0, m.Level())
}

func TestBrowseModelDoesNotShareState(t *testing.T) {
	start := browseA(t)
	moved := press(start, "down")
	assert.Equal(t, 0, start.top().cursor)
	assert.Equal(t, 1, moved.top().cursor)
}

func TestBrowseModelQuit(t *testing.T) {
	_, cmd := browseA(t).Update(key("q"))
	require.NotNil(t, cmd, "q should quit")
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestBrowseModelScalar(t *testing.T) {
	m := NewBrowseModel(fibertree.NewScalarTensor(7))
	assert.Contains(t, m.View(), "scalar 7")
	_, cmd := m.Update(key("x"))
	assert.NotNil(t, cmd, "any key should quit the scalar view")
}

func TestPayloadSummary(t *testing.T) {
	f, err := fibertree.NewFiber([]fibertree.Coord{0, 2}, []any{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "fiber · 2", payloadSummary(f))
	assert.Equal(t, "5", payloadSummary(fibertree.NewPayload(5)))
}
