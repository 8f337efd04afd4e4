package spinner

import (
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{"fits", "starting web-login", 40, "starting web-login"},
		{"truncated", "starting web-login for alice", 12, "starting ..."},
		{"too narrow", "anything", 3, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, truncate(tt.input, tt.width))
		})
	}
}

func TestModel_Update(t *testing.T) {
	lineCh := make(chan string, 1)
	m := newModel(lineCh, 80)

	next, _ := m.Update(lineMsg("pulling image"))
	assert.Contains(t, next.View(), "pulling image")

	next, _ = next.Update(tea.QuitMsg{})
	assert.Empty(t, next.View())
}

func TestSpinner_UpdateAfterStop(t *testing.T) {
	s := New(io.Discard)
	s.Update("waiting for container")
	assert.Equal(t, "waiting for container", <-s.lineCh)

	s.Stop()
	// Must not block or panic once stopped.
	s.Update("ignored")
}

func TestSpinner_StopBeforeStart(t *testing.T) {
	s := New(io.Discard)
	s.Stop()
	s.Stop()

	assert.NoError(t, s.Start())
}
