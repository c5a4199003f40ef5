package components

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusBarView(t *testing.T) {
	sb := NewStatusBar()
	sb.Hints = []KeyHint{{Key: "r", Desc: "reconnect"}, {Key: "q", Desc: "quit"}}
	sb.Target = "Main"
	sb.Mode = "standard"
	sb.SetWidth(80)

	out := sb.View()
	assert.Contains(t, out, "reconnect")
	assert.Contains(t, out, "quit")
	assert.Contains(t, out, "Main")
	assert.Contains(t, out, "standard")
}

func TestStatusBarNarrow(t *testing.T) {
	sb := NewStatusBar()
	sb.Hints = []KeyHint{{Key: "enter", Desc: "details"}}
	sb.Target = "Main"
	sb.SetWidth(5)
	assert.NotEmpty(t, sb.View())
}
