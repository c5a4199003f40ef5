package uxerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"hotpatch/internal/domain"
)

func TestHumanize(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		title string
	}{
		{"not ready", fmt.Errorf("at /: %w", domain.ErrNotReady), "Compiled Code Not Ready"},
		{"eval", domain.WrapOp("evaluate", domain.ErrEval), "Hot Reload Failed"},
		{"config", domain.NewDomainError("config.Load", domain.ErrConfigLoad, "bad yaml"), "Configuration Error"},
		{"refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), "Watch Server Unreachable"},
		{"timeout", errors.New("context deadline exceeded"), "Timed Out"},
		{"other", errors.New("something odd"), "Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := Humanize(tt.err)
			assert.Equal(t, tt.title, fe.Title)
			assert.Equal(t, tt.err.Error(), fe.Raw)
		})
	}
}

func TestHumanizeNil(t *testing.T) {
	assert.Equal(t, "Unknown Error", Humanize(nil).Title)
}

func TestRenderKeepsRawMessage(t *testing.T) {
	err := errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
	out := Humanize(err).Render()
	assert.Contains(t, out, "Watch Server Unreachable")
	assert.Contains(t, out, err.Error())
	assert.Contains(t, out, "Suggestions:")
}
