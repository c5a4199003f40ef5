package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotpatch/internal/domain"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  domain.ServerMessage
	}{
		{
			name:  "already up to date",
			frame: `{"tag":"StatusChanged","status":{"tag":"AlreadyUpToDate"}}`,
			want:  domain.StatusChanged{Status: domain.AlreadyUpToDate{}},
		},
		{
			name:  "busy",
			frame: `{"tag":"StatusChanged","status":{"tag":"Busy","compilationMode":"optimize"}}`,
			want:  domain.StatusChanged{Status: domain.BuildBusy{Mode: domain.ModeOptimize}},
		},
		{
			name:  "client error",
			frame: `{"tag":"StatusChanged","status":{"tag":"ClientError","message":"target not found"}}`,
			want:  domain.StatusChanged{Status: domain.BuildClientError{Message: "target not found"}},
		},
		{
			name:  "compile error",
			frame: `{"tag":"StatusChanged","status":{"tag":"CompileError"}}`,
			want:  domain.StatusChanged{Status: domain.BuildCompileError{}},
		},
		{
			name:  "successfully compiled",
			frame: `{"tag":"SuccessfullyCompiled","code":"1+1","compilationMode":"standard","compiledTimestamp":42}`,
			want: domain.SuccessfullyCompiled{
				Code:              "1+1",
				CompilationMode:   domain.ModeStandard,
				CompiledTimestamp: 42,
			},
		},
		{
			name:  "unknown fields are ignored",
			frame: `{"tag":"StatusChanged","status":{"tag":"CompileError","extra":1},"extra":true}`,
			want:  domain.StatusChanged{Status: domain.BuildCompileError{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		contains string
	}{
		{"not json", `{`, "invalid JSON"},
		{"missing tag", `{}`, "at /:"},
		{"unknown tag", `{"tag":"Nope"}`, "at /tag:"},
		{"unknown status", `{"tag":"StatusChanged","status":{"tag":"Weird"}}`, "at /status/tag:"},
		{"missing status", `{"tag":"StatusChanged"}`, "at /:"},
		{"busy without mode", `{"tag":"StatusChanged","status":{"tag":"Busy"}}`, "at /status:"},
		{"bad mode", `{"tag":"SuccessfullyCompiled","code":"","compilationMode":"proxy","compiledTimestamp":1}`, "at /compilationMode:"},
		{"fractional timestamp", `{"tag":"SuccessfullyCompiled","code":"","compilationMode":"debug","compiledTimestamp":1.5}`, "at /compiledTimestamp:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.frame))
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, domain.ErrDecode))

			var de *DecodeError
			require.True(t, errors.As(err, &de))
			require.NotEmpty(t, de.Issues)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestEncode(t *testing.T) {
	b, err := Encode(domain.FocusedTab{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tag":"FocusedTab"}`, string(b))

	b, err = Encode(domain.ChangedCompilationMode{Mode: domain.ModeOptimize})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tag":"ChangedCompilationMode","compilationMode":"optimize"}`, string(b))

	_, err = Encode(domain.ChangedCompilationMode{Mode: domain.ModePlaceholder})
	assert.ErrorIs(t, err, domain.ErrInvalidMode)
}

func TestEndpointURL(t *testing.T) {
	e := Endpoint{Host: "localhost", Port: 4321, Target: "My App"}
	assert.Equal(t,
		"ws://localhost:4321/?compiledTimestamp=42&target=My+App&version=1",
		e.URL(42),
	)

	e = Endpoint{Host: "::1", Port: 80, Version: "2", Target: "x"}
	assert.Equal(t, "ws://[::1]:80/?compiledTimestamp=0&target=x&version=2", e.URL(0))
}
