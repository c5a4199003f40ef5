// Package protocol encodes and decodes the frames exchanged with the watch server.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"hotpatch/internal/domain"
)

// serverSchema validates every inbound frame before it is decoded. The
// conditional branches keep error locations pointed at the offending field
// instead of a failed oneOf at the root.
const serverSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["tag"],
  "properties": {
    "tag": {"enum": ["StatusChanged", "SuccessfullyCompiled"]}
  },
  "allOf": [
    {
      "if": {"properties": {"tag": {"const": "StatusChanged"}}},
      "then": {
        "required": ["status"],
        "properties": {"status": {"$ref": "#/$defs/status"}}
      }
    },
    {
      "if": {"properties": {"tag": {"const": "SuccessfullyCompiled"}}},
      "then": {
        "required": ["code", "compilationMode", "compiledTimestamp"],
        "properties": {
          "code": {"type": "string"},
          "compilationMode": {"$ref": "#/$defs/mode"},
          "compiledTimestamp": {"type": "integer"}
        }
      }
    }
  ],
  "$defs": {
    "mode": {"enum": ["debug", "standard", "optimize"]},
    "status": {
      "type": "object",
      "required": ["tag"],
      "properties": {
        "tag": {"enum": ["AlreadyUpToDate", "Busy", "ClientError", "CompileError"]}
      },
      "allOf": [
        {
          "if": {"properties": {"tag": {"const": "Busy"}}},
          "then": {
            "required": ["compilationMode"],
            "properties": {"compilationMode": {"$ref": "#/$defs/mode"}}
          }
        },
        {
          "if": {"properties": {"tag": {"const": "ClientError"}}},
          "then": {
            "required": ["message"],
            "properties": {"message": {"type": "string"}}
          }
        }
      ]
    }
  }
}`

const schemaURL = "server-message.json"

var schema = mustCompile()

func mustCompile() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, strings.NewReader(serverSchema)); err != nil {
		panic(fmt.Sprintf("protocol: add schema resource: %v", err))
	}
	compiled, err := compiler.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("protocol: compile schema: %v", err))
	}
	return compiled
}

// Issue is one validation failure at a JSON pointer inside the frame.
type Issue struct {
	Path    string
	Message string
}

func (i Issue) String() string {
	path := i.Path
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("at %s: %s", path, i.Message)
}

// DecodeError is returned for any frame that is not valid JSON or does not
// match the server message schema.
type DecodeError struct {
	Issues []Issue
}

func (e *DecodeError) Error() string {
	lines := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		lines[i] = is.String()
	}
	return strings.Join(lines, "\n")
}

func (e *DecodeError) Unwrap() error { return domain.ErrDecode }

type wireStatus struct {
	Tag             string `json:"tag"`
	CompilationMode string `json:"compilationMode,omitempty"`
	Message         string `json:"message,omitempty"`
}

type wireServerMessage struct {
	Tag               string      `json:"tag"`
	Status            *wireStatus `json:"status,omitempty"`
	Code              string      `json:"code,omitempty"`
	CompilationMode   string      `json:"compilationMode,omitempty"`
	CompiledTimestamp int64       `json:"compiledTimestamp,omitempty"`
}

// Decode validates and decodes one inbound text frame. It satisfies
// domain.FrameDecoder.
func Decode(data []byte) (domain.ServerMessage, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, &DecodeError{Issues: []Issue{{Message: "invalid JSON: " + err.Error()}}}
	}
	if err := schema.Validate(v); err != nil {
		return nil, &DecodeError{Issues: issuesOf(err)}
	}

	var w wireServerMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &DecodeError{Issues: []Issue{{Message: err.Error()}}}
	}

	switch w.Tag {
	case "StatusChanged":
		return domain.StatusChanged{Status: buildStatus(w.Status)}, nil
	case "SuccessfullyCompiled":
		return domain.SuccessfullyCompiled{
			Code:              w.Code,
			CompilationMode:   domain.CompilationMode(w.CompilationMode),
			CompiledTimestamp: w.CompiledTimestamp,
		}, nil
	}
	return nil, &DecodeError{Issues: []Issue{{Path: "/tag", Message: fmt.Sprintf("unknown tag %q", w.Tag)}}}
}

// buildStatus converts a schema-checked status. The schema guarantees the tag.
func buildStatus(s *wireStatus) domain.BuildStatus {
	switch s.Tag {
	case "Busy":
		return domain.BuildBusy{Mode: domain.CompilationMode(s.CompilationMode)}
	case "ClientError":
		return domain.BuildClientError{Message: s.Message}
	case "CompileError":
		return domain.BuildCompileError{}
	default:
		return domain.AlreadyUpToDate{}
	}
}

// issuesOf flattens a validation error tree into its leaf causes.
func issuesOf(err error) []Issue {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []Issue{{Message: err.Error()}}
	}
	var out []Issue
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, Issue{Path: e.InstanceLocation, Message: e.Message})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}

type wireClientMessage struct {
	Tag             string `json:"tag"`
	CompilationMode string `json:"compilationMode,omitempty"`
}

// Encode serializes an outbound frame.
func Encode(msg domain.ClientMessage) ([]byte, error) {
	var w wireClientMessage
	switch msg := msg.(type) {
	case domain.FocusedTab:
		w.Tag = "FocusedTab"
	case domain.ChangedCompilationMode:
		if !msg.Mode.IsWire() {
			return nil, domain.NewDomainError("protocol.Encode", domain.ErrInvalidMode, string(msg.Mode))
		}
		w.Tag = "ChangedCompilationMode"
		w.CompilationMode = string(msg.Mode)
	default:
		panic(fmt.Sprintf("protocol: unhandled client message %T", msg))
	}
	return json.Marshal(w)
}
