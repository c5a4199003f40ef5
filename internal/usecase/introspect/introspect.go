// Package introspect classifies the programs registered on the page to decide
// whether debug mode can be offered.
package introspect

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"hotpatch/internal/domain"
	"hotpatch/internal/usecase/guard"
)

// registrySchema describes the page-global registry: a namespace keyed by
// capitalized names whose values are nested namespaces or program descriptors.
const registrySchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$defs": {
    "program": {
      "type": "object",
      "required": ["programKind"],
      "properties": {
        "programKind": {"enum": ["worker", "html", "sandbox", "element", "document", "application"]}
      }
    },
    "namespace": {
      "type": "object",
      "propertyNames": {"pattern": "^[A-Z]"},
      "additionalProperties": {
        "anyOf": [{"$ref": "#/$defs/program"}, {"$ref": "#/$defs/namespace"}]
      }
    }
  },
  "$ref": "#/$defs/namespace"
}`

const kindKey = "programKind"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func registry() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled, compileErr = jsonschema.NewCompiler().Compile([]byte(registrySchema))
	})
	return compiled, compileErr
}

// Classify inspects obj, the page's program registry. mode is the compilation
// mode of the code on the page; in the placeholder mode a registry that cannot
// be read is expected and counts as debugger-compatible.
func Classify(obj guard.Object, mode domain.CompilationMode) domain.IntrospectionResult {
	kinds, err := Kinds(obj)
	if err != nil {
		if mode == domain.ModePlaceholder {
			return domain.DebuggerModeStatus{Mode: domain.DebuggerEnabled{}}
		}
		return domain.IntrospectionDecodeError{Message: err.Error()}
	}
	return classifyKinds(kinds)
}

// Kinds walks obj and returns every program kind found, one entry per program.
func Kinds(obj guard.Object) ([]domain.ProgramKind, error) {
	tree, err := materialize(obj, "")
	if err != nil {
		return nil, err
	}

	schema, err := registry()
	if err != nil {
		return nil, fmt.Errorf("registry schema: %w", err)
	}
	result := schema.Validate(tree)
	if !result.IsValid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrDecode, result.Error())
	}

	var kinds []domain.ProgramKind
	collect(tree, &kinds)
	return kinds, nil
}

// materialize copies obj into plain maps so it can be validated. Access
// failures carry the JSON pointer of the value being read.
func materialize(obj guard.Object, path string) (map[string]any, error) {
	keys, err := obj.Keys()
	if err != nil {
		return nil, pathError(path, err)
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		child := path + "/" + k
		v, err := obj.Get(k)
		if err != nil {
			return nil, pathError(child, err)
		}
		switch v := v.(type) {
		case guard.Object:
			m, err := materialize(v, child)
			if err != nil {
				return nil, err
			}
			out[k] = m
		case map[string]any:
			if _, leaf := v[kindKey]; leaf {
				out[k] = v
				continue
			}
			m, err := materialize(guard.Map(v), child)
			if err != nil {
				return nil, err
			}
			out[k] = m
		default:
			out[k] = v
		}
	}
	return out, nil
}

func pathError(path string, err error) error {
	if path == "" {
		path = "/"
	}
	return fmt.Errorf("at %s: %w", path, err)
}

func collect(node map[string]any, kinds *[]domain.ProgramKind) {
	if k, ok := node[kindKey].(string); ok {
		*kinds = append(*kinds, domain.ProgramKind(k))
		return
	}
	for _, v := range node {
		if m, ok := v.(map[string]any); ok {
			collect(m, kinds)
		}
	}
}

func classifyKinds(kinds []domain.ProgramKind) domain.IntrospectionResult {
	if len(kinds) == 0 {
		return domain.NoProgramsAtAll{}
	}

	found := make(map[domain.ProgramKind]bool, len(kinds))
	for _, k := range kinds {
		if k.SupportsDebugger() {
			return domain.DebuggerModeStatus{Mode: domain.DebuggerEnabled{}}
		}
		found[k] = true
	}

	var names []string
	for _, k := range domain.ProgramKinds {
		if found[k] {
			names = append(names, string(k))
		}
	}
	return domain.DebuggerModeStatus{Mode: domain.DebuggerDisabled{
		Reason: fmt.Sprintf("The debugger isn't supported by %s programs.", HumanList(names, "and")),
	}}
}

// HumanList joins items as "a", "a and b" or "a, b and c".
func HumanList(items []string, conj string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " " + conj + " " + items[len(items)-1]
}

// Describe renders r as the text shown in the expanded status widget.
func Describe(r domain.IntrospectionResult) string {
	switch r := r.(type) {
	case domain.NoProgramsAtAll:
		return "No programs are running on the page."
	case domain.IntrospectionDecodeError:
		return "Could not inspect the programs on the page: " + r.Message
	case domain.DebuggerModeStatus:
		switch m := r.Mode.(type) {
		case domain.DebuggerEnabled:
			return "The debugger is available."
		case domain.DebuggerDisabled:
			return m.Reason
		default:
			panic(fmt.Sprintf("introspect: unhandled debugger mode %T", m))
		}
	default:
		panic(fmt.Sprintf("introspect: unhandled result %T", r))
	}
}
