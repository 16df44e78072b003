// Package loader reads schema documents in the JSON/YAML layout used by
// node type bundles: a "types" section of named definitions and an "rpc"
// section of method signatures grouped by section.
//
//	types:
//	  Ticker: "[u8; 12]"
//	  Transfer:
//	    to: AccountId
//	    amount: Balance
//	  Permission:
//	    _enum: [Full, Admin, Operator]
//	rpc:
//	  identity:
//	    getAssetDid:
//	      params:
//	        - {name: ticker, type: Ticker}
//	      type: IdentityId
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the decoded form of a schema file, before any type is
// registered.
type Document struct {
	Types TypeSpecs                        `json:"types" yaml:"types"`
	RPC   map[string]map[string]MethodSpec `json:"rpc" yaml:"rpc"`
}

// NamedSpec is one entry of the types section.
type NamedSpec struct {
	Name string
	Spec TypeSpec
}

// TypeSpecs keeps the types section in document order.
type TypeSpecs []NamedSpec

// TypeSpec is a single definition. Exactly one of Expr, Fields or Enum is
// set.
type TypeSpec struct {
	Expr   string
	Fields []FieldSpec
	Enum   []FieldSpec
}

// FieldSpec is a struct field or enum variant. An enum variant with an
// empty Type is a unit variant.
type FieldSpec struct {
	Name string
	Type string
}

type MethodSpec struct {
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Params      []ParamSpec `json:"params,omitempty" yaml:"params,omitempty"`
	Type        string      `json:"type" yaml:"type"`
}

type ParamSpec struct {
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"`
	IsOptional bool   `json:"isOptional,omitempty" yaml:"isOptional,omitempty"`
}

// LoadYAML loads a schema document from a YAML reader.
func LoadYAML(r io.Reader) (*Document, error) {
	var d Document
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&d); err != nil {
		if err == io.EOF {
			return &d, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return &d, nil
}

// LoadJSON loads a schema document from a JSON reader. Objects are decoded
// through the YAML node tree so that struct field order survives.
func LoadJSON(r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidDocument)
	}
	return LoadYAML(bytes.NewReader(raw))
}

// LoadFile picks the decoder from the file extension.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(f)
	case ".yaml", ".yml":
		return LoadYAML(f)
	default:
		return nil, fmt.Errorf("%w: unknown extension %q", ErrInvalidDocument, filepath.Ext(path))
	}
}

func (s *TypeSpecs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: types must be a mapping (line %d)", ErrInvalidDocument, node.Line)
	}
	out := make(TypeSpecs, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var spec TypeSpec
		if err := node.Content[i+1].Decode(&spec); err != nil {
			return fmt.Errorf("type %s: %w", node.Content[i].Value, err)
		}
		out = append(out, NamedSpec{Name: node.Content[i].Value, Spec: spec})
	}
	*s = out
	return nil
}

func (s *TypeSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		s.Expr = node.Value
		return nil
	case yaml.MappingNode:
	default:
		return fmt.Errorf("%w: expected a type expression or mapping (line %d)", ErrInvalidDocument, node.Line)
	}

	if len(node.Content) == 2 && node.Content[0].Value == "_enum" {
		variants, err := decodeEnum(node.Content[1])
		if err != nil {
			return err
		}
		s.Enum = variants
		return nil
	}

	fields, err := decodePairs(node, false)
	if err != nil {
		return err
	}
	s.Fields = fields
	return nil
}

func decodeEnum(node *yaml.Node) ([]FieldSpec, error) {
	switch node.Kind {
	case yaml.SequenceNode:
		out := make([]FieldSpec, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%w: enum variant names must be scalars (line %d)", ErrInvalidDocument, item.Line)
			}
			out = append(out, FieldSpec{Name: item.Value})
		}
		return out, nil
	case yaml.MappingNode:
		return decodePairs(node, true)
	default:
		return nil, fmt.Errorf("%w: _enum must be a list or mapping (line %d)", ErrInvalidDocument, node.Line)
	}
}

func decodePairs(node *yaml.Node, allowEmpty bool) ([]FieldSpec, error) {
	out := make([]FieldSpec, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: %s must name a type (line %d)", ErrInvalidDocument, key.Value, val.Line)
		}
		// YAML null reads as "" for a unit variant
		typ := val.Value
		if val.Tag == "!!null" {
			typ = ""
		}
		if typ == "" && !allowEmpty {
			return nil, fmt.Errorf("%w: field %s has no type (line %d)", ErrInvalidDocument, key.Value, key.Line)
		}
		out = append(out, FieldSpec{Name: key.Value, Type: typ})
	}
	return out, nil
}
