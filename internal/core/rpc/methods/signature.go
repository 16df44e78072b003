package methods

import (
	"fmt"
	"strings"

	"github.com/zeusync/typedrpc/internal/core/schema/registry"
)

// Param describes one declared method parameter.
type Param struct {
	Name     string
	Type     registry.TypeName
	Optional bool
}

// MethodSignature is the immutable call shape of a remote method. Params
// are in wire order.
type MethodSignature struct {
	Name        string
	Description string
	Params      []Param
	Return      registry.TypeName
}

// Required returns the number of parameters a caller must supply.
func (s MethodSignature) Required() int {
	n := 0
	for _, p := range s.Params {
		if !p.Optional {
			n++
		}
	}
	return n
}

// Param returns the declared parameter with the given name.
func (s MethodSignature) Param(name string) (Param, int, bool) {
	for i, p := range s.Params {
		if p.Name == name {
			return p, i, true
		}
	}
	return Param{}, -1, false
}

// String renders the signature as name(a: T, b?: U) -> R.
func (s MethodSignature) String() string {
	var sb strings.Builder
	sb.WriteString(s.Name)
	sb.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Name)
		if p.Optional {
			sb.WriteByte('?')
		}
		sb.WriteString(": ")
		sb.WriteString(string(p.Type))
	}
	sb.WriteString(") -> ")
	sb.WriteString(string(s.Return))
	return sb.String()
}

func (s MethodSignature) check(types Resolver) error {
	if s.Name == "" {
		return fmt.Errorf("%w: empty method name", ErrInvalidSignature)
	}
	if s.Return == "" {
		return fmt.Errorf("%w: %s has no return type", ErrInvalidSignature, s.Name)
	}
	seen := make(map[string]struct{}, len(s.Params))
	for _, p := range s.Params {
		if p.Name == "" || p.Type == "" {
			return fmt.Errorf("%w: %s has an incomplete parameter", ErrInvalidSignature, s.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: %s declares %q twice", ErrInvalidSignature, s.Name, p.Name)
		}
		seen[p.Name] = struct{}{}
		if _, err := types.Resolve(p.Type); err != nil {
			return fmt.Errorf("%w: %s parameter %s: %w", ErrInvalidSignature, s.Name, p.Name, err)
		}
	}
	if _, err := types.Resolve(s.Return); err != nil {
		return fmt.Errorf("%w: %s return type: %w", ErrInvalidSignature, s.Name, err)
	}
	return nil
}

func (s MethodSignature) clone() MethodSignature {
	s.Params = append([]Param(nil), s.Params...)
	return s
}
