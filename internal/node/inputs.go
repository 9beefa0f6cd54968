package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/dmorgan81/fluxnode/internal/tensor"
	"github.com/samber/lo"
)

const (
	TypeString  = "STRING"
	TypeBoolean = "BOOLEAN"
	TypeInt     = "INT"
	TypeImage   = "IMAGE"
)

var (
	ErrMissingInput = errors.New("missing required input")
	ErrInvalidInput = errors.New("invalid input")
)

// Input declares one node parameter. Choice inputs list Choices and leave Type empty.
type Input struct {
	Name      string
	Type      string
	Choices   []string
	Default   any
	Min       *int64
	Max       *int64
	Multiline bool
}

// Inputs are the raw values a host passes to a node, keyed by input name.
// Values decoded from JSON arrive as float64 for numbers.
type Inputs map[string]any

func (s Spec) Resolve(raw Inputs) (Inputs, error) {
	out := Inputs{}
	for _, in := range s.Required {
		v, ok := raw[in.Name]
		if !ok || v == nil {
			if in.Default == nil {
				return nil, fmt.Errorf("%w: %s", ErrMissingInput, in.Name)
			}
			v = in.Default
		}
		cv, err := in.coerce(v)
		if err != nil {
			return nil, err
		}
		out[in.Name] = cv
	}
	for _, in := range s.Optional {
		v, ok := raw[in.Name]
		if !ok || v == nil {
			v = in.Default
		}
		if v == nil {
			continue
		}
		cv, err := in.coerce(v)
		if err != nil {
			return nil, err
		}
		out[in.Name] = cv
	}
	return out, nil
}

func (in Input) coerce(v any) (any, error) {
	invalid := func() error {
		return fmt.Errorf("%w: %s: unexpected value %v (%T)", ErrInvalidInput, in.Name, v, v)
	}

	if in.Choices != nil {
		s, ok := v.(string)
		if !ok || !lo.Contains(in.Choices, s) {
			return nil, invalid()
		}
		return s, nil
	}

	switch in.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, invalid()
		}
		return s, nil
	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, invalid()
		}
		return b, nil
	case TypeInt:
		n, ok := toInt64(v)
		if !ok {
			return nil, invalid()
		}
		if in.Min != nil && in.Max != nil {
			n = lo.Clamp(n, *in.Min, *in.Max)
		}
		return n, nil
	case TypeImage:
		img, ok := v.(*tensor.Image)
		if !ok || img == nil {
			return nil, invalid()
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: %s: unknown type %q", ErrInvalidInput, in.Name, in.Type)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func (in Inputs) String(name string) string {
	s, _ := in[name].(string)
	return s
}

func (in Inputs) Bool(name string) bool {
	b, _ := in[name].(bool)
	return b
}

func (in Inputs) Int(name string) int64 {
	n, _ := in[name].(int64)
	return n
}

func (in Inputs) Image(name string) *tensor.Image {
	img, _ := in[name].(*tensor.Image)
	return img
}
