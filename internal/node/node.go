package node

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/do"
	"github.com/samber/lo"
)

const Category = "BFL"

var ErrUnknownNode = errors.New("unknown node")

type Node interface {
	Spec() Spec
	Execute(context.Context, Inputs) (Outputs, error)
}

type Outputs struct {
	// Values holds one entry per ReturnTypes.
	Values []any
	// Fallback is why Values hold a placeholder instead of a generated result.
	Fallback error
}

type Spec struct {
	DisplayName string
	Category    string
	Function    string
	Required    []Input
	Optional    []Input
	ReturnTypes []string
	Output      bool
}

type Registry struct {
	classes map[string]Node
}

func NewRegistry(i *do.Injector) (*Registry, error) {
	r := &Registry{classes: map[string]Node{}}
	r.Register("FluxPro11", do.MustInvoke[*FluxPro11](i))
	r.Register("SaveImage", do.MustInvoke[*SaveImage](i))
	return r, nil
}

func (r *Registry) Register(name string, n Node) {
	r.classes[name] = n
}

func (r *Registry) Get(name string) (Node, error) {
	n, ok := r.classes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}
	return n, nil
}

func (r *Registry) Names() []string {
	names := lo.Keys(r.classes)
	sort.Strings(names)
	return names
}

func (r *Registry) ClassMappings() map[string]Node {
	return lo.Assign(r.classes)
}

func (r *Registry) DisplayNameMappings() map[string]string {
	return lo.MapValues(r.classes, func(n Node, _ string) string {
		return n.Spec().DisplayName
	})
}
