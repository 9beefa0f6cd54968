package node

import (
	"context"
	"fmt"

	"github.com/dmorgan81/fluxnode/internal/image"
	"github.com/dmorgan81/fluxnode/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
)

type FluxPro11 struct {
	generator image.Generator
}

func NewFluxPro11(i *do.Injector) (*FluxPro11, error) {
	return &FluxPro11{generator: do.MustInvoke[image.Generator](i)}, nil
}

func (n *FluxPro11) Spec() Spec {
	return Spec{
		DisplayName: "Flux Pro 1.1 Ultra & Raw",
		Category:    Category,
		Function:    "generate_image",
		Required: []Input{
			{Name: "prompt", Type: TypeString, Default: "", Multiline: true},
			{Name: "ultra_mode", Type: TypeBoolean, Default: true},
			{Name: "aspect_ratio", Choices: image.AspectRatios, Default: "16:9"},
			{Name: "safety_tolerance", Type: TypeInt, Default: int64(6), Min: lo.ToPtr[int64](0), Max: lo.ToPtr[int64](6)},
			{Name: "output_format", Choices: lo.Map(image.Formats, func(f image.Format, _ int) string { return string(f) }), Default: string(image.FormatPNG)},
			{Name: "raw", Type: TypeBoolean, Default: false},
		},
		Optional: []Input{
			{Name: "seed", Type: TypeInt, Default: image.NoSeed},
		},
		ReturnTypes: []string{TypeImage},
	}
}

func (n *FluxPro11) Execute(ctx context.Context, raw Inputs) (Outputs, error) {
	in, err := n.Spec().Resolve(raw)
	if err != nil {
		return Outputs{}, err
	}
	format, err := image.ParseFormat(in.String("output_format"))
	if err != nil {
		return Outputs{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	params := image.Params{
		Prompt:          in.String("prompt"),
		Ultra:           in.Bool("ultra_mode"),
		AspectRatio:     in.String("aspect_ratio"),
		SafetyTolerance: int(in.Int("safety_tolerance")),
		OutputFormat:    format,
		Raw:             in.Bool("raw"),
		Seed:            in.Int("seed"),
	}

	log := log.FromContextOrDiscard(ctx).WithGroup("FluxPro11")
	log.Info("executing node", "ultra", params.Ultra, "aspect_ratio", params.AspectRatio)

	img, err := n.generator.Generate(ctx, params)
	if err != nil {
		log.Warn("node produced placeholder", "error", err)
	}
	return Outputs{Values: []any{img}, Fallback: err}, nil
}
