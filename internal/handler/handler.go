package handler

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/dmorgan81/fluxnode/internal/log"
	"github.com/dmorgan81/fluxnode/internal/node"
	"github.com/dmorgan81/fluxnode/internal/tensor"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const (
	DefaultNode = "FluxPro11"
	saveNode    = "SaveImage"
)

type SaveOptions struct {
	FilenamePrefix string `json:"filename_prefix,omitempty"`
}

type Input struct {
	Node   string       `json:"node,omitempty"`
	Inputs node.Inputs  `json:"inputs,omitempty"`
	Save   *SaveOptions `json:"save,omitempty"`
}

type Output struct {
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	Placeholder bool     `json:"placeholder"`
	Error       string   `json:"error,omitempty"`
	Image       []byte   `json:"image,omitempty"`
	Saved       []string `json:"saved,omitempty"`
}

type Handler struct {
	registry *node.Registry
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return &Handler{registry: do.MustInvoke[*node.Registry](i)}, nil
}

func (h *Handler) Handle(ctx context.Context, input Input) (Output, error) {
	input.Node = lo.Ternary(input.Node != "", input.Node, DefaultNode)

	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("node", input.Node)
	log.Info("handling lambda invocation")

	n, err := h.registry.Get(input.Node)
	if err != nil {
		return Output{}, err
	}
	if !lo.Contains(n.Spec().ReturnTypes, node.TypeImage) {
		return Output{}, fmt.Errorf("%w: %s returns no image", node.ErrUnknownNode, input.Node)
	}

	outputs, err := n.Execute(ctx, input.Inputs)
	if err != nil {
		return Output{}, err
	}
	if len(outputs.Values) == 0 {
		return Output{}, fmt.Errorf("%s returned no values", input.Node)
	}
	img, ok := outputs.Values[0].(*tensor.Image)
	if !ok || img == nil {
		return Output{}, fmt.Errorf("%s returned %T, want image", input.Node, outputs.Values[0])
	}

	frame, err := img.At(0)
	if err != nil {
		return Output{}, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.PNG); err != nil {
		return Output{}, err
	}

	output := Output{
		Width:       img.Width,
		Height:      img.Height,
		Placeholder: outputs.Fallback != nil,
		Image:       buf.Bytes(),
	}
	if outputs.Fallback != nil {
		output.Error = outputs.Fallback.Error()
	}

	if input.Save == nil {
		return output, nil
	}
	if output.Placeholder {
		log.Warn("not saving placeholder image")
		return output, nil
	}

	saved, err := h.save(ctx, img, input)
	if err != nil {
		log.Error("saving image failed", "error", err)
		output.Error = err.Error()
		return output, nil
	}
	output.Saved = saved
	return output, nil
}

func (h *Handler) save(ctx context.Context, img *tensor.Image, input Input) ([]string, error) {
	n, err := h.registry.Get(saveNode)
	if err != nil {
		return nil, err
	}

	inputs := node.Inputs{"images": img}
	if input.Save.FilenamePrefix != "" {
		inputs["filename_prefix"] = input.Save.FilenamePrefix
	}
	if p, ok := input.Inputs["prompt"].(string); ok {
		inputs["prompt"] = p
	}

	outputs, err := n.Execute(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if len(outputs.Values) == 0 {
		return nil, nil
	}
	names, _ := outputs.Values[0].([]string)
	return names, nil
}
