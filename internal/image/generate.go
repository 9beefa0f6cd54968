package image

import (
	"context"
	"fmt"

	"github.com/dmorgan81/fluxnode/internal/tensor"
)

// NoSeed leaves seeding to the service.
const NoSeed int64 = -1

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

var Formats = []Format{FormatJPEG, FormatPNG}

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJPEG, FormatPNG:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

type Params struct {
	Prompt          string `json:"prompt"`
	Ultra           bool   `json:"ultra_mode"`
	AspectRatio     string `json:"aspect_ratio"`
	SafetyTolerance int    `json:"safety_tolerance"`
	OutputFormat    Format `json:"output_format"`
	Raw             bool   `json:"raw"`
	Seed            int64  `json:"seed"`
}

type Generator interface {
	Generate(context.Context, Params) (*tensor.Image, error)
}
