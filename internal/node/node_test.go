package node

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/dmorgan81/fluxnode/internal/image"
	"github.com/dmorgan81/fluxnode/internal/tensor"
	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, gen image.Generator, up *memUploader, inv *recordingInvalidator) *Registry {
	t.Helper()
	i := do.New()
	do.ProvideValue[*FluxPro11](i, &FluxPro11{generator: gen})
	do.ProvideValue[*SaveImage](i, &SaveImage{uploader: up, invalidator: inv, now: func() time.Time {
		return time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	}})
	r, err := NewRegistry(i)
	require.NoError(t, err)
	return r
}

func TestRegistry(t *testing.T) {
	r := newRegistry(t, &mockGenerator{}, &memUploader{}, &recordingInvalidator{})

	assert.Equal(t, []string{"FluxPro11", "SaveImage"}, r.Names())
	assert.Equal(t, map[string]string{
		"FluxPro11": "Flux Pro 1.1 Ultra & Raw",
		"SaveImage": "Save Image",
	}, r.DisplayNameMappings())
	assert.Len(t, r.ClassMappings(), 2)

	n, err := r.Get("FluxPro11")
	require.NoError(t, err)
	spec := n.Spec()
	assert.Equal(t, "BFL", spec.Category)
	assert.Equal(t, []string{TypeImage}, spec.ReturnTypes)

	_, err = r.Get("KSampler")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestFluxPro11_Execute(t *testing.T) {
	ctx := context.Background()
	generated := tensor.New(1, 2, 2)

	t.Run("defaults", func(t *testing.T) {
		gen := &mockGenerator{img: generated}
		n := &FluxPro11{generator: gen}

		out, err := n.Execute(ctx, Inputs{"prompt": "kitten"})
		require.NoError(t, err)
		require.Len(t, out.Values, 1)
		assert.Same(t, generated, out.Values[0])
		assert.NoError(t, out.Fallback)

		assert.Equal(t, []image.Params{{
			Prompt:          "kitten",
			Ultra:           true,
			AspectRatio:     "16:9",
			SafetyTolerance: 6,
			OutputFormat:    image.FormatPNG,
			Raw:             false,
			Seed:            image.NoSeed,
		}}, gen.params)
	})

	t.Run("json inputs", func(t *testing.T) {
		gen := &mockGenerator{img: generated}
		n := &FluxPro11{generator: gen}

		_, err := n.Execute(ctx, Inputs{
			"prompt":           "kitten",
			"ultra_mode":       false,
			"aspect_ratio":     "3:2",
			"safety_tolerance": float64(9),
			"output_format":    "jpeg",
			"raw":              true,
			"seed":             float64(1234),
			"unused":           "ignored",
		})
		require.NoError(t, err)
		p := gen.params[0]
		assert.False(t, p.Ultra)
		assert.Equal(t, "3:2", p.AspectRatio)
		assert.Equal(t, 6, p.SafetyTolerance)
		assert.Equal(t, image.FormatJPEG, p.OutputFormat)
		assert.True(t, p.Raw)
		assert.Equal(t, int64(1234), p.Seed)
	})

	t.Run("negative tolerance is clamped", func(t *testing.T) {
		gen := &mockGenerator{img: generated}
		_, err := (&FluxPro11{generator: gen}).Execute(ctx, Inputs{"prompt": "kitten", "safety_tolerance": -3})
		require.NoError(t, err)
		assert.Equal(t, 0, gen.params[0].SafetyTolerance)
	})

	t.Run("generation failure is not an error", func(t *testing.T) {
		gen := &mockGenerator{err: errBoom}
		out, err := (&FluxPro11{generator: gen}).Execute(ctx, Inputs{})
		require.NoError(t, err)
		assert.Equal(t, tensor.Placeholder(), out.Values[0].(*tensor.Image))
		assert.ErrorIs(t, out.Fallback, errBoom)
	})

	t.Run("black image is not a fallback", func(t *testing.T) {
		gen := &mockGenerator{img: tensor.New(1, 512, 512)}
		out, err := (&FluxPro11{generator: gen}).Execute(ctx, Inputs{"prompt": "night sky"})
		require.NoError(t, err)
		assert.NoError(t, out.Fallback)
	})

	t.Run("invalid inputs", func(t *testing.T) {
		tests := []Inputs{
			{"aspect_ratio": "5:4"},
			{"output_format": "webp"},
			{"ultra_mode": "yes"},
			{"seed": 1.5},
			{"seed": 1e30},
			{"seed": -1e30},
			{"seed": math.Inf(1)},
			{"prompt": 42},
		}
		for _, in := range tests {
			gen := &mockGenerator{img: generated}
			_, err := (&FluxPro11{generator: gen}).Execute(ctx, in)
			assert.ErrorIs(t, err, ErrInvalidInput, "%v", in)
			assert.Empty(t, gen.params)
		}
	})
}

func TestSaveImage_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads every batch item", func(t *testing.T) {
		up := &memUploader{}
		inv := &recordingInvalidator{}
		r := newRegistry(t, &mockGenerator{}, up, inv)
		n, err := r.Get("SaveImage")
		require.NoError(t, err)

		images := tensor.New(2, 3, 4)
		images.Data[0] = 1

		out, err := n.Execute(ctx, Inputs{"images": images, "filename_prefix": "cat", "prompt": "kitten"})
		require.NoError(t, err)

		names := out.Values[0].([]string)
		require.Len(t, names, 2)
		assert.NotEqual(t, names[0], names[1])
		for i, name := range names {
			assert.True(t, strings.HasPrefix(name, "cat_20261018_"), name)
			assert.True(t, strings.HasSuffix(name, ".png"), name)

			u := up.uploads[name]
			assert.Equal(t, "image/png", u.ContentType)
			assert.Equal(t, "kitten", u.Metadata["prompt"])
			assert.Equal(t, "4", u.Metadata["width"])
			assert.Equal(t, "3", u.Metadata["height"])
			assert.Equal(t, []string{"0", "1"}[i], u.Metadata["index"])

			decoded, err := png.Decode(bytes.NewReader(u.Data))
			require.NoError(t, err)
			assert.Equal(t, 4, decoded.Bounds().Dx())
			assert.Equal(t, 3, decoded.Bounds().Dy())
		}

		require.Len(t, inv.paths, 1)
		assert.Equal(t, []string{"/" + names[0], "/" + names[1]}, inv.paths[0])
	})

	t.Run("missing images", func(t *testing.T) {
		r := newRegistry(t, &mockGenerator{}, &memUploader{}, &recordingInvalidator{})
		n, _ := r.Get("SaveImage")
		_, err := n.Execute(ctx, Inputs{})
		assert.ErrorIs(t, err, ErrMissingInput)
	})

	t.Run("upload failure skips invalidation", func(t *testing.T) {
		inv := &recordingInvalidator{}
		r := newRegistry(t, &mockGenerator{}, &memUploader{err: errBoom}, inv)
		n, _ := r.Get("SaveImage")
		_, err := n.Execute(ctx, Inputs{"images": tensor.Placeholder()})
		assert.True(t, errors.Is(err, errBoom))
		assert.Empty(t, inv.paths)
	})
}
