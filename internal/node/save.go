package node

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/dmorgan81/fluxnode/internal/log"
	"github.com/dmorgan81/fluxnode/internal/store"
	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type SaveImage struct {
	uploader    store.Uploader
	invalidator store.Invalidator
	now         func() time.Time
}

func NewSaveImage(i *do.Injector) (*SaveImage, error) {
	return &SaveImage{
		uploader:    do.MustInvoke[store.Uploader](i),
		invalidator: do.MustInvoke[store.Invalidator](i),
		now:         time.Now,
	}, nil
}

func (n *SaveImage) Spec() Spec {
	return Spec{
		DisplayName: "Save Image",
		Category:    Category,
		Function:    "save_images",
		Required: []Input{
			{Name: "images", Type: TypeImage},
			{Name: "filename_prefix", Type: TypeString, Default: "flux"},
		},
		Optional: []Input{
			{Name: "prompt", Type: TypeString, Default: ""},
		},
		Output: true,
	}
}

func (n *SaveImage) Execute(ctx context.Context, raw Inputs) (Outputs, error) {
	in, err := n.Spec().Resolve(raw)
	if err != nil {
		return Outputs{}, err
	}
	images := in.Image("images")
	prefix := in.String("filename_prefix")
	date := n.now().UTC().Format("20060102")

	log := log.FromContextOrDiscard(ctx).WithGroup("SaveImage").With("prefix", prefix, "batch", images.Batch)
	log.Info("saving images")

	names := make([]string, images.Batch)
	group, gctx := errgroup.WithContext(ctx)
	for b := range names {
		b := b
		names[b] = fmt.Sprintf("%s_%s_%s.png", prefix, date, uuid.NewString()[:8])
		group.Go(func() error {
			frame, err := images.At(b)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := imaging.Encode(&buf, frame, imaging.PNG); err != nil {
				return err
			}

			metadata := map[string]string{
				"date":   date,
				"index":  strconv.Itoa(b),
				"width":  strconv.Itoa(images.Width),
				"height": strconv.Itoa(images.Height),
			}
			if p := in.String("prompt"); p != "" {
				metadata["prompt"] = p
			}

			return n.uploader.Upload(gctx, store.UploadParams{
				Name:        names[b],
				Data:        buf.Bytes(),
				ContentType: "image/png",
				Metadata:    metadata,
			})
		})
	}
	if err := group.Wait(); err != nil {
		return Outputs{}, err
	}

	paths := lo.Map(names, func(name string, _ int) string { return "/" + name })
	if err := n.invalidator.Invalidate(ctx, paths); err != nil {
		return Outputs{}, err
	}

	return Outputs{Values: []any{names}}, nil
}
