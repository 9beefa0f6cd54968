package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dmorgan81/fluxnode/internal/log"
	"github.com/samber/do"
)

type UploadParams struct {
	Name        string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type Uploader interface {
	Upload(context.Context, UploadParams) error
}

// FileUploader writes into Dir when no bucket is configured. Metadata is not kept.
type FileUploader struct {
	Dir string
}

func NewFileUploader(i *do.Injector) (Uploader, error) {
	return &FileUploader{Dir: do.MustInvokeNamed[string](i, "output_dir")}, nil
}

func (u *FileUploader) Upload(ctx context.Context, params UploadParams) error {
	path := filepath.Join(u.Dir, filepath.Base(params.Name))
	log.FromContextOrDiscard(ctx).WithGroup("file").Info("writing", "file", path)

	if err := os.MkdirAll(u.Dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(path, params.Data, 0600)
}
