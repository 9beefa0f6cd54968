package node

import (
	"context"
	"errors"
	"sync"

	"github.com/dmorgan81/fluxnode/internal/image"
	"github.com/dmorgan81/fluxnode/internal/store"
	"github.com/dmorgan81/fluxnode/internal/tensor"
)

type mockGenerator struct {
	params []image.Params
	img    *tensor.Image
	err    error
}

func (m *mockGenerator) Generate(_ context.Context, p image.Params) (*tensor.Image, error) {
	m.params = append(m.params, p)
	if m.err != nil {
		return tensor.Placeholder(), m.err
	}
	return m.img, nil
}

type memUploader struct {
	mu      sync.Mutex
	uploads map[string]store.UploadParams
	err     error
}

func (m *memUploader) Upload(_ context.Context, p store.UploadParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.uploads == nil {
		m.uploads = map[string]store.UploadParams{}
	}
	m.uploads[p.Name] = p
	return nil
}

type recordingInvalidator struct {
	paths [][]string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, paths []string) error {
	r.paths = append(r.paths, paths)
	return nil
}

var errBoom = errors.New("boom")
