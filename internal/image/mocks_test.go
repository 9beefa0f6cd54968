package image

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dmorgan81/fluxnode/internal/credential"
	"github.com/stretchr/testify/require"
)

const testKey = "test-key"

// fakeBFL serves the submit, get_result and sample endpoints.
type fakeBFL struct {
	mu sync.Mutex

	submitCode int
	submitBody string

	resultCode int
	statuses   []Status

	sample     []byte
	sampleCode int

	submits    []map[string]any
	submitPath []string
	polls      int
	downloads  int
	keys       map[string][]string

	srv *httptest.Server
}

func newFakeBFL(t *testing.T) *fakeBFL {
	t.Helper()
	f := &fakeBFL{
		submitCode: http.StatusOK,
		submitBody: `{"id":"task-1"}`,
		resultCode: http.StatusOK,
		statuses:   []Status{StatusReady},
		sample:     samplePNG(t, 8, 4),
		sampleCode: http.StatusOK,
		keys:       map[string][]string{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBFL) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost:
		f.keys["submit"] = append(f.keys["submit"], r.Header.Get("x-key"))
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.submits = append(f.submits, body)
		f.submitPath = append(f.submitPath, r.URL.Path)
		w.WriteHeader(f.submitCode)
		_, _ = w.Write([]byte(f.submitBody))

	case r.URL.Path == "/v1/get_result":
		f.keys["result"] = append(f.keys["result"], r.Header.Get("x-key"))
		status := f.statuses[min(f.polls, len(f.statuses)-1)]
		f.polls++
		w.WriteHeader(f.resultCode)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     r.URL.Query().Get("id"),
			"status": status,
			"result": map[string]string{"sample": f.srv.URL + "/sample"},
		})

	case r.URL.Path == "/sample":
		f.keys["download"] = append(f.keys["download"], r.Header.Get("x-key"))
		f.downloads++
		w.WriteHeader(f.sampleCode)
		_, _ = w.Write(f.sample)

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBFL) generator(t *testing.T) *FluxGenerator {
	t.Helper()
	base, err := url.Parse(f.srv.URL)
	require.NoError(t, err)
	key, err := credential.New(testKey)
	require.NoError(t, err)
	return &FluxGenerator{
		Client:      f.srv.Client(),
		BaseURL:     base,
		Key:         key,
		MaxAttempts: 10,
		Interval:    time.Millisecond,
	}
}

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 60), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testParams() Params {
	return Params{
		Prompt:          "a kitten in a teacup",
		Ultra:           true,
		AspectRatio:     "16:9",
		SafetyTolerance: 6,
		OutputFormat:    FormatPNG,
		Seed:            NoSeed,
	}
}

func mustDecode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}
