package image

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dmorgan81/fluxnode/internal/credential"
	"github.com/dmorgan81/fluxnode/internal/log"
	"github.com/dmorgan81/fluxnode/internal/tensor"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const (
	ultraModel    = "flux-pro-1.1-ultra"
	standardModel = "flux-pro-1.1"

	// DefaultMaxBodySize bounds any response body, samples included.
	DefaultMaxBodySize int64 = 64 << 20
)

type Status string

const (
	StatusPending Status = "Pending"
	StatusReady   Status = "Ready"
	StatusFailed  Status = "Error"
)

type Task struct {
	ID     string
	Format Format
}

type ultraRequest struct {
	Prompt          string `json:"prompt"`
	AspectRatio     string `json:"aspect_ratio"`
	SafetyTolerance int    `json:"safety_tolerance"`
	OutputFormat    Format `json:"output_format"`
	Raw             bool   `json:"raw"`
	Seed            *int64 `json:"seed,omitempty"`
}

type standardRequest struct {
	Prompt          string `json:"prompt"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	SafetyTolerance int    `json:"safety_tolerance"`
	OutputFormat    Format `json:"output_format"`
	Seed            *int64 `json:"seed,omitempty"`
}

type resultResponse struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Result struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

func (p Params) request() (string, any) {
	var seed *int64
	if p.Seed != NoSeed {
		seed = lo.ToPtr(p.Seed)
	}

	if p.Ultra {
		return ultraModel, ultraRequest{
			Prompt:          p.Prompt,
			AspectRatio:     p.AspectRatio,
			SafetyTolerance: p.SafetyTolerance,
			OutputFormat:    p.OutputFormat,
			Raw:             p.Raw,
			Seed:            seed,
		}
	}

	dims := DimensionsFor(p.AspectRatio)
	return standardModel, standardRequest{
		Prompt:          p.Prompt,
		Width:           dims.Width,
		Height:          dims.Height,
		SafetyTolerance: p.SafetyTolerance,
		OutputFormat:    p.OutputFormat,
		Seed:            seed,
	}
}

type FluxGenerator struct {
	Client      *http.Client
	BaseURL     *url.URL
	Key         credential.Key
	MaxAttempts int
	Interval    time.Duration
	MaxBodySize int64
}

func NewFluxGenerator(i *do.Injector) (Generator, error) {
	base, err := url.Parse(do.MustInvokeNamed[string](i, "base_url"))
	if err != nil {
		return nil, err
	}
	return &FluxGenerator{
		Client:      do.MustInvoke[*http.Client](i),
		BaseURL:     base,
		Key:         do.MustInvoke[credential.Key](i),
		MaxAttempts: do.MustInvokeNamed[int](i, "max_attempts"),
		Interval:    do.MustInvokeNamed[time.Duration](i, "poll_interval"),
	}, nil
}

func (g *FluxGenerator) Generate(ctx context.Context, params Params) (*tensor.Image, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("flux")

	img, err := g.generate(ctx, params)
	if err != nil {
		log.Error("generation failed, returning placeholder", "error", err)
		return tensor.Placeholder(), err
	}
	log.Info("generated image", "width", img.Width, "height", img.Height)
	return img, nil
}

func (g *FluxGenerator) generate(ctx context.Context, params Params) (*tensor.Image, error) {
	task, err := g.Submit(ctx, params)
	if err != nil {
		return nil, err
	}
	return g.Poll(ctx, task)
}

func (g *FluxGenerator) Submit(ctx context.Context, params Params) (Task, error) {
	if params.Prompt == "" {
		return Task{}, ErrEmptyPrompt
	}
	if g.Key.IsZero() {
		return Task{}, ErrMissingKey
	}

	model, payload := params.request()
	endpoint := g.BaseURL.JoinPath("v1", model).String()

	log := log.FromContextOrDiscard(ctx).WithGroup("flux")
	log.Info("submitting generation task", "endpoint", endpoint, "params", params)

	body, err := json.Marshal(payload)
	if err != nil {
		return Task{}, &RequestError{Op: "submit", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Task{}, &RequestError{Op: "submit", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := g.do(req, "submit", true)
	if err != nil {
		return Task{}, err
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return Task{}, &RequestError{Op: "submit", Err: errEmptyResponse}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return Task{}, &RequestError{Op: "submit", Err: err}
	}
	if len(out) == 0 {
		return Task{}, &RequestError{Op: "submit", Err: errEmptyResponse}
	}
	id, _ := out["id"].(string)
	if id == "" {
		return Task{}, &RequestError{Op: "submit", Err: errNoTaskID}
	}

	log.Info("task id received", "task", id)
	return Task{ID: id, Format: params.OutputFormat}, nil
}

// Poll checks the task status up to MaxAttempts times, waiting Interval after
// every Pending answer. Any other outcome ends polling immediately.
func (g *FluxGenerator) Poll(ctx context.Context, task Task) (*tensor.Image, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("flux").With("task", task.ID)

	for attempt := 1; ; attempt++ {
		if attempt > g.MaxAttempts {
			return nil, &ExhaustedError{TaskID: task.ID, Attempts: g.MaxAttempts}
		}

		res, err := g.result(ctx, task.ID)
		if err != nil {
			return nil, err
		}

		switch res.Status {
		case StatusReady:
			if res.Result.Sample == "" {
				return nil, &RequestError{Op: "result", Err: errNoSample}
			}
			return g.download(ctx, res.Result.Sample, task.Format)
		case StatusPending:
			log.Info("image not ready, retrying", "attempt", attempt, "interval", g.Interval)
			if err := wait(ctx, g.Interval); err != nil {
				return nil, &RequestError{Op: "result", Err: err}
			}
		default:
			return nil, &StatusError{TaskID: task.ID, Status: res.Status}
		}
	}
}

func (g *FluxGenerator) result(ctx context.Context, id string) (*resultResponse, error) {
	endpoint := g.BaseURL.JoinPath("v1", "get_result")
	endpoint.RawQuery = url.Values{"id": {id}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, &RequestError{Op: "result", Err: err}
	}

	data, err := g.do(req, "result", true)
	if err != nil {
		return nil, err
	}

	var res resultResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, &RequestError{Op: "result", Err: err}
	}
	return &res, nil
}

func (g *FluxGenerator) download(ctx context.Context, sample string, format Format) (*tensor.Image, error) {
	log.FromContextOrDiscard(ctx).WithGroup("flux").Info("downloading sample", "format", format)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sample, nil)
	if err != nil {
		return nil, &RequestError{Op: "download", Err: err}
	}

	// The sample URL is pre-signed and must not carry the key.
	data, err := g.do(req, "download", false)
	if err != nil {
		return nil, err
	}

	img, err := Transcode(data, format)
	if err != nil {
		return nil, err
	}
	return tensor.FromImage(img), nil
}

func (g *FluxGenerator) do(req *http.Request, op string, authorize bool) ([]byte, error) {
	if authorize {
		req.Header.Set("accept", "application/json")
		req.Header.Set("x-key", g.Key.Value())
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	limit := lo.Ternary(g.MaxBodySize > 0, g.MaxBodySize, DefaultMaxBodySize)
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	if int64(len(data)) > limit {
		return nil, &RequestError{Op: op, StatusCode: resp.StatusCode, Err: errBodyTooLarge}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RequestError{Op: op, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
