package inject

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/fluxnode/internal/config"
	"github.com/dmorgan81/fluxnode/internal/credential"
	"github.com/dmorgan81/fluxnode/internal/handler"
	"github.com/dmorgan81/fluxnode/internal/image"
	"github.com/dmorgan81/fluxnode/internal/log"
	"github.com/dmorgan81/fluxnode/internal/node"
	"github.com/dmorgan81/fluxnode/internal/param"
	"github.com/dmorgan81/fluxnode/internal/store"
	"github.com/samber/do"
)

func Setup(ctx context.Context, cfg *config.Config) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*cloudfront.Client](injector, func(i *do.Injector) (*cloudfront.Client, error) {
		return cloudfront.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.ProvideValue[*http.Client](injector, &http.Client{Timeout: cfg.Timeout})

	do.ProvideNamedValue[string](injector, "base_url", cfg.BaseURL)
	do.ProvideNamedValue[int](injector, "max_attempts", cfg.MaxAttempts)
	do.ProvideNamedValue[time.Duration](injector, "poll_interval", cfg.PollInterval)
	do.ProvideNamedValue[string](injector, "bucket", cfg.Bucket)
	do.ProvideNamedValue[string](injector, "distribution", cfg.Distribution)
	do.ProvideNamedValue[string](injector, "output_dir", cfg.Dir)

	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)
	do.Provide[credential.Key](injector, func(i *do.Injector) (credential.Key, error) {
		value := cfg.Key
		if value == "" && cfg.KeyParam != "" {
			v, err := do.MustInvoke[param.Fetcher](i).Fetch(ctx, cfg.KeyParam)
			if err != nil {
				return credential.Key{}, err
			}
			value = v
		}
		// A blank key is left unset; generation then fails without calling the API.
		key, _ := credential.New(value)
		return key, nil
	})

	do.Provide[image.Generator](injector, image.NewFluxGenerator)
	do.Provide[store.Uploader](injector, func(i *do.Injector) (store.Uploader, error) {
		if cfg.Bucket == "" {
			return store.NewFileUploader(i)
		}
		return store.NewS3Uploader(i)
	})
	do.Provide[store.Invalidator](injector, func(i *do.Injector) (store.Invalidator, error) {
		if cfg.Distribution == "" {
			return store.NopInvalidator{}, nil
		}
		return store.NewCloudFrontInvalidator(i)
	})

	do.Provide[*node.FluxPro11](injector, node.NewFluxPro11)
	do.Provide[*node.SaveImage](injector, node.NewSaveImage)
	do.Provide[*node.Registry](injector, node.NewRegistry)
	do.Provide[*handler.Handler](injector, handler.NewHandler)

	return injector
}
