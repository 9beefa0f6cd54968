package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/ini.v1"
)

const (
	EnvPath     = "FLUXNODE_CONFIG"
	DefaultFile = "config.ini"

	DefaultMaxAttempts  = 10
	DefaultPollInterval = 5 * time.Second
	DefaultTimeout      = 30 * time.Second
	DefaultDir          = "output"
)

var (
	ErrNotFound       = errors.New("config file not found")
	ErrMissingSection = errors.New("section not found")
	ErrMissingKey     = errors.New("key not found")
	ErrInvalidValue   = errors.New("invalid value")
)

type Error struct {
	Path    string
	Section string
	Key     string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Key != "":
		return fmt.Sprintf("config %s: [%s] %s: %v", e.Path, e.Section, e.Key, e.Err)
	case e.Section != "":
		return fmt.Sprintf("config %s: [%s]: %v", e.Path, e.Section, e.Err)
	default:
		return fmt.Sprintf("config %s: %v", e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Config struct {
	BaseURL  string
	Key      string
	KeyParam string

	MaxAttempts  int
	PollInterval time.Duration
	Timeout      time.Duration

	Bucket       string
	Distribution string
	Dir          string

	LogLevel string
}

func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	exe, err := os.Executable()
	if err != nil {
		return DefaultFile
	}
	return filepath.Join(filepath.Dir(exe), DefaultFile)
}

func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Path: path, Err: ErrNotFound}
		}
		return nil, &Error{Path: path, Err: err}
	}

	file, err := ini.LoadSources(ini.LoadOptions{InsensitiveKeys: true}, path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	api, err := file.GetSection("API")
	if err != nil {
		return nil, &Error{Path: path, Section: "API", Err: ErrMissingSection}
	}

	cfg := &Config{}
	if cfg.BaseURL, err = required(path, api, "BASE_URL"); err != nil {
		return nil, err
	}
	if u, err := url.Parse(cfg.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &Error{Path: path, Section: "API", Key: "BASE_URL", Err: ErrInvalidValue}
	}

	cfg.KeyParam = api.Key("X_KEY_PARAM").String()
	if cfg.KeyParam == "" {
		if cfg.Key, err = required(path, api, "X_KEY"); err != nil {
			return nil, err
		}
	} else {
		cfg.Key = api.Key("X_KEY").String()
	}

	poll := file.Section("POLL")
	cfg.MaxAttempts = poll.Key("MAX_ATTEMPTS").MustInt(DefaultMaxAttempts)
	if cfg.MaxAttempts < 1 {
		return nil, &Error{Path: path, Section: "POLL", Key: "MAX_ATTEMPTS", Err: ErrInvalidValue}
	}
	if cfg.PollInterval, err = duration(path, poll, "INTERVAL", DefaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = duration(path, poll, "TIMEOUT", DefaultTimeout); err != nil {
		return nil, err
	}

	output := file.Section("OUTPUT")
	cfg.Bucket = output.Key("BUCKET").String()
	cfg.Distribution = output.Key("DISTRIBUTION").String()
	cfg.Dir = output.Key("DIR").MustString(DefaultDir)

	cfg.LogLevel = file.Section("LOG").Key("LEVEL").MustString("info")

	return cfg, nil
}

func required(path string, sec *ini.Section, key string) (string, error) {
	if !sec.HasKey(key) {
		return "", &Error{Path: path, Section: sec.Name(), Key: key, Err: ErrMissingKey}
	}
	v := sec.Key(key).String()
	if v == "" {
		return "", &Error{Path: path, Section: sec.Name(), Key: key, Err: fmt.Errorf("%w: cannot be empty", ErrInvalidValue)}
	}
	return v, nil
}

func duration(path string, sec *ini.Section, key string, def time.Duration) (time.Duration, error) {
	if !sec.HasKey(key) {
		return def, nil
	}
	d, err := sec.Key(key).Duration()
	if err != nil || d < 0 {
		return 0, &Error{Path: path, Section: sec.Name(), Key: key, Err: ErrInvalidValue}
	}
	return d, nil
}
