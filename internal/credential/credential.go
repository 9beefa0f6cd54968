package credential

import (
	"errors"
	"log/slog"
	"strings"
)

var ErrEmpty = errors.New("api key cannot be empty")

type Key struct {
	value string
}

func New(value string) (Key, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Key{}, ErrEmpty
	}
	return Key{value: value}, nil
}

func (k Key) Value() string {
	return k.value
}

func (k Key) IsZero() bool {
	return k.value == ""
}

func (k Key) String() string {
	if k.IsZero() {
		return "<unset>"
	}
	return "<redacted>"
}

func (k Key) LogValue() slog.Value {
	return slog.StringValue(k.String())
}
