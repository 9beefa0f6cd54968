package image

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	ErrMissingKey  = errors.New("api key not configured")

	errEmptyResponse = errors.New("empty response received from server")
	errNoTaskID      = errors.New("no task id received in response")
	errNoSample      = errors.New("no sample url in response")
	errBodyTooLarge  = errors.New("response body too large")
)

type RequestError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("flux %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("flux %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("flux decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type ExhaustedError struct {
	TaskID   string
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("flux task %s still pending after %d attempts", e.TaskID, e.Attempts)
}

type StatusError struct {
	TaskID string
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("flux task %s: unexpected status %q", e.TaskID, e.Status)
}
