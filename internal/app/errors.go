package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

var (
	ErrAlreadyMounted = errors.New("controller already mounted")
	ErrNotMounted     = errors.New("controller not mounted")
)

// errorMessage extracts the user visible message of err, falling back to a
// stringified representation when err carries no message.
func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	if msg := err.Error(); strings.TrimSpace(msg) != "" {
		return msg
	}
	if raw, mErr := json.Marshal(err); mErr == nil && string(raw) != "{}" && string(raw) != "null" {
		return string(raw)
	}
	return fmt.Sprintf("%#v", err)
}
