package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ValidationError is one invalid configuration field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid field
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration after overrides have been applied
func (c *Config) Validate() error {
	var errs ValidationErrors
	if c.AdbPath == "" {
		errs = append(errs, ValidationError{Field: "adb_path", Message: "cannot be empty"})
	}
	if c.Shell == "" {
		errs = append(errs, ValidationError{Field: "shell", Message: "cannot be empty"})
	}
	if c.TimeoutSeconds < 1 || c.TimeoutSeconds > 600 {
		errs = append(errs, ValidationError{
			Field:   "timeout_seconds",
			Message: fmt.Sprintf("must be between 1 and 600, got %d", c.TimeoutSeconds),
		})
	}
	if c.LaunchRate < 0 {
		errs = append(errs, ValidationError{Field: "launch_rate", Message: "cannot be negative"})
	}
	if c.Log.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
			errs = append(errs, ValidationError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
