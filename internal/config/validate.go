package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/procwarden/procwarden/internal/worker"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	if len(cfg.Workers) == 0 && !cfg.PrintSpecs {
		errs = append(errs, ValidationError{
			Field:   "workers",
			Message: "at least one worker is required",
		})
	}

	// Worker identity is the executable path: the same path supervised
	// twice would mean duplicate keep-alive loops.
	seen := make(map[string]bool, len(cfg.Workers))
	for i, wc := range cfg.Workers {
		field := fmt.Sprintf("workers[%d]", i)

		if wc.Path == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".path",
				Message: "executable path is required",
			})
			continue
		}
		if seen[wc.Path] {
			errs = append(errs, ValidationError{
				Field:   field + ".path",
				Message: fmt.Sprintf("duplicate worker path %q", wc.Path),
			})
		}
		seen[wc.Path] = true

		if _, err := worker.ParsePrivilege(wc.Privilege); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".privilege",
				Message: err.Error(),
			})
		}
		if _, err := worker.ParseRunMode(wc.Mode); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".mode",
				Message: err.Error(),
			})
		}
		if wc.RestartDelay < 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".restart_delay",
				Message: "must not be negative",
			})
		}
	}

	// Restart policy
	validPolicies := map[string]bool{"fixed": true, "backoff": true}
	if !validPolicies[cfg.RestartPolicy] {
		errs = append(errs, ValidationError{
			Field:   "restart_policy",
			Message: fmt.Sprintf("must be 'fixed' or 'backoff' (got %q)", cfg.RestartPolicy),
		})
	}
	if cfg.RestartDelay <= 0 {
		errs = append(errs, ValidationError{
			Field:   "restart_delay",
			Message: "must be positive",
		})
	}
	if cfg.MaxRestarts < 0 {
		errs = append(errs, ValidationError{
			Field:   "max_restarts",
			Message: "must not be negative (0 = unlimited)",
		})
	}
	if cfg.BackoffInitial <= 0 {
		errs = append(errs, ValidationError{
			Field:   "backoff_initial",
			Message: "must be positive",
		})
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		errs = append(errs, ValidationError{
			Field:   "backoff_max",
			Message: "must be >= backoff_initial",
		})
	}
	if cfg.BackoffMultiply < 1.0 {
		errs = append(errs, ValidationError{
			Field:   "backoff_multiply",
			Message: "must be >= 1.0",
		})
	}

	// Maintenance: the flush loop is enabled by upload_url.
	if cfg.UploadURL != "" {
		if err := validateURL(cfg.UploadURL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "upload_url",
				Message: err.Error(),
			})
		}
		if cfg.FlushInterval <= 0 {
			errs = append(errs, ValidationError{
				Field:   "flush_interval",
				Message: "must be positive when upload_url is set",
			})
		}
		if cfg.SpoolPath == "" {
			errs = append(errs, ValidationError{
				Field:   "spool_path",
				Message: "required when upload_url is set",
			})
		}
	}

	// Launcher
	if cfg.StderrTailLines < 0 {
		errs = append(errs, ValidationError{
			Field:   "stderr_tail_lines",
			Message: "must not be negative",
		})
	}
	if cfg.StopGrace <= 0 {
		errs = append(errs, ValidationError{
			Field:   "stop_grace",
			Message: "must be positive",
		})
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// validateURL checks if the URL is valid and uses http or https.
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https (got %q)", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must have a host")
	}

	return nil
}
