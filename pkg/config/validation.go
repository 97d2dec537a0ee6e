package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/fxd/pkg/protocol"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg against its struct tags and the cross-field rules the
// tags cannot express. Every violation is reported, one per line, as
// "<Namespace>: failed '<tag>' validation".
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	var problems []string

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, formatFieldError(fe))
		}
	}

	if cfg.Server.MaxLineLength != 0 && cfg.Server.MaxLineLength < 8 {
		problems = append(problems, fmt.Sprintf(
			"Config.Server.MaxLineLength: must be at least 8 bytes, got %s", cfg.Server.MaxLineLength))
	}
	if cfg.Server.MaxLineLength > 64*protocol.DefaultMaxLineLength {
		problems = append(problems, fmt.Sprintf(
			"Config.Server.MaxLineLength: must be at most %d bytes, got %s",
			64*protocol.DefaultMaxLineLength, cfg.Server.MaxLineLength))
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Server.Port {
		problems = append(problems, fmt.Sprintf(
			"Config.Metrics.Port: conflicts with server port %d", cfg.Server.Port))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "\n"))
	}
	return nil
}

func formatFieldError(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fmt.Sprintf("%s: failed '%s=%s' validation (value %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s: failed '%s' validation", fe.Namespace(), fe.Tag())
}
