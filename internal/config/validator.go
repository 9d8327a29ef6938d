package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate validates the Config using struct tags plus the cross-field
// threshold-ordering rule the struct tags alone cannot express.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.Pipeline.Thresholds.validateOrdering(); err != nil {
		return err
	}

	return nil
}

// validateOrdering enforces the non-strict descending chain the verdict
// ladder depends on: very_high >= high >= medium >= low, each in [0,1].
func (t ThresholdsConfig) validateOrdering() error {
	if t.VeryHigh < t.High {
		return errors.New("thresholds: very_high must be >= high")
	}
	if t.High < t.Medium {
		return errors.New("thresholds: high must be >= medium")
	}
	if t.Medium < t.Low {
		return errors.New("thresholds: medium must be >= low")
	}
	return nil
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", field, tag, e.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
