package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/cfd24/hoyolab-auto/internal/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and returns a ConfigError describing
// every violated field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewConfigError(apperrors.Validation, "", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
	}

	return apperrors.NewConfigError(apperrors.Validation, "", errors.New(strings.Join(msgs, "; ")))
}
