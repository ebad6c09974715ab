package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules of the selected
// backend.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}

	return validateBackend(&cfg.Backend)
}

func validateBackend(cfg *BackendConfig) error {
	switch cfg.Type {
	case "s3":
		if cfg.S3.Bucket == "" {
			return errors.New("backend.s3.bucket is required for the s3 backend")
		}
		if (cfg.S3.AccessKeyID == "") != (cfg.S3.SecretAccessKey == "") {
			return errors.New("backend.s3.access_key_id and backend.s3.secret_access_key must be set together")
		}
	case "badger":
		if cfg.Badger.Path == "" && !cfg.Badger.InMemory {
			return errors.New("backend.badger.path is required unless backend.badger.in_memory is set")
		}
	}
	return nil
}

// formatValidationErrors renders field errors as "Field: failed 'tag' (param)".
func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s' (%s), got %v", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s'", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
