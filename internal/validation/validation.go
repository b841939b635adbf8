package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"makosite/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateURL checks if a URL is valid and uses an allowed scheme (http/https only).
// This prevents javascript:, data:, vbscript:, and other dangerous URL schemes.
func ValidateURL(urlStr string) (bool, string) {
	if urlStr == "" {
		return false, "URL is required"
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false, "Invalid URL format"
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, "URL must use http:// or https:// scheme"
	}

	if u.Host == "" {
		return false, "URL must have a valid host"
	}

	return true, ""
}

// ValidateLinkInput checks the fields of a new link.
func ValidateLinkInput(in models.LinkInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return errors.New("title is required")
	}
	if valid, msg := ValidateURL(in.URL); !valid {
		return errors.New(msg)
	}
	return structError(Validator().Struct(in))
}

// ValidateLinkPatch checks the fields present in a partial update.
func ValidateLinkPatch(p models.LinkPatch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return errors.New("title cannot be empty")
	}
	if p.URL != nil {
		if valid, msg := ValidateURL(*p.URL); !valid {
			return errors.New(msg)
		}
	}
	return structError(Validator().Struct(p))
}

// structError flattens validator output into a short, user-facing message.
func structError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "url":
		return field + " must be an absolute URL"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min", "max":
		return fmt.Sprintf("%s must be between %d and %d", field, models.MinPriority, models.MaxPriority)
	default:
		return field + " is invalid"
	}
}

// ValidateStruct runs the struct tags of v and returns a short message for
// the first failures found.
func ValidateStruct(v any) error {
	return structError(Validator().Struct(v))
}
