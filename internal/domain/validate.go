package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalize trims the content the same way the compose dialogs do.
func (r SendRequest) Normalize() SendRequest {
	r.Content = strings.TrimSpace(r.Content)
	r.Contact.ID = strings.TrimSpace(r.Contact.ID)
	return r
}

// Validate expects a normalized request.
func (r SendRequest) Validate() error { return check(r) }

func (t Template) Normalize() Template {
	t.Content = strings.TrimSpace(t.Content)
	return t
}

func (t Template) Validate() error { return check(t) }

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Namespace()), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}
