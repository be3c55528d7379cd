// Package page holds the controllers behind the model and insight pages.
//
// A controller owns one form. Submitting with a required field empty shows
// the validation modal and does nothing else. Otherwise the controller sets
// its loading flag, runs the page action once, and keeps either the result or
// an error string for display. Controllers never share state.
package page

import (
	"sort"
	"strings"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// Form describes the fields a page collects.
type Form struct {
	Name string

	// Required must be non-blank before submitting.
	Required []string

	// Optional fields fall back to these values when left blank.
	Optional map[string]string

	// Fixed are sent without being collected.
	Fixed map[string]string

	// Failure is the inline text shown when the action fails. Empty means
	// the error's own message.
	Failure string
}

// Fields lists every field the page collects, sorted.
func (f Form) Fields() []string {
	out := append([]string(nil), f.Required...)
	for name := range f.Optional {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (f Form) accepts(name string) bool {
	for _, r := range f.Required {
		if r == name {
			return true
		}
	}
	_, ok := f.Optional[name]
	return ok
}

// Missing lists the required fields that are blank in values.
func (f Form) Missing(values map[string]string) []string {
	var missing []string
	for _, name := range f.Required {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Complete merges values with the optional fallbacks and the fixed values.
func (f Form) Complete(values map[string]string) map[string]string {
	out := make(map[string]string, len(values)+len(f.Optional)+len(f.Fixed))
	for _, name := range f.Required {
		out[name] = values[name]
	}
	for name, def := range f.Optional {
		if v := strings.TrimSpace(values[name]); v != "" {
			out[name] = v
		} else {
			out[name] = def
		}
	}
	for name, v := range f.Fixed {
		out[name] = v
	}
	return out
}

// failure is the inline error text for err. Rejected input is reported as
// is; anything else uses the page's fixed text when it has one.
func (f Form) failure(err error) string {
	var ve *errors.ValidationError
	if f.Failure == "" || errors.As(err, &ve) {
		return err.Error()
	}
	return f.Failure
}

// Modal is the validation dialog.
type Modal struct {
	Visible bool   `json:"visible"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

func validationModal() Modal {
	return Modal{
		Visible: true,
		Title:   errors.ValidationModalTitle,
		Message: errors.ValidationModalMessage,
	}
}
