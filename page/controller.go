package page

import (
	"context"
	"sync"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// ErrBusy is returned by Submit while a previous submission is running.
var ErrBusy = errors.New("a request is already in progress")

// Action runs a page's work on the completed form values.
type Action[T any] func(ctx context.Context, values map[string]string) (*T, error)

// State is a snapshot of a controller.
type State[T any] struct {
	Values  map[string]string `json:"values"`
	Loading bool              `json:"loading"`
	Result  *T                `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
	Modal   Modal             `json:"modal"`
}

// Controller drives one page.
type Controller[T any] struct {
	form   Form
	action Action[T]

	mu      sync.Mutex
	values  map[string]string
	loading bool
	result  *T
	errMsg  string
	modal   Modal
}

// NewController returns a controller with an empty form.
func NewController[T any](form Form, action Action[T]) *Controller[T] {
	return &Controller[T]{
		form:   form,
		action: action,
		values: make(map[string]string),
	}
}

// Form returns the form description.
func (c *Controller[T]) Form() Form {
	return c.form
}

// Set stores a field value as typed.
func (c *Controller[T]) Set(name, value string) error {
	if !c.form.accepts(name) {
		return errors.NewValidationError(name, "not a field of the "+c.form.Name+" form", value)
	}
	c.mu.Lock()
	c.values[name] = value
	c.mu.Unlock()
	return nil
}

// SetAll stores several field values.
func (c *Controller[T]) SetAll(values map[string]string) error {
	for name, v := range values {
		if err := c.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Submit validates the form and runs the action. A blank required field shows
// the modal and returns a MissingFieldsError without running the action.
func (c *Controller[T]) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	if missing := c.form.Missing(c.values); len(missing) > 0 {
		c.modal = validationModal()
		c.mu.Unlock()
		return errors.NewMissingFieldsError(c.form.Name, missing)
	}
	values := c.form.Complete(c.values)
	c.loading = true
	c.errMsg = ""
	c.mu.Unlock()

	res, err := c.action(ctx, values)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.result = nil
		c.errMsg = c.form.failure(err)
		return err
	}
	c.result = res
	return nil
}

// DismissModal hides the validation modal.
func (c *Controller[T]) DismissModal() {
	c.mu.Lock()
	c.modal = Modal{}
	c.mu.Unlock()
}

// Clear empties the form, the result and the error.
func (c *Controller[T]) Clear() {
	c.mu.Lock()
	c.values = make(map[string]string)
	c.result = nil
	c.errMsg = ""
	c.mu.Unlock()
}

// State returns a snapshot.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	values := make(map[string]string, len(c.values))
	for k, v := range c.values {
		values[k] = v
	}
	return State[T]{
		Values:  values,
		Loading: c.loading,
		Result:  c.result,
		Error:   c.errMsg,
		Modal:   c.modal,
	}
}
