package task

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/cyp0633/libtaskrec/model"
)

var (
	// ErrNotFound is returned when no task has the given ID.
	ErrNotFound = errors.New("task not found")
	// ErrInvalidTask is wrapped by every *ValidationError.
	ErrInvalidTask = errors.New("invalid task")
	// ErrPermissionDenied is returned when the scheduler refuses to deliver reminders.
	ErrPermissionDenied = errors.New("notification permission not granted")
	// ErrNoScheduler is returned when notifications are enabled without a scheduler.
	ErrNoScheduler = errors.New("no notification scheduler configured")
	// ErrNoPublisher is returned when calendar integration is enabled without a publisher.
	ErrNoPublisher = errors.New("no calendar publisher configured")
)

// ValidationError lists the offending fields by their JSON names.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrInvalidTask, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidTask
}

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateTask(v *validator.Validate, t model.Task) error {
	err := v.Struct(t)
	if err == nil {
		return nil
	}

	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}

	fields := make(map[string]string, len(valErrs))
	for _, fe := range valErrs {
		fields[fieldPath(fe)] = formatValidationError(fe)
	}
	return &ValidationError{Fields: fields}
}

// fieldPath drops the struct name from the namespace, "Task.recurrenceDetails.days[0]"
// becomes "recurrenceDetails.days[0]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
