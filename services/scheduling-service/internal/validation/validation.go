// Package validation builds the request validator shared by the write paths.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/clock"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
)

// New returns a validator that reports JSON field names and knows the
// "weekday" and "wallclock" tags.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, err := model.ParseWeekday(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("wallclock", func(fl validator.FieldLevel) bool {
		_, err := clock.ParseWallClock(fl.Field().String())
		return err == nil
	})
	return v
}

// AddIssues converts validator failures into field issues for row index. Errors
// that are not validation failures are returned unchanged.
func AddIssues(verr *availability.ValidationError, index int, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	for _, fe := range fieldErrs {
		verr.Add(index, fe.Field(), reason(fe))
	}
	return nil
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "weekday":
		return "must be a day of week (monday..sunday)"
	case "wallclock":
		return "must be a 24-hour HH:MM time"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
