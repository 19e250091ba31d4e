package model

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	checker     *validator.Validate
	checkerOnce sync.Once
)

// Check validates a request or configuration struct against its validate
// tags and folds violations into the trust-error taxonomy. The validator
// is compiled once per process; violation messages carry the field's JSON
// wire name so they line up with what the caller sent.
func Check(s any) error {
	checkerOnce.Do(func() {
		checker = validator.New(validator.WithRequiredStructEnabled())
		checker.RegisterTagNameFunc(wireName)
	})

	if err := checker.Struct(s); err != nil {
		return NewErrorFromError(err)
	}

	return nil
}

func wireName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}
