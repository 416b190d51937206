package errors

import "fmt"

func InvalidParamsErr(err error) error {
	return E(Invalid, "invalid params", err)
}

func EmptyParamErr(field string) error {
	ve := ValidationErrs()
	ve.Add(field, "cannot be empty")
	return E(Invalid, "validation failed", ve.Err())
}

// PersistenceErr wraps a failure of the downstream store for the named target.
func PersistenceErr(target, day string, err error) error {
	return E(Persistence, fmt.Sprintf("persist %s for %s", target, day), err)
}

// SourceErr wraps a failure of the upstream record source.
func SourceErr(day string, err error) error {
	return E(Source, fmt.Sprintf("load raw records for %s", day), err)
}

// RunInProgressErr is returned when a second run for the same day is attempted.
func RunInProgressErr(day string) error {
	return E(Conflict, fmt.Sprintf("a pipeline run for %s is already in progress", day), nil)
}

// NotFoundErr reports a missing resource.
func NotFoundErr(what string) error {
	return E(NotFound, fmt.Sprintf("%s not found", what), nil)
}
