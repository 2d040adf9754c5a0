package config

import "fmt"

// FieldError names one offending path in a merged config record and why
// it failed validation.
type FieldError struct {
	Path   string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// ValidationError is configInvalid: the merged record failed schema
// validation. It is fatal to startup. It lists every offending path, not
// just the first.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "config: invalid: " + e.Errors[0].Error()
	}
	msg := fmt.Sprintf("config: invalid (%d errors):", len(e.Errors))
	for _, fe := range e.Errors {
		msg += "\n  " + fe.Error()
	}
	return msg
}

// SourceError is sourceUnreadable: a config file exists but failed to
// parse. It is fatal to startup.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("config: %s: unreadable: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
