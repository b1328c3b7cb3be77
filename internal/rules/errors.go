package rules

import "fmt"

// ErrInvalidRegex reports a regex option whose pattern does not compile.
type ErrInvalidRegex struct {
	Section string
	Option  string
	Pattern string
	Err     error
}

func (e *ErrInvalidRegex) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("invalid regex in option %s: %q: %v", e.Option, e.Pattern, e.Err)
	}
	return fmt.Sprintf("invalid regex in [%s] option %s: %q: %v", e.Section, e.Option, e.Pattern, e.Err)
}

func (e *ErrInvalidRegex) Unwrap() error {
	return e.Err
}
