package lead

import "fmt"

// ValidationError reports missing or empty required input. Handlers surface it
// as a 400 with the message and, where helpful, an example payload.
type ValidationError struct {
	Message string
	Example string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports a failed resolution by id or case_code.
type NotFoundError struct {
	Ref string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("lead not found: %s", e.Ref) }

// StoreError wraps any failure from the underlying store, including schema
// mismatches. Hint carries likely remediation for the caller.
type StoreError struct {
	Op   string
	Err  error
	Hint string
}

func (e *StoreError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) *StoreError {
	return &StoreError{
		Op:   op,
		Err:  err,
		Hint: "check that the leads table and its columns exist and migrations have run",
	}
}
