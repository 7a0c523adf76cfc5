package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// common errors
	ErrNotFound          = errors.New("not found")
	ErrConnectionTimeout = errors.New("connection timeout")

	// credential errors
	ErrCredentialNotFound = errors.New("credential not found")
	ErrCredentialDisabled = errors.New("credential disabled")
	ErrSecretDecrypt      = errors.New("secret decryption failed")

	// scheduler errors
	ErrRunInProgress  = errors.New("collection run already in progress")
	ErrUnknownAdapter = errors.New("no adapter registered for source kind")

	// allowlist errors
	ErrAllowlistExists = errors.New("allowlist entry already exists")
)

// ConfigurationError is fatal for its source and never retried automatically:
// malformed endpoint scheme, missing required credential fields.
type ConfigurationError struct {
	Source string
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for source %s: %s", e.Source, e.Detail)
}

func NewConfigurationError(source, detail string) error {
	return &ConfigurationError{Source: source, Detail: detail}
}

// AuthenticationError covers stage failures, missing session markers and rejected
// secrets. Recorded as a failed run and retried on the next interval with backoff.
type AuthenticationError struct {
	Source string
	Stage  string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed for source %s (stage %s): %v", e.Source, e.Stage, e.Err)
	}
	return fmt.Sprintf("authentication failed for source %s (stage %s)", e.Source, e.Stage)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

func NewAuthenticationError(source, stage string, err error) error {
	return &AuthenticationError{Source: source, Stage: stage, Err: err}
}

// TransientNetworkError marks a failure worth retrying within the same run.
type TransientNetworkError struct {
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient network error: %v", e.Err)
}

func (e *TransientNetworkError) Unwrap() error {
	return e.Err
}

func NewTransientNetworkError(err error) error {
	return &TransientNetworkError{Err: err}
}

// ValidationError is record-level: the record is logged and skipped, the enclosing
// batch continues.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Detail)
}

func NewValidationError(field, detail string) error {
	return &ValidationError{Field: field, Detail: detail}
}

// DataConsistencyError is any unique-constraint or integrity violation other than the
// expected upsert conflict. Fatal for the record, the batch continues.
type DataConsistencyError struct {
	Err error
}

func (e *DataConsistencyError) Error() string {
	return fmt.Sprintf("data consistency error: %v", e.Err)
}

func (e *DataConsistencyError) Unwrap() error {
	return e.Err
}

func NewDataConsistencyError(err error) error {
	return &DataConsistencyError{Err: err}
}

func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsAuthentication(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

func IsTransientNetwork(err error) bool {
	var target *TransientNetworkError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
