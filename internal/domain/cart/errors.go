package cart

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

// Sentinel reasons carried by ValidationError.
var (
	ErrProductRequired = errors.New("product id required")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrItemIDRequired  = errors.New("cart item id required")
)

// ValidationError reports malformed input to a cart mutation. It is raised
// before anything is dispatched.
type ValidationError struct {
	Field  string
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// NetworkError reports that the order service could not be reached.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: order service unreachable: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError reports a non-2xx response from the order service.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s: order service returned %d: %s", e.Op, e.Status, msg)
}

// StorageError reports a failure of the local persistent store. It never
// reaches callers of the controller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cart storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
