package orders

import (
	"errors"
	"fmt"
)

// Step names a stage of the placement workflow.
type Step string

const (
	StepValidate Step = "validate"
	StepBegin    Step = "transaction"
	StepCustomer Step = "customer"
	StepOrder    Step = "order"
	StepLine     Step = "line"
	StepStock    Step = "stock"
	StepCommit   Step = "commit"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
	ErrTotalMismatch     = errors.New("total does not match the sum of line subtotals")
)

// OrderPlacementError reports the step that failed. When it is returned the
// whole unit of work has been rolled back.
type OrderPlacementError struct {
	Step      Step
	ProductID int64
	Err       error
}

func (e *OrderPlacementError) Error() string {
	if e.ProductID != 0 {
		return fmt.Sprintf("place order: %s (product %d): %v", e.Step, e.ProductID, e.Err)
	}
	return fmt.Sprintf("place order: %s: %v", e.Step, e.Err)
}

func (e *OrderPlacementError) Unwrap() error { return e.Err }

// StepOf returns the failing step of a placement error, or "" for other errors.
func StepOf(err error) Step {
	var pe *OrderPlacementError
	if errors.As(err, &pe) {
		return pe.Step
	}
	return ""
}

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Msg }
func (e *ValidationError) Unwrap() error { return e.Err }

type StockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }
