// Package lifecycle holds the order status rules. It has no side effects;
// the order store consults it before every write.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/kiwari-pos/orderdesk/internal/enum"
)

// ErrInvalidTransition matches every *TransitionError via errors.Is.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError names the rejected source and target statuses.
type TransitionError struct {
	From enum.OrderStatus
	To   enum.OrderStatus
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("cannot advance from %s", e.From)
	}
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// forward maps each status to the one the "advance" action produces.
var forward = map[enum.OrderStatus]enum.OrderStatus{
	enum.OrderStatusPending:   enum.OrderStatusPreparing,
	enum.OrderStatusPreparing: enum.OrderStatusReady,
	enum.OrderStatusReady:     enum.OrderStatusServed,
	enum.OrderStatusServed:    enum.OrderStatusCompleted,
}

// cancellable lists the statuses an order may be cancelled from.
var cancellable = map[enum.OrderStatus]bool{
	enum.OrderStatusPending:   true,
	enum.OrderStatusPreparing: true,
	enum.OrderStatusReady:     true,
	enum.OrderStatusServed:    true,
}

// Next returns the forward successor of current.
func Next(current enum.OrderStatus) (enum.OrderStatus, error) {
	next, ok := forward[current]
	if !ok {
		return "", &TransitionError{From: current}
	}
	return next, nil
}

// CanCancel reports whether an order in status from may be cancelled.
func CanCancel(from enum.OrderStatus) error {
	if !cancellable[from] {
		return &TransitionError{From: from, To: enum.OrderStatusCancelled}
	}
	return nil
}

// ValidateTransition checks from -> to against the forward table and the
// cancellation rule. Skipping stages and moving backwards are rejected.
func ValidateTransition(from, to enum.OrderStatus) error {
	if to == enum.OrderStatusCancelled {
		return CanCancel(from)
	}
	if next, ok := forward[from]; ok && next == to {
		return nil
	}
	return &TransitionError{From: from, To: to}
}

// IsTerminal reports whether no further transition is possible.
func IsTerminal(s enum.OrderStatus) bool {
	return s == enum.OrderStatusCompleted || s == enum.OrderStatusCancelled
}
