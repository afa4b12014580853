/*
Package production defines the production-request capability the stock
engine consumes.

The engine surfaces a production ask when demand exceeds supply; how
the ask is planned, scheduled, and executed belongs to the production
system. Nothing beyond status flows back across this boundary.
*/
package production

import (
	"time"

	"github.com/shopspring/decimal"
)

// Priority of a production request.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// State of a production request.
type State string

const (
	StateRequested  State = "requested"
	StatePlanned    State = "planned"
	StateScheduled  State = "scheduled"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
	StateFailed     State = "failed" // no materials, etc.
)

// Request asks the production system to produce quantity of SKU for a
// target date. Reference carries the hold ID that originated the demand.
type Request struct {
	SKU        string
	Quantity   decimal.Decimal
	TargetDate time.Time
	Priority   Priority
	Reference  string
	Metadata   map[string]string
}

// Status is the current state of one production request.
type Status struct {
	RequestID           string
	SKU                 string
	Quantity            decimal.Decimal
	State               State
	TargetDate          time.Time
	EstimatedCompletion *time.Time
	WorkOrderID         string
	Message             string
}

// Result of submitting or cancelling a request.
type Result struct {
	Success     bool
	RequestID   string
	State       State
	Message     string
	WorkOrderID string
}

// Backend is the production-request capability.
type Backend interface {
	Request(req Request) (Result, error)
	Status(requestID string) (*Status, error)
	Cancel(requestID, reason string) (Result, error)
	ListPending(sku string, targetDate *time.Time) ([]Status, error)
}
