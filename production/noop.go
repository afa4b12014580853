package production

import "time"

// Noop is a stub Backend for development and testing. Requests succeed
// without doing anything; nothing is ever pending.
type Noop struct{}

func (Noop) Request(req Request) (Result, error) {
	return Result{
		Success:   true,
		RequestID: "production:noop",
		State:     StateRequested,
		Message:   "accepted (noop backend)",
	}, nil
}

func (Noop) Status(requestID string) (*Status, error) {
	return nil, nil
}

func (Noop) Cancel(requestID, reason string) (Result, error) {
	return Result{Success: true, RequestID: requestID, State: StateCancelled}, nil
}

func (Noop) ListPending(sku string, targetDate *time.Time) ([]Status, error) {
	return nil, nil
}
