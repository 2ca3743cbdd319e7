package service

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBusy is returned when another exclusive operation is running.
var ErrBusy = errors.New("busy")

// Op names an exclusive operation.
type Op string

const (
	OpNone      Op = ""
	OpScan      Op = "SCAN"
	OpSort      Op = "SORT"
	OpIntegrate Op = "INTEGRATE"
	OpReset     Op = "RESET"
)

// Session admits one exclusive operation at a time.
type Session struct {
	mu     sync.Mutex
	active Op
}

// Begin claims the session for op. It fails with an error wrapping ErrBusy
// that names the operation already running.
func (s *Session) Begin(op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != OpNone {
		return fmt.Errorf("%w: %s", ErrBusy, s.active)
	}
	s.active = op
	return nil
}

// End releases the session.
func (s *Session) End() {
	s.mu.Lock()
	s.active = OpNone
	s.mu.Unlock()
}

// Active returns the running operation, or OpNone.
func (s *Session) Active() Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
