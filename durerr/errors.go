// Copyright (c) 2026 The turnforge Authors.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

/*
Package durerr collects the error taxonomy shared by every layer of the
engine: the event store, the task queue, the circuit breaker and the
workflow/activity runtime all return errors defined here so that callers
can use errors.As against a small, stable set of types instead of
string-matching messages.

*ActivityError describes a failed activity attempt. Unwrap it
(errors.Unwrap or errors.As) to get at the underlying cause:

	// err is an error that is, or wraps, an *ActivityError
	var actErr *ActivityError
	if errors.As(err, &actErr) {
		if !actErr.Retryable() {
			// the retry policy already gave up, or the activity marked
			// itself non-retryable
		}
	}

	var ce *CanceledError
	if errors.As(err, &ce) {
		// activity or workflow was canceled
	}

	var te *TimeoutError
	if errors.As(err, &te) {
		switch te.Type() {
		case TimeoutTypeStartToClose:
		case TimeoutTypeHeartbeat:
		}
	}
*/
package durerr

import (
	"errors"
	"fmt"
)

// ErrNoData is returned when decoding a result or detail payload that was
// never recorded.
var ErrNoData = errors.New("durerr: no data available")

// ErrAlreadyCompleted is returned when an operation targets a task or
// activity attempt that has already reached a terminal state.
var ErrAlreadyCompleted = errors.New("durerr: already completed")

// TimeoutType discriminates between the different timeout axes an
// activity attempt can violate.
type TimeoutType int

const (
	// TimeoutTypeUnspecified is the zero value; never produced by the
	// engine itself.
	TimeoutTypeUnspecified TimeoutType = iota
	// TimeoutTypeScheduleToStart fires when a task sits claimable for
	// longer than its schedule-to-start budget.
	TimeoutTypeScheduleToStart
	// TimeoutTypeStartToClose fires when a claimed task runs longer than
	// its start-to-close budget.
	TimeoutTypeStartToClose
	// TimeoutTypeHeartbeat fires when a worker stops heartbeating a
	// claimed task for longer than the heartbeat timeout.
	TimeoutTypeHeartbeat
)

func (t TimeoutType) String() string {
	switch t {
	case TimeoutTypeScheduleToStart:
		return "schedule_to_start"
	case TimeoutTypeStartToClose:
		return "start_to_close"
	case TimeoutTypeHeartbeat:
		return "heartbeat"
	default:
		return "unspecified"
	}
}

// ConflictError is returned by the event store when AppendEvents is called
// with an expectedSequence that does not match the stream's current tail.
// Callers reload the stream and reapply their decision.
type ConflictError struct {
	StreamID          string
	ExpectedSequence  int64
	ActualSequence    int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("durerr: conflict appending to stream %s: expected sequence %d, actual %d",
		e.StreamID, e.ExpectedSequence, e.ActualSequence)
}

// StaleVersionError is returned when a caller acts on a snapshot of a
// workflow or task whose version has since advanced underneath it.
type StaleVersionError struct {
	EntityID     string
	SeenVersion  int64
	LatestVersion int64
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("durerr: stale version for %s: saw %d, latest is %d",
		e.EntityID, e.SeenVersion, e.LatestVersion)
}

// NotOwnedError is returned when a worker tries to heartbeat, complete or
// fail a task claim it does not currently hold (wrong fencing token, or
// the claim has already been reclaimed by another worker).
type NotOwnedError struct {
	TaskID     string
	ClaimToken string
}

func (e *NotOwnedError) Error() string {
	return fmt.Sprintf("durerr: task %s is not owned by claim token %s", e.TaskID, e.ClaimToken)
}

// InvalidStateError is returned when an operation is attempted against an
// entity in a state that does not permit it, e.g. completing a task that
// is already Completed, or appending a decision event to a workflow that
// has already closed.
type InvalidStateError struct {
	EntityID string
	State    string
	Action   string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("durerr: cannot %s entity %s in state %s", e.Action, e.EntityID, e.State)
}

// CanceledError is returned when an activity or workflow was canceled
// before completing. Details carries whatever the canceling party
// recorded, and may be nil.
type CanceledError struct {
	Details interface{}
	cause   error
}

// NewCanceledError creates a CanceledError, optionally wrapping cause.
func NewCanceledError(cause error, details interface{}) *CanceledError {
	return &CanceledError{Details: details, cause: cause}
}

func (e *CanceledError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("durerr: canceled: %v", e.cause)
	}
	return "durerr: canceled"
}

func (e *CanceledError) Unwrap() error { return e.cause }

// TimeoutError is returned when an activity attempt violates one of its
// timeout budgets.
type TimeoutError struct {
	timeoutType          TimeoutType
	lastHeartbeatDetails interface{}
	cause                error
}

// NewTimeoutError creates a TimeoutError of the given type.
func NewTimeoutError(t TimeoutType, cause error, lastHeartbeatDetails interface{}) *TimeoutError {
	return &TimeoutError{timeoutType: t, cause: cause, lastHeartbeatDetails: lastHeartbeatDetails}
}

// Type reports which timeout axis was violated.
func (e *TimeoutError) Type() TimeoutType { return e.timeoutType }

// LastHeartbeatDetails returns whatever detail payload was attached to the
// last heartbeat recorded before the timeout fired, or nil.
func (e *TimeoutError) LastHeartbeatDetails() interface{} { return e.lastHeartbeatDetails }

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("durerr: %s timeout", e.timeoutType)
}

func (e *TimeoutError) Unwrap() error { return e.cause }

// FatalError marks an error as explicitly non-retryable regardless of the
// retry policy in effect. Activity implementations return this (or
// anything satisfying the NonRetryable interface below) to opt out of
// retry.
type FatalError struct {
	Message string
	cause   error
}

// NewFatalError wraps cause (which may be nil) as a non-retryable error.
func NewFatalError(message string, cause error) *FatalError {
	return &FatalError{Message: message, cause: cause}
}

func (e *FatalError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("durerr: fatal: %s: %v", e.Message, e.cause)
	}
	return fmt.Sprintf("durerr: fatal: %s", e.Message)
}

func (e *FatalError) Unwrap() error { return e.cause }

// NonRetryable is implemented by errors that know whether the retry
// policy should be consulted at all.
type NonRetryable interface {
	NonRetryable() bool
}

// NonRetryable reports true for *FatalError.
func (e *FatalError) NonRetryable() bool { return true }

// ActivityError describes a failed activity attempt: its task, activity
// type and attempt number, whether it was retryable, and the underlying
// cause. Unwrap it to reach the underlying cause.
type ActivityError struct {
	TaskID       string
	ActivityType string
	Attempt      int32
	retryable    bool
	cause        error
}

// NewActivityError creates an ActivityError.
func NewActivityError(taskID, activityType string, attempt int32, retryable bool, cause error) *ActivityError {
	return &ActivityError{
		TaskID:       taskID,
		ActivityType: activityType,
		Attempt:      attempt,
		retryable:    retryable,
		cause:        cause,
	}
}

// Retryable reports whether the retry policy would have scheduled another
// attempt had the task queue's max attempts not been exhausted.
func (e *ActivityError) Retryable() bool { return e.retryable }

func (e *ActivityError) Error() string {
	return fmt.Sprintf("durerr: activity %s (task %s) failed on attempt %d: %v",
		e.ActivityType, e.TaskID, e.Attempt, e.cause)
}

func (e *ActivityError) Unwrap() error { return e.cause }

// CircuitOpenError describes a call refused because the circuit breaker
// for its activity type is Open and not yet due for a half-open probe.
type CircuitOpenError struct {
	ActivityType string
	RetryAfter   fmt.Stringer
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("durerr: circuit open for activity type %s", e.ActivityType)
}

// WorkflowError is returned to the caller of a workflow run when the
// workflow itself failed, as opposed to a specific activity. Unwrap it to
// get the underlying cause.
type WorkflowError struct {
	WorkflowID   string
	WorkflowType string
	cause        error
}

// NewWorkflowError creates a WorkflowError.
func NewWorkflowError(workflowID, workflowType string, cause error) *WorkflowError {
	return &WorkflowError{WorkflowID: workflowID, WorkflowType: workflowType, cause: cause}
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("durerr: workflow %s (%s) failed: %v", e.WorkflowID, e.WorkflowType, e.cause)
}

func (e *WorkflowError) Unwrap() error { return e.cause }

// IsCanceled reports whether err is, or wraps, a *CanceledError.
func IsCanceled(err error) bool {
	var ce *CanceledError
	return errors.As(err, &ce)
}

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsRetryable reports whether the retry policy should be consulted for
// err. Anything implementing NonRetryable and returning true short
// circuits to false; everything else defaults to true.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var nr NonRetryable
	if errors.As(err, &nr) {
		return !nr.NonRetryable()
	}
	return true
}
