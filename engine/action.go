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

package engine

import (
	"time"

	"github.com/turnforge/durable/retry"
	"github.com/turnforge/durable/taskqueue"
)

// ActionKind discriminates the variant carried by an Action.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionScheduleActivity
	ActionStartTimer
	ActionCancelActivity
	ActionCompleteWorkflow
	ActionFailWorkflow
	ActionScheduleChildWorkflow
)

// Action is a single decision emitted by a Workflow callback. Exactly
// one of the typed fields is meaningful, matching ActionKind.
type Action struct {
	Kind ActionKind

	ScheduleActivity      *ScheduleActivityAction
	StartTimer            *StartTimerAction
	CancelActivity        *CancelActivityAction
	CompleteWorkflow      *CompleteWorkflowAction
	FailWorkflow          *FailWorkflowAction
	ScheduleChildWorkflow *ScheduleChildWorkflowAction
}

// ScheduleActivityAction enqueues a new activity task.
type ScheduleActivityAction struct {
	ActivityID   string
	ActivityType string
	Input        []byte
	Priority     int32
	Timeouts     taskqueue.Timeouts
	RetryPolicy  retry.Policy
}

// StartTimerAction starts a durable timer; OnTimerFired fires when it
// elapses.
type StartTimerAction struct {
	TimerID  string
	Duration time.Duration
}

// CancelActivityAction requests cooperative cancellation of an
// in-flight activity.
type CancelActivityAction struct {
	ActivityID string
}

// CompleteWorkflowAction ends the workflow successfully.
type CompleteWorkflowAction struct {
	Output []byte
}

// FailWorkflowAction ends the workflow with a failure reason.
type FailWorkflowAction struct {
	Reason string
}

// ScheduleChildWorkflowAction starts a new child workflow instance.
type ScheduleChildWorkflowAction struct {
	ChildWorkflowID string
	WorkflowType    string
	Input           []byte
}

// Schedule builds an ActionScheduleActivity action.
func Schedule(a ScheduleActivityAction) Action {
	return Action{Kind: ActionScheduleActivity, ScheduleActivity: &a}
}

// StartTimer builds an ActionStartTimer action.
func StartTimer(a StartTimerAction) Action {
	return Action{Kind: ActionStartTimer, StartTimer: &a}
}

// CancelActivity builds an ActionCancelActivity action.
func CancelActivity(activityID string) Action {
	return Action{Kind: ActionCancelActivity, CancelActivity: &CancelActivityAction{ActivityID: activityID}}
}

// Complete builds an ActionCompleteWorkflow action.
func Complete(output []byte) Action {
	return Action{Kind: ActionCompleteWorkflow, CompleteWorkflow: &CompleteWorkflowAction{Output: output}}
}

// Fail builds an ActionFailWorkflow action.
func Fail(reason string) Action {
	return Action{Kind: ActionFailWorkflow, FailWorkflow: &FailWorkflowAction{Reason: reason}}
}

// ScheduleChild builds an ActionScheduleChildWorkflow action.
func ScheduleChild(a ScheduleChildWorkflowAction) Action {
	return Action{Kind: ActionScheduleChildWorkflow, ScheduleChildWorkflow: &a}
}

// None is the no-op action; callbacks that observe an event they don't
// act on return it.
func None() Action {
	return Action{Kind: ActionNone}
}
