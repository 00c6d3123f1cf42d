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

// Package engine hosts the Workflow Registry and the replay/apply loop
// that drives workflow instances forward from their event logs. The
// engine never passes wall-clock time or randomness to workflow code
// except through recorded events; workflow implementations must be
// deterministic functions of their event history.
package engine

// Workflow is implemented by every workflow type the engine can drive.
// A fresh instance is constructed by the type's Factory from the
// WorkflowStarted event's input, then folded forward by invoking these
// callbacks in event order. Each callback returns the actions the
// engine should apply; it must not perform I/O, sleep, or consult the
// wall clock itself.
type Workflow interface {
	// OnStart is invoked once, for the WorkflowStarted event.
	OnStart(ctx *Context) []Action

	// OnActivityCompleted is invoked when a scheduled activity finishes
	// successfully.
	OnActivityCompleted(ctx *Context, activityID string, result []byte) []Action

	// OnActivityFailed is invoked only for the *final* failure of an
	// activity (after retries are exhausted); retryable intermediate
	// failures do not reach workflow code.
	OnActivityFailed(ctx *Context, activityID string, failureErr string) []Action

	// OnTimerFired is invoked when a previously started timer elapses.
	OnTimerFired(ctx *Context, timerID string) []Action

	// OnSignal is invoked when an external signal is delivered to the
	// workflow.
	OnSignal(ctx *Context, signalType string, payload []byte) []Action
}

// Factory constructs a fresh Workflow instance from a WorkflowStarted
// event's raw input payload.
type Factory func(workflowID string, input []byte) (Workflow, error)

// Registry maps workflow_type strings to the Factory that constructs
// instances of that type. It is safe for concurrent use after all
// registrations complete; registration itself is not synchronized and
// is expected to happen during process startup.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates workflowType with factory. Panics if workflowType
// is already registered, mirroring the teacher SDK's registration-time
// fail-fast discipline.
func (r *Registry) Register(workflowType string, factory Factory) {
	if _, exists := r.factories[workflowType]; exists {
		panic("engine: workflow type already registered: " + workflowType)
	}
	r.factories[workflowType] = factory
}

// Lookup returns the Factory registered for workflowType, if any.
func (r *Registry) Lookup(workflowType string) (Factory, bool) {
	f, ok := r.factories[workflowType]
	return f, ok
}
