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

// Package codec converts between Go values and the []byte payloads
// carried by eventlog.WorkflowEvent, taskqueue.Task and
// engine.ScheduleActivityAction. Every activity and workflow input in
// this repo is plain JSON; there is no wire protocol to negotiate, so
// there is exactly one converter rather than the teacher's pluggable
// chain of proto/json/encrypted converters.
package codec

import (
	"encoding/json"
	"fmt"
)

// Encode marshals value to its JSON payload form.
func Encode(value interface{}) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return data, nil
}

// Decode unmarshals payload into valuePtr, which must be a non-nil
// pointer.
func Decode(payload []byte, valuePtr interface{}) error {
	if err := json.Unmarshal(payload, valuePtr); err != nil {
		return fmt.Errorf("codec: decode into %T: %w", valuePtr, err)
	}
	return nil
}

// MustEncode is Encode for call sites that construct a payload from a
// value they control and would treat a marshal failure as a programmer
// error (e.g. building a test fixture).
func MustEncode(value interface{}) []byte {
	data, err := Encode(value)
	if err != nil {
		panic(err)
	}
	return data
}
