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

package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnforge/durable/codec"
)

type fixture struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := fixture{Name: "widget", Count: 3}
	data, err := codec.Encode(in)
	require.NoError(t, err)

	var out fixture
	require.NoError(t, codec.Decode(data, &out))
	assert.Equal(t, in, out)
}

func TestDecodeMalformedPayloadErrors(t *testing.T) {
	var out fixture
	err := codec.Decode([]byte("not json"), &out)
	assert.Error(t, err)
}

func TestMustEncodePanicsOnUnencodableValue(t *testing.T) {
	assert.Panics(t, func() {
		codec.MustEncode(make(chan int))
	})
}
