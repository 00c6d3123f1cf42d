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

package openai

import (
	"encoding/json"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnforge/durable/collab"
)

func TestEncodeMessagesMapsRolesAndToolCalls(t *testing.T) {
	history := []collab.Message{
		{Role: collab.RoleSystem, Text: "be terse"},
		{Role: collab.RoleUser, Text: "2+2?"},
		{Role: collab.RoleAssistant, Text: "", ToolCalls: []collab.ToolCall{{ID: "c1", Name: "calc", Arguments: []byte(`{"x":4}`)}}},
		{Role: collab.RoleToolResult, ToolCallID: "c1", ToolResult: &collab.ToolResult{ToolCallID: "c1", Success: true, Result: []byte("4")}},
	}

	out := encodeMessages(history)
	require.Len(t, out, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, out[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, out[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, out[2].Role)
	require.Len(t, out[2].ToolCalls, 1)
	assert.Equal(t, "calc", out[2].ToolCalls[0].Function.Name)
	assert.Equal(t, openai.ChatMessageRoleTool, out[3].Role)
	assert.Equal(t, "c1", out[3].ToolCallID)
	assert.Equal(t, "4", out[3].Content)
}

func TestEncodeToolsDefaultsEmptySchema(t *testing.T) {
	tools, err := encodeTools([]collab.ToolDefinition{{Name: "search", Description: "searches"}})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "search", tools[0].Function.Name)
	raw, ok := tools[0].Function.Parameters.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(raw))
}

func TestEncodeToolsEmptyInput(t *testing.T) {
	tools, err := encodeTools(nil)
	require.NoError(t, err)
	assert.Nil(t, tools)
}
