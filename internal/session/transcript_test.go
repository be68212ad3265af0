// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript_AppendAndOrder(t *testing.T) {
	tr := NewTranscript(0)
	u := tr.AppendUser("hello")
	a := tr.AppendAssistant("hi there", false)

	require.NotEqual(t, u.ID, a.ID)
	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "hi there", msgs[1].Content)
	assert.False(t, msgs[1].Timestamp.Before(msgs[0].Timestamp))
}

func TestTranscript_DropsOldestPastLimit(t *testing.T) {
	tr := NewTranscript(3)
	for i := 0; i < 5; i++ {
		tr.AppendUser(fmt.Sprintf("q%d", i))
	}

	msgs := tr.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "q2", msgs[0].Content)
	assert.Equal(t, "q4", msgs[2].Content)
}

func TestTranscript_MessagesIsACopy(t *testing.T) {
	tr := NewTranscript(5)
	tr.AppendUser("original")

	msgs := tr.Messages()
	msgs[0].Content = "mutated"
	assert.Equal(t, "original", tr.Messages()[0].Content)
}

func TestTranscript_Clear(t *testing.T) {
	tr := NewTranscript(5)
	tr.AppendUser("q")
	tr.AppendAssistant("", true)
	tr.Clear()
	assert.Equal(t, 0, tr.Len())
}
