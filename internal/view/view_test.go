package view

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/receptionist-widget/internal/format"
	"github.com/zhouzirui/receptionist-widget/internal/model/chat"
	"github.com/zhouzirui/receptionist-widget/internal/model/profile"
	"github.com/zhouzirui/receptionist-widget/internal/service/conversation"
)

func TestBuildRendersBySender(t *testing.T) {
	snap := conversation.Snapshot{
		SessionID: "s-1",
		Loading:   true,
		Profile:   profile.Profile{Name: "Dana"},
		Messages: []chat.Message{
			chat.UserMessage("<img src=x onerror=alert(1)> hi"),
			{Sender: chat.SenderAI, Text: "Please **Meet Hootbot** <script>x()</script>", Status: chat.StatusRevealing},
			chat.Placeholder(),
		},
	}

	out := Build(snap, format.New(nil))

	require.Len(t, out.Messages, 3)
	assert.Equal(t, "s-1", out.SessionID)
	assert.True(t, out.Loading)
	assert.Equal(t, "Welcome back, Dana! How can I help you today?", out.Greeting)

	user := out.Messages[0]
	assert.Equal(t, chat.SenderUser, user.Sender)
	assert.True(t, strings.HasPrefix(user.HTML, "&lt;img"))

	ai := out.Messages[1]
	assert.Equal(t, chat.StatusRevealing, ai.Status)
	assert.Contains(t, ai.HTML, `href="`+format.HootbotURL+`"`)
	assert.NotContains(t, ai.HTML, "<script")

	assert.Equal(t, chat.StatusPending, out.Messages[2].Status)
	assert.Empty(t, out.Messages[2].HTML)
}

func TestBuildLinksGreetingAndApology(t *testing.T) {
	snap := conversation.Snapshot{
		SessionID: "s-2",
		VisitorID: "v-2",
		Messages: []chat.Message{
			chat.AIMessage(conversation.DefaultGreeting),
			chat.UserMessage("hello?"),
			chat.AIMessage(conversation.ApologyMessage),
		},
	}

	out := Build(snap, format.New(nil))

	require.Len(t, out.Messages, 3)
	assert.Equal(t, "v-2", out.VisitorID)
	assert.Equal(t, conversation.DefaultGreeting, out.Greeting)

	greeting := out.Messages[0]
	assert.Contains(t, greeting.Text, "Samantha")
	assert.Contains(t, greeting.HTML, `href="`+format.GreatOwlURL+`"`)

	apology := out.Messages[2]
	assert.Contains(t, apology.HTML, `href="`+format.BookCallURL+`"`)
	assert.Contains(t, apology.HTML, ">Book a 30-Minute Call</a>")
}
