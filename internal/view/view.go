package view

import (
	"github.com/zhouzirui/receptionist-widget/internal/format"
	"github.com/zhouzirui/receptionist-widget/internal/model/chat"
	"github.com/zhouzirui/receptionist-widget/internal/service/conversation"
)

// Message is a chat bubble ready for the browser. HTML is always sanitized.
type Message struct {
	Sender chat.Sender `json:"sender"`
	Status chat.Status `json:"status"`
	Text   string      `json:"text"`
	HTML   string      `json:"html"`
}

// Snapshot is the rendered conversation state pushed to widgets.
type Snapshot struct {
	SessionID string    `json:"sessionId"`
	VisitorID string    `json:"visitorId,omitempty"`
	Loading   bool      `json:"loading"`
	Greeting  string    `json:"greeting"`
	Messages  []Message `json:"messages"`
}

// Build renders s: AI text through the formatter, user text escaped.
func Build(s conversation.Snapshot, f *format.Formatter) Snapshot {
	out := Snapshot{
		SessionID: s.SessionID,
		VisitorID: s.VisitorID,
		Loading:   s.Loading,
		Greeting:  conversation.Greeting(s.Profile),
		Messages:  make([]Message, 0, len(s.Messages)),
	}
	for _, m := range s.Messages {
		rendered := Message{Sender: m.Sender, Status: m.Status, Text: m.Text}
		if m.Sender == chat.SenderAI {
			rendered.HTML = f.HTML(m.Text)
		} else {
			rendered.HTML = f.Plain(m.Text)
		}
		out.Messages = append(out.Messages, rendered)
	}
	return out
}
