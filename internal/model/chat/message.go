package chat

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Status tracks how far an AI message has been revealed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRevealing Status = "revealing"
	StatusSettled   Status = "settled"
)

// Message is one entry of the conversation. Only the trailing message is
// ever mutated, and only while a reply is streaming into it.
type Message struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
	Status Status `json:"status"`
}

// UserMessage returns a settled message authored by the user.
func UserMessage(text string) Message {
	return Message{Sender: SenderUser, Text: text, Status: StatusSettled}
}

// AIMessage returns a settled AI message.
func AIMessage(text string) Message {
	return Message{Sender: SenderAI, Text: text, Status: StatusSettled}
}

// Placeholder returns an empty AI message waiting for its first chunk.
func Placeholder() Message {
	return Message{Sender: SenderAI, Status: StatusPending}
}

// MergeChunk makes the trailing AI message show text in full. The tail is
// replaced when it is an unsettled AI message; otherwise a new AI message is
// appended, so a settled reply is never overwritten.
func MergeChunk(messages []Message, text string) []Message {
	if n := len(messages); n > 0 {
		last := messages[n-1]
		if last.Sender == SenderAI && last.Status != StatusSettled {
			messages[n-1] = Message{Sender: SenderAI, Text: text, Status: StatusRevealing}
			return messages
		}
	}
	return append(messages, Message{Sender: SenderAI, Text: text, Status: StatusRevealing})
}

// Settle marks the trailing AI message as final, replacing its text when
// text is non-empty. A missing tail AI message is appended.
func Settle(messages []Message, text string) []Message {
	if n := len(messages); n > 0 {
		last := messages[n-1]
		if last.Sender == SenderAI && last.Status != StatusSettled {
			if text == "" {
				text = last.Text
			}
			messages[n-1] = AIMessage(text)
			return messages
		}
	}
	return append(messages, AIMessage(text))
}
