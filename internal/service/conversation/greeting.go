package conversation

import (
	"fmt"

	"github.com/zhouzirui/receptionist-widget/internal/model/profile"
)

// DefaultGreeting opens a conversation with a visitor we know nothing about.
const DefaultGreeting = "Hi there 👋 — I’m Samantha, the AI Receptionist for Great Owl Marketing! How can I assist you today?"

// ApologyMessage replaces a reply whenever the exchange with the backend fails.
// The closing phrase is linked to the booking page by the formatter.
const ApologyMessage = "⚠️ I’m having trouble reaching my system right now. Please try again shortly or book a quick call: Book a 30-Minute Call."

// Greeting picks the opening line for p.
func Greeting(p profile.Profile) string {
	switch {
	case p.Name != "" && p.BusinessType != "":
		return fmt.Sprintf("Welcome back, %s! How can I help your %s today?", p.Name, p.BusinessType)
	case p.Name != "":
		return fmt.Sprintf("Welcome back, %s! How can I help you today?", p.Name)
	case p.BusinessType != "":
		return fmt.Sprintf("Welcome back! How can I help your %s today?", p.BusinessType)
	default:
		return DefaultGreeting
	}
}
