package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/receptionist-widget/internal/model/profile"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		text string
		want profile.Profile
	}{
		{"Hi, my name is dana", profile.Profile{Name: "Dana"}},
		{"Call me Alex please", profile.Profile{Name: "Alex"}},
		{"I'm Priya from the front office", profile.Profile{Name: "Priya"}},
		{"I'm looking for a receptionist", profile.Profile{}},
		{"I'm Looking for help", profile.Profile{}},
		{"This is Sam.", profile.Profile{Name: "Sam"}},
		{"I run a dental clinic in Boston.", profile.Profile{BusinessType: "dental clinic"}},
		{"I own a Bakery business", profile.Profile{BusinessType: "bakery business"}},
		{"I run a dental practice", profile.Profile{BusinessType: "dental practice"}},
		{"My business is an auto repair shop, can you help?", profile.Profile{BusinessType: "auto repair shop"}},
		{"My name is Jo and I manage a yoga studio", profile.Profile{Name: "Jo", BusinessType: "yoga studio"}},
		{"What are your prices?", profile.Profile{}},
		{"", profile.Profile{}},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Extract(tc.text), tc.text)
	}
}

func TestGreeting(t *testing.T) {
	assert.Equal(t, DefaultGreeting, Greeting(profile.Profile{}))
	assert.Equal(t, "Welcome back, Dana! How can I help you today?", Greeting(profile.Profile{Name: "Dana"}))
	assert.Equal(t, "Welcome back! How can I help your salon today?", Greeting(profile.Profile{BusinessType: "salon"}))
	assert.Equal(t, "Welcome back, Dana! How can I help your salon today?",
		Greeting(profile.Profile{Name: "Dana", BusinessType: "salon"}))
}

func TestGreetingKeepsBusinessNoun(t *testing.T) {
	p := Extract("my name is Alice and I run a dental practice")

	assert.Equal(t, "Welcome back, Alice! How can I help your dental practice today?", Greeting(p))
}
