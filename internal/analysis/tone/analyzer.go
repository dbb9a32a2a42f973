package tone

import (
	"strings"
	"time"
)

// Tone 表示用户输入的粗粒度语气，仅用于控制回复的打字节奏。
type Tone string

const (
	Casual   Tone = "casual"
	Formal   Tone = "formal"
	Stressed Tone = "stressed"
	Excited  Tone = "excited"
	Neutral  Tone = "neutral"
)

type keywordGroup struct {
	tone     Tone
	keywords []string
}

// keywordGroups are checked in order; the first group with a hit wins.
var keywordGroups = []keywordGroup{
	{tone: Casual, keywords: []string{"yo", "hey", "sup", "lol", "haha"}},
	{tone: Formal, keywords: []string{"good morning", "dear", "regards", "sincerely"}},
	{tone: Stressed, keywords: []string{"frustrated", "angry", "mad", "upset", "behind", "late"}},
	{tone: Excited, keywords: []string{"awesome", "great", "amazing", "excited", "love", "wow"}},
}

// 每个语气对应的逐块延迟，兴奋最快，正式最慢。
var delays = map[Tone]time.Duration{
	Casual:   18 * time.Millisecond,
	Excited:  14 * time.Millisecond,
	Neutral:  28 * time.Millisecond,
	Stressed: 42 * time.Millisecond,
	Formal:   55 * time.Millisecond,
}

// Categories returns every tone Classify can produce, in check order.
func Categories() []Tone {
	out := make([]Tone, 0, len(keywordGroups)+1)
	for _, group := range keywordGroups {
		out = append(out, group.tone)
	}
	return append(out, Neutral)
}

// Classify 根据关键词分组推断语气，按顺序匹配，第一个命中的分组胜出。
func Classify(text string) Tone {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Neutral
	}

	for _, group := range keywordGroups {
		for _, word := range group.keywords {
			if containsKeyword(normalized, word) {
				return group.tone
			}
		}
	}
	return Neutral
}

// Delay maps a tone to the pause inserted after each revealed chunk.
func Delay(t Tone) time.Duration {
	if d, ok := delays[t]; ok {
		return d
	}
	return delays[Neutral]
}

// Pacer scales tone delays; a zero Scale disables pacing.
type Pacer struct {
	Scale float64
}

// Delay returns the scaled delay for t.
func (p Pacer) Delay(t Tone) time.Duration {
	if p.Scale <= 0 {
		return 0
	}
	return time.Duration(float64(Delay(t)) * p.Scale)
}

// containsKeyword matches alphabetic keywords on word boundaries so that
// "yo" does not fire inside "you"; punctuation keywords match anywhere.
func containsKeyword(text, word string) bool {
	if word == "" {
		return false
	}
	if !isWordRune(rune(word[0])) {
		return strings.Contains(text, word)
	}

	for offset := 0; offset <= len(text)-len(word); {
		idx := strings.Index(text[offset:], word)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(word)
		before := start == 0 || !isWordRune(rune(text[start-1]))
		after := end == len(text) || !isWordRune(rune(text[end]))
		if before && after {
			return true
		}
		offset = start + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '\'' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
