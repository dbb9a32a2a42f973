package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const readBufferSize = 4096

// Consume reads body until end of stream, accumulating the decoded text.
// After every non-empty chunk apply receives the whole text so far, and the
// loop waits pace before reading again. Multi-byte sequences split across
// chunks are held back until complete. The accumulated text is returned even
// when an error cuts the stream short.
func Consume(ctx context.Context, body io.Reader, pace time.Duration, apply func(text string)) (string, error) {
	var (
		text    strings.Builder
		pending []byte
		buf     = make([]byte, readBufferSize)
	)

	for {
		if err := ctx.Err(); err != nil {
			return text.String(), err
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			chunk := append(pending, buf[:n]...)
			cut := completePrefix(chunk)
			pending = append([]byte(nil), chunk[cut:]...)

			if cut > 0 {
				text.WriteString(strings.ToValidUTF8(string(chunk[:cut]), string(utf8.RuneError)))
				apply(text.String())

				if readErr == nil {
					if err := Sleep(ctx, pace); err != nil {
						return text.String(), err
					}
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			if len(pending) > 0 {
				text.WriteString(strings.ToValidUTF8(string(pending), string(utf8.RuneError)))
				apply(text.String())
			}
			return text.String(), nil
		}
		if readErr != nil {
			return text.String(), readErr
		}
	}
}

// completePrefix returns the length of b without a trailing incomplete rune.
func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}

// Typewriter reveals a complete text word by word, calling emit with a
// growing prefix and waiting step between words. The final call always
// carries the full text.
func Typewriter(ctx context.Context, text string, step time.Duration, emit func(prefix string)) error {
	if text == "" {
		emit(text)
		return nil
	}

	i := 0
	for i < len(text) {
		for i < len(text) && isSpace(text[i:]) {
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
		}
		for i < len(text) && !isSpace(text[i:]) {
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
		}

		emit(text[:i])
		if i < len(text) {
			if err := Sleep(ctx, step); err != nil {
				return err
			}
		}
	}
	return nil
}

func isSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsSpace(r)
}

// Sleep waits d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
