package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatStreamsPlainTextBody(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{"Hel", "lo"} {
			_, _ = io.WriteString(w, chunk)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	reply, err := c.Chat(context.Background(), ChatRequest{
		Message:      "hi",
		SessionID:    "s-1",
		Name:         "Dana",
		BusinessType: "bakery",
	})
	require.NoError(t, err)
	defer reply.Close()

	require.True(t, reply.Streaming())
	body, err := io.ReadAll(reply.Body)
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(body))
	assert.Equal(t, ChatRequest{Message: "hi", SessionID: "s-1", Name: "Dana", BusinessType: "bakery"}, got)
}

func TestChatOmitsEmptyProfileFields(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"reply":"ok"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s-1"})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"message": "hi", "session_id": "s-1"}, raw)
}

func TestChatDecodesJSONReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = io.WriteString(w, `{"reply":"We open at nine."}`)
	}))
	defer srv.Close()

	reply, err := New(srv.URL).Chat(context.Background(), ChatRequest{Message: "hours?", SessionID: "s"})
	require.NoError(t, err)

	assert.False(t, reply.Streaming())
	assert.Equal(t, "We open at nine.", reply.Text)
	assert.NoError(t, reply.Close())
}

func TestChatMalformedJSON(t *testing.T) {
	for _, body := range []string{`{"reply":`, `{"message":"x"}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, body)
		}))

		_, err := New(srv.URL).Chat(context.Background(), ChatRequest{Message: "x", SessionID: "s"})
		srv.Close()

		require.ErrorIs(t, err, ErrMalformedReply, body)
	}
}

func TestChatNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Chat(context.Background(), ChatRequest{Message: "x", SessionID: "s"})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.Equal(t, "/api/chat", statusErr.Endpoint)
	assert.Contains(t, statusErr.Error(), "model overloaded")
}

func TestChatTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url).Chat(context.Background(), ChatRequest{Message: "x", SessionID: "s"})
	require.Error(t, err)
}

func TestResetPostsSessionID(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/reset", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL).Reset(context.Background(), "s-42"))
	assert.Equal(t, map[string]string{"session_id": "s-42"}, got)
}

func TestResetFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New(srv.URL).Reset(context.Background(), "s")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "/api/reset: unexpected status 500", statusErr.Error())
}
