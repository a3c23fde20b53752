package discord

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendPostsJSON(t *testing.T) {
	var (
		calls    atomic.Int32
		received Message
		ctype    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		ctype = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	msg := Message{Content: "@Fire", Embeds: []Embed{{Title: "t", Color: 1, Timestamp: "2024-05-01T12:00:00Z"}}}
	err := NewClient(time.Second).Send(context.Background(), srv.URL, msg)

	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, ctype, "application/json")
	assert.Equal(t, msg, received)
}

func TestClient_Non2xxIsDeliveryError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	err := NewClient(time.Second).Send(context.Background(), srv.URL, Message{})

	var delivery *DeliveryError
	require.True(t, errors.As(err, &delivery))
	assert.Equal(t, http.StatusInternalServerError, delivery.Status)
	assert.Equal(t, "nope", delivery.Body)
	assert.Equal(t, int32(1), calls.Load(), "no retries")
}

func TestClient_TimeoutIsDeliveryError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	err := NewClient(100*time.Millisecond).Send(context.Background(), srv.URL, Message{})

	var delivery *DeliveryError
	require.True(t, errors.As(err, &delivery))
	assert.Zero(t, delivery.Status)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_EmptyURL(t *testing.T) {
	err := NewClient(time.Second).Send(context.Background(), "", Message{})
	assert.ErrorIs(t, err, ErrNoWebhook)
}
