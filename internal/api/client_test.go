package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFetchTokenSendsAPIKey(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, TokenEndpoint, r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-API-Key"))
		_, _ = io.WriteString(w, `{"token":"tok","expires_at":"4050-01-01T00:00:00Z"}`)
	}))
	defer srv.Close()

	tok, err := NewClient(srv.URL, "secret").FetchToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok", tok.Value)
	require.False(t, tok.IsExpired())
	require.Equal(t, int32(1), calls.Load())
}

func TestFetchTokenFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			want: "unexpected status 401",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "nope")
			},
			want: "no token",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL, "k").FetchToken(context.Background())
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestSynthesizeRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, SynthesisEndpoint, r.URL.Path)
		require.Equal(t, "k", r.Header.Get("X-API-KEY"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Halló heimur", body["text"])
		require.Equal(t, true, body["transcribe"])
		require.Equal(t, map[string]any{"voice": "Guðrún", "speed": 1.0}, body["tts_options"])

		_, _ = io.WriteString(w, `{"audio_url":"https://cdn/x.mp3","text":"Halló heimur"}`)
	}))
	defer srv.Close()

	url, err := NewClient(srv.URL, "k").Synthesize(context.Background(), "Halló heimur", SpeechOptions{Voice: "Guðrún"})
	require.NoError(t, err)
	require.Equal(t, "https://cdn/x.mp3", url)
}

func TestSynthesizeNoAudio(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "empty url",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"audio_url":""}`)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL, "k").Synthesize(context.Background(), "x", SpeechOptions{})
			require.True(t, errors.Is(err, ErrNoAudio), "err = %v", err)
		})
	}
}

func TestClearUserDataActions(t *testing.T) {
	var got []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, ClearHistoryEndpoint, r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = append(got, body)
		_, _ = io.WriteString(w, `{"valid":true}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k")
	require.NoError(t, client.ClearUserData(context.Background(), "c1", false))
	require.NoError(t, client.ClearUserData(context.Background(), "c1", true))
	require.Equal(t, []map[string]string{
		{"action": "clear", "client_id": "c1"},
		{"action": "clear_all", "client_id": "c1"},
	}, got)

	require.Error(t, client.ClearUserData(context.Background(), " ", false))
}

// recordingDoer captures the request and answers with a fixed token body.
type recordingDoer struct {
	req *http.Request
}

func (d *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	d.req = req
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(`{"token":"abc","expires_at":"4050-01-01T00:00:00Z"}`)),
	}, nil
}

func TestNewClientDefaultsServer(t *testing.T) {
	tests := map[string]string{
		"":                       DefaultServer + TokenEndpoint,
		"http://localhost:8080/": "http://localhost:8080" + TokenEndpoint,
	}
	for server, want := range tests {
		doer := &recordingDoer{}
		_, err := NewClient(server, "key", WithHTTPClient(doer)).FetchToken(context.Background())
		require.NoError(t, err)
		require.Equal(t, want, doer.req.URL.String())
	}
}

func TestFetchTokenDeadline(t *testing.T) {
	doer := &recordingDoer{}
	client := NewClient("http://localhost:8080", "key", WithHTTPClient(doer))

	_, err := client.FetchToken(context.Background())
	require.NoError(t, err)
	deadline, ok := doer.req.Context().Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(TokenTimeout), deadline, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err = client.FetchToken(ctx)
	require.NoError(t, err)
	deadline, ok = doer.req.Context().Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(30*time.Second), deadline, time.Second)
}
