package replicate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(url string) *Client {
	return New(url, "r8_token", "minimax/video-01", time.Second, WithPollInterval(time.Millisecond, 5*time.Millisecond))
}

func TestGenerate_ImmediateStringOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/minimax/video-01/predictions", r.URL.Path)
		assert.Equal(t, "wait", r.Header.Get("Prefer"))
		assert.Equal(t, "Bearer r8_token", r.Header.Get("Authorization"))
		var body predictionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a fox", body.Input["prompt"])
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"p1","status":"succeeded","output":"https://cdn/v.mp4"}`))
	}))
	defer srv.Close()

	out, err := newClient(srv.URL).Generate(context.Background(), "a fox")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn/v.mp4"}, out)
}

func TestGenerate_PollsUntilSucceeded(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"p2","status":"starting"}`))
			return
		}
		assert.Equal(t, "/predictions/p2", r.URL.Path)
		if polls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"id":"p2","status":"processing"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"p2","status":"succeeded","output":["https://cdn/a.mp4","https://cdn/b.mp4"]}`))
	}))
	defer srv.Close()

	out, err := newClient(srv.URL).Generate(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn/a.mp4", "https://cdn/b.mp4"}, out)
	assert.EqualValues(t, 3, polls.Load())
}

func TestGenerate_Failures(t *testing.T) {
	cases := map[string]string{
		"failed":      `{"id":"p","status":"failed","error":"nsfw"}`,
		"canceled":    `{"id":"p","status":"canceled"}`,
		"null output": `{"id":"p","status":"succeeded","output":null}`,
		"empty list":  `{"id":"p","status":"succeeded","output":[]}`,
		"bad shape":   `{"id":"p","status":"succeeded","output":{"video":"x"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()
			_, err := newClient(srv.URL).Generate(context.Background(), "x")
			assert.Error(t, err)
		})
	}
}

func TestGenerate_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()
	_, err := newClient(srv.URL).Generate(context.Background(), "x")
	assert.Error(t, err)
}

func TestGenerate_ContextCancelStopsPolling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"p","status":"processing"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newClient(srv.URL).Generate(ctx, "x")
	assert.Error(t, err)
}

func TestDecodeOutput(t *testing.T) {
	out, err := decodeOutput(json.RawMessage(`"u"`))
	require.NoError(t, err)
	assert.Equal(t, []string{"u"}, out)

	_, err = decodeOutput(json.RawMessage(`""`))
	assert.ErrorIs(t, err, ErrNoOutput)
	_, err = decodeOutput(nil)
	assert.ErrorIs(t, err, ErrNoOutput)
}
