package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftbot.io/craftbot/internal/config"
	"craftbot.io/craftbot/internal/domain"
	"craftbot.io/craftbot/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

var (
	fire  = domain.Element{Entity: domain.Entity{ID: 1}, Name: "Fire", Emoji: "🔥"}
	water = domain.Element{Entity: domain.Entity{ID: 2}, Name: "Water", Emoji: "💧"}
)

func TestStaticAgent(t *testing.T) {
	a := NewStaticAgent()
	a.Seed("Water", "Fire", Result{Reason: "steam", Result: Element{Name: "Steam", Emoji: "💨"}})

	got, err := a.Combine(context.Background(), fire, water)
	require.NoError(t, err)
	assert.Equal(t, "Steam", got.Result.Name)

	got, err = a.Combine(context.Background(), fire, fire)
	require.NoError(t, err)
	assert.Equal(t, "Fire Fire", got.Result.Name)
	assert.Equal(t, 2, a.Calls())

	boom := errors.New("offline")
	a.FailWith(boom)
	_, err = a.Combine(context.Background(), fire, water)
	assert.ErrorIs(t, err, boom)
}

func TestHTTPAgent_Combine(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		content, _ := json.Marshal(Result{Reason: "steam", Result: Element{Name: " Steam ", Emoji: "💨"}})
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": string(content)}}},
		})
	}))
	defer srv.Close()

	a, err := NewHTTPAgent(config.AgentConfig{BaseURL: srv.URL + "/v1/", APIKey: "secret", Model: "test-model", Timeout: time.Second})
	require.NoError(t, err)

	got, err := a.Combine(context.Background(), fire, water)
	require.NoError(t, err)
	assert.Equal(t, "Steam", got.Result.Name, "names are trimmed")
	assert.Equal(t, "💨", got.Result.Emoji)
	assert.Equal(t, "steam", got.Reason)

	assert.Equal(t, "test-model", gotReq.Model)
	assert.Equal(t, "json_object", gotReq.ResponseFormat["type"])
	require.Len(t, gotReq.Messages, 2)
	assert.Contains(t, gotReq.Messages[1].Content, "Fire")
	assert.Contains(t, gotReq.Messages[1].Content, "Water")
}

func TestHTTPAgent_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "upstream failure",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"choices":[]}`))
			},
			wantErr: ErrInvalidResult,
		},
		{
			name: "content is not json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"steam"}}]}`))
			},
			wantErr: ErrInvalidResult,
		},
		{
			name: "empty name",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"result\":{\"name\":\"  \"}}"}}]}`))
			},
			wantErr: ErrInvalidResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			a, err := NewHTTPAgent(config.AgentConfig{BaseURL: srv.URL, Model: "m"})
			require.NoError(t, err)

			_, err = a.Combine(context.Background(), fire, water)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNew(t *testing.T) {
	a, err := New(config.AgentConfig{Provider: "static"})
	require.NoError(t, err)
	assert.IsType(t, &StaticAgent{}, a)

	_, err = New(config.AgentConfig{Provider: "http"})
	assert.Error(t, err, "http provider needs a base url")

	_, err = New(config.AgentConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}
