package clients_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dramaforge/internal/clients"
	"dramaforge/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPFrameGenerator_GenerateFrame(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/frames", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req models.FrameRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "d1", req.DramaID)
		assert.Equal(t, 2, req.Slot)
		assert.True(t, req.Editable)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": models.FrameData{Script: "The train stops.", SceneID: "scene-s", DurationSeconds: 12},
		})
	}))
	defer server.Close()

	gen := clients.NewHTTPFrameGenerator(server.URL+"/", "secret", 5*time.Second, zap.NewNop())
	frame, err := gen.GenerateFrame(context.Background(), models.FrameRequest{DramaID: "d1", Slot: 2, Editable: true})
	require.NoError(t, err)
	assert.Equal(t, "The train stops.", frame.Script)
	assert.Equal(t, "scene-s", frame.SceneID)
	assert.Equal(t, 12.0, frame.DurationSeconds)
}

func TestHTTPFrameGenerator_ComposeFrame(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/compositions", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":{"script":"custom","videoUrl":"https://cdn/x.mp4"}}`))
	}))
	defer server.Close()

	gen := clients.NewHTTPFrameGenerator(server.URL, "", time.Second, zap.NewNop())
	frame, err := gen.ComposeFrame(context.Background(), models.CompositionParams{Script: "custom"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x.mp4", frame.VideoURL)
}

func TestHTTPFrameGenerator_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-OK status", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":`))
		}},
		{"missing data", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":null}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			gen := clients.NewHTTPFrameGenerator(server.URL, "", time.Second, zap.NewNop())
			_, err := gen.GenerateFrame(context.Background(), models.FrameRequest{DramaID: "d1"})
			assert.ErrorIs(t, err, models.ErrGenerationFailure)
		})
	}
}

func TestHTTPFrameGenerator_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	gen := clients.NewHTTPFrameGenerator(server.URL, "", 50*time.Millisecond, zap.NewNop())
	_, err := gen.GenerateFrame(context.Background(), models.FrameRequest{})
	assert.ErrorIs(t, err, models.ErrGenerationFailure)
}
