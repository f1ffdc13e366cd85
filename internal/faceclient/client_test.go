package faceclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkipModeReturnsCannedMatch(t *testing.T) {
	c := New("http://unused", true)

	res, err := c.Search(context.Background(), []byte("frame"), "frame.jpg")
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "S000_Mock Student", res.Matches[0].Identity)

	enr, err := c.Enroll(context.Background(), "S1_Alice", []byte("photo"), "photo.jpg")
	require.NoError(t, err)
	assert.True(t, enr.Success)

	assert.NoError(t, c.Health(context.Background()))
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("photo")
		require.NoError(t, err)

		_ = json.NewEncoder(w).Encode(SearchResult{
			Matches:       []Match{{Identity: "S1_Alice", Distance: 0.21}},
			FacesDetected: 1,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	res, err := c.Search(context.Background(), []byte("frame"), "frame.jpg")
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "S1_Alice", res.Matches[0].Identity)
	assert.InDelta(t, 0.21, res.Matches[0].Distance, 1e-9)
}

func TestSearchNoMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(SearchResult{FacesDetected: 1})
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	res, err := c.Search(context.Background(), []byte("frame"), "frame.jpg")
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
}

func TestEnroll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/enroll", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "S1_Alice", r.FormValue("label"))
		_ = json.NewEncoder(w).Encode(EnrollResult{Label: "S1_Alice", Success: true})
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	res, err := c.Enroll(context.Background(), "S1_Alice", []byte("photo"), "photo.jpg")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestHealth(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		if !healthy {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	assert.NoError(t, c.Health(context.Background()))

	healthy = false
	assert.Error(t, c.Health(context.Background()))
}

func TestServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no face detected", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	_, err := c.Search(context.Background(), []byte("frame"), "frame.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no face detected")
}
