package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServerHealthz(t *testing.T) {
	healthy := NewServer(ServerConfig{Port: 1})
	assert.Equal(t, http.StatusOK, get(t, healthy.Handler(), "/healthz").Code)

	failing := NewServer(ServerConfig{
		Port: 1,
		Healthcheck: func(ctx context.Context) error {
			return errors.New("store closed")
		},
	})
	rec := get(t, failing.Handler(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "store closed")
}

func TestServerDefaults(t *testing.T) {
	s := NewServer(ServerConfig{})
	assert.Equal(t, DefaultPort, s.Port())
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/missing").Code)
}

func TestServerStatusPage(t *testing.T) {
	s := NewServer(ServerConfig{
		Port: 1,
		Status: func(ctx context.Context) (*Status, error) {
			return &Status{
				MountDir:    "/mnt/nsfs",
				Sessions:    2,
				OpenFiles:   5,
				Files:       1200,
				Directories: 3,
				UsedBytes:   3 << 20,
			}, nil
		},
	})

	rec := get(t, s.Handler(), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Regexp(t, `mount\s+/mnt/nsfs`, body)
	assert.Regexp(t, `sessions\s+2`, body)
	assert.Regexp(t, `open files\s+5`, body)
	assert.Regexp(t, `files\s+1,200`, body)
	assert.Regexp(t, `used\s+3\.0 MiB`, body)
	assert.Contains(t, body, "/metrics")

	broken := NewServer(ServerConfig{
		Port: 1,
		Status: func(ctx context.Context) (*Status, error) {
			return nil, errors.New("metadata store closed")
		},
	})
	rec = get(t, broken.Handler(), "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "status unavailable: metadata store closed")
}

func TestServerMetricsEndpoint(t *testing.T) {
	Enable()
	s := NewServer(ServerConfig{Port: 1})

	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
	assert.Contains(t, rec.Body.String(), "nsfs_process_")
}

func TestServerServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	s := NewServer(ServerConfig{Port: port})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/healthz", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
