package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gihan9a/braidtrack/pkg/braidproto"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type note struct {
	path  string
	value any
}

func streamServer(t *testing.T, updates ...*braidproto.Update) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.Header.Get("Subscribe"))
		w.WriteHeader(braidproto.StatusSubscribed)
		for _, u := range updates {
			assert.NoError(t, braidproto.WriteUpdate(w, u))
		}
	}))
}

func TestRunAppliesSnapshotAndDiffs(t *testing.T) {
	srv := streamServer(t,
		&braidproto.Update{Version: "v1", Body: []byte(`{"name":"NoName","weapon":{"atk":10,"test":100}}`)},
		&braidproto.Update{Version: "v2", Parents: []string{"v1"}, MergeType: braidproto.MergeTypeTracked, Body: []byte(`{"weapon":{"test":1}}`)},
	)
	defer srv.Close()

	var notes []note
	c := New(srv.URL, func(path string, value any) {
		notes = append(notes, note{path, value})
	}, WithLogger(discard))

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []note{
		{"name", "NoName"},
		{"weapon.atk", float64(10)},
		{"weapon.test", float64(100)},
		{"weapon.test", float64(1)},
	}, notes)
	assert.Equal(t, "v2", c.Version())

	v, ok := c.Lookup("weapon.test")
	require.True(t, ok)
	assert.Equal(t, float64(1), v)
}

func TestRunRejectsRangePatches(t *testing.T) {
	srv := streamServer(t,
		&braidproto.Update{Version: "v1", Patches: []braidproto.Patch{{Unit: "replace", Range: "/name", Content: `"x"`}}},
	)
	defer srv.Close()

	err := New(srv.URL, nil, WithLogger(discard)).Run(context.Background())
	assert.ErrorIs(t, err, ErrUnsupportedUpdate)
}

func TestRunRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	err := New(srv.URL, nil, WithLogger(discard)).Run(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedStatus)

	err = New(srv.URL, nil, WithLogger(discard)).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Version", `"0000abcd"`)
		w.Write([]byte(`{"name":"Alice","def":3}`))
	}))
	defer srv.Close()

	var notes []note
	c := New(srv.URL, func(path string, value any) {
		notes = append(notes, note{path, value})
	}, WithLogger(discard))

	require.NoError(t, c.Fetch(context.Background()))
	assert.Equal(t, []note{{"def", float64(3)}, {"name", "Alice"}}, notes)
	assert.Equal(t, `"0000abcd"`, c.Version())
}

func TestRunStopsOnCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(braidproto.StatusSubscribed)
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	c := New(srv.URL, nil, WithLogger(discard))

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
}
