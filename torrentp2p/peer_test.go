package torrentp2p

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaguilera/MiniTorrent/tracker"
)

func hostFor(t *testing.T, ts *httptest.Server) tracker.Peer {
	t.Helper()
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return tracker.Peer{IP: host, Port: uint16(port)}
}

func Test_downloadURL(t *testing.T) {
	p := NewPeer(tracker.Peer{IP: "127.0.0.1", Port: 6881}, nil)
	assert.Equal(t, "http://127.0.0.1:6881/download?file=my+file.txt", p.downloadURL("my file.txt"))
}

func Test_fetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("file") {
		case "a.txt":
			w.Write([]byte("content"))
		case "boom":
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		default:
			http.Error(w, "File not found", http.StatusNotFound)
		}
	}))
	defer ts.Close()

	p := NewPeer(hostFor(t, ts), ts.Client())
	ctx := context.Background()

	var buf bytes.Buffer
	n, err := p.fetch(ctx, "a.txt", &buf)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
	assert.Equal(t, "content", buf.String())

	_, err = p.fetch(ctx, "missing.txt", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrDownloadError)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = p.fetch(ctx, "boom", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrDownloadError)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "500")
}

func Test_fetchTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	client := &http.Client{Timeout: 50 * time.Millisecond}
	_, err := NewPeer(hostFor(t, ts), client).fetch(context.Background(), "a.txt", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrDownloadError)
}

func Test_fetchUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	host := hostFor(t, ts)
	ts.Close()

	_, err := NewPeer(host, nil).fetch(context.Background(), "a.txt", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrDownloadError)
}
