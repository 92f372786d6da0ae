package torrentp2p

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vaguilera/MiniTorrent/logging"
	"github.com/vaguilera/MiniTorrent/tracker"
)

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 512

// Peer downloads files from one seeder.
type Peer struct {
	host   tracker.Peer
	client *http.Client
}

func NewPeer(host tracker.Peer, client *http.Client) *Peer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Peer{host: host, client: client}
}

func (p *Peer) downloadURL(fileName string) string {
	u := url.URL{
		Scheme:   "http",
		Host:     p.host.Addr(),
		Path:     "/download",
		RawQuery: url.Values{"file": {fileName}}.Encode(),
	}
	return u.String()
}

// fetch streams fileName from the peer into w. Every failure wraps
// ErrDownloadError; a 404 also wraps ErrNotFound.
func (p *Peer) fetch(ctx context.Context, fileName string, w io.Writer) (int64, error) {
	strHost := p.host.Addr()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.downloadURL(fileName), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDownloadError, err)
	}

	logging.Logger.Info("requesting file", "peer", strHost, "file", fileName)
	response, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrDownloadError, strHost, err)
	}
	defer response.Body.Close()

	switch response.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return 0, fmt.Errorf("%w: %w: %s from %s", ErrDownloadError, ErrNotFound, fileName, strHost)
	default:
		msg, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
		return 0, fmt.Errorf("%w: %s answered %d: %s", ErrDownloadError, strHost, response.StatusCode, strings.TrimSpace(string(msg)))
	}

	n, err := io.Copy(w, response.Body)
	if err != nil {
		return n, fmt.Errorf("%w: reading from %s: %w", ErrDownloadError, strHost, err)
	}
	if response.ContentLength >= 0 && n != response.ContentLength {
		return n, fmt.Errorf("%w: got %d of %d bytes from %s", ErrDownloadError, n, response.ContentLength, strHost)
	}
	return n, nil
}
