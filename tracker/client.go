package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// StatusError is returned when the tracker answers with a non-200 status.
type StatusError struct {
	Code    int
	Message string
	// Err is the sentinel the status maps to, if any.
	Err error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tracker returned %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Client talks to a tracker over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a Client for the tracker at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(req *http.Request, out interface{}, badRequest error) error {
	response, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if response.StatusCode != http.StatusOK {
		se := &StatusError{Code: response.StatusCode, Message: strings.TrimSpace(string(contents))}
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(contents, &body) == nil && body.Error != "" {
			se.Message = body.Error
		}
		if response.StatusCode == http.StatusBadRequest {
			se.Err = badRequest
		}
		return se
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(contents, out); err != nil {
		return fmt.Errorf("decoding tracker response: %w", err)
	}
	return nil
}

// Announce registers a peer with the tracker.
func (c *Client) Announce(ctx context.Context, a AnnounceRequest) error {
	body, err := json.Marshal(struct {
		InfoHash  string `json:"info_hash"`
		FileNames string `json:"file_names"`
		IP        string `json:"ip"`
		Port      uint16 `json:"port"`
	}{a.InfoHash, strings.Join(a.FileNames, FileNameSeparator), a.IP, uint16(a.Port)})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/announce", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil, ErrInvalidAnnounce)
}

// GetPeers asks the tracker which peers hold infoHash.
func (c *Client) GetPeers(ctx context.Context, infoHash string) ([]Peer, error) {
	u := c.BaseURL + "/get_peers?" + url.Values{"info_hash": {infoHash}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var peers []Peer
	if err := c.do(req, &peers, nil); err != nil {
		return nil, err
	}
	if peers == nil {
		peers = []Peer{}
	}
	return peers, nil
}

// Dump fetches the tracker's full registry.
func (c *Client) Dump(ctx context.Context) (map[string][]Peer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/show_tracker_data", nil)
	if err != nil {
		return nil, err
	}

	data := map[string][]Peer{}
	if err := c.do(req, &data, nil); err != nil {
		return nil, err
	}
	return data, nil
}

// Local adapts a Registry in the same process to the context-taking client
// methods.
type Local struct {
	Registry *Registry
}

func (l Local) Announce(ctx context.Context, a AnnounceRequest) error {
	_, err := l.Registry.Announce(a)
	return err
}

func (l Local) GetPeers(ctx context.Context, infoHash string) ([]Peer, error) {
	return l.Registry.GetPeers(infoHash), nil
}
