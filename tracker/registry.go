package tracker

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
)

// ErrInvalidAnnounce is returned when an announce is missing a field or a
// field is malformed.
var ErrInvalidAnnounce = errors.New("invalid announce")

// Stats summarises the registry.
type Stats struct {
	Torrents int `json:"torrents"`
	Records  int `json:"records"`
}

// Registry maps info hashes to the peers that announced them. Records are
// kept in announce order and live until the process exits.
type Registry struct {
	mu    sync.RWMutex
	peers map[string][]Peer
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[string][]Peer),
	}
}

// NormalizeInfoHash lowercases a hex info hash and checks it is 20 bytes.
func NormalizeInfoHash(infoHash string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(infoHash))
	if h == "" {
		return "", fmt.Errorf("%w: missing info_hash", ErrInvalidAnnounce)
	}
	if b, err := hex.DecodeString(h); err != nil || len(b) != 20 {
		return "", fmt.Errorf("%w: info_hash %q is not 40 hex characters", ErrInvalidAnnounce, infoHash)
	}
	return h, nil
}

func validHost(host string) bool {
	if host == "" {
		return false
	}
	if net.ParseIP(host) != nil {
		return true
	}
	for _, c := range host {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '.':
		default:
			return false
		}
	}
	return true
}

func (req AnnounceRequest) validate() (string, Peer, error) {
	infoHash, err := NormalizeInfoHash(req.InfoHash)
	if err != nil {
		return "", Peer{}, err
	}
	if req.IP == "" {
		return "", Peer{}, fmt.Errorf("%w: missing ip", ErrInvalidAnnounce)
	}
	if !validHost(req.IP) {
		return "", Peer{}, fmt.Errorf("%w: ip %q is not a valid host", ErrInvalidAnnounce, req.IP)
	}
	if req.Port == 0 {
		return "", Peer{}, fmt.Errorf("%w: missing port", ErrInvalidAnnounce)
	}
	names := SplitFileNames(req.FileNames)
	if len(names) == 0 {
		return "", Peer{}, fmt.Errorf("%w: missing file_names", ErrInvalidAnnounce)
	}
	return infoHash, Peer{IP: req.IP, Port: uint16(req.Port), FileNames: names}, nil
}

// Announce records that a peer offers files under an info hash. Repeating an
// identical announce is a no-op; added reports whether a record was appended.
func (r *Registry) Announce(req AnnounceRequest) (added bool, err error) {
	infoHash, peer, err := req.validate()
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.peers[infoHash] {
		if p.equal(peer) {
			return false, nil
		}
	}
	r.peers[infoHash] = append(r.peers[infoHash], peer)
	return true, nil
}

// GetPeers returns the peers announced for infoHash, or an empty list.
func (r *Registry) GetPeers(infoHash string) []Peer {
	key := strings.ToLower(strings.TrimSpace(infoHash))

	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Peer, 0, len(r.peers[key]))
	for _, p := range r.peers[key] {
		result = append(result, p.clone())
	}
	return result
}

// Dump returns a copy of the whole registry.
func (r *Registry) Dump() map[string][]Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string][]Peer, len(r.peers))
	for h, peers := range r.peers {
		list := make([]Peer, len(peers))
		for i, p := range peers {
			list[i] = p.clone()
		}
		result[h] = list
	}
	return result
}

// Stats returns the number of info hashes and records held.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := Stats{Torrents: len(r.peers)}
	for _, peers := range r.peers {
		stats.Records += len(peers)
	}
	return stats
}
