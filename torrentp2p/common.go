package torrentp2p

import (
	"context"
	"errors"

	"github.com/vaguilera/MiniTorrent/tracker"
)

var (
	// ErrNotFound means a seeder does not hold the requested file.
	ErrNotFound = errors.New("file not found on peer")
	// ErrNoSeedersAvailable means the tracker returned no peers.
	ErrNoSeedersAvailable = errors.New("no seeders available")
	// ErrDownloadError wraps any failure while fetching from a peer.
	ErrDownloadError = errors.New("download failed")
	// ErrFileNotFound means a file to be shared does not exist locally.
	ErrFileNotFound = errors.New("file to share not found")
)

// SeederState is the lifecycle of a Seeder.
type SeederState int

const (
	SeederIdle SeederState = iota
	SeederSharingRegistered
	SeederServingDownloads
)

func (s SeederState) String() string {
	switch s {
	case SeederIdle:
		return "idle"
	case SeederSharingRegistered:
		return "sharing-registered"
	case SeederServingDownloads:
		return "serving-downloads"
	}
	return "unknown"
}

// RequesterState is the lifecycle of a Requester fetch.
type RequesterState int

const (
	RequesterIdle RequesterState = iota
	RequesterResolvingIdentifier
	RequesterQueryingTracker
	RequesterDownloading
	RequesterDone
	RequesterFailed
)

func (s RequesterState) String() string {
	switch s {
	case RequesterIdle:
		return "idle"
	case RequesterResolvingIdentifier:
		return "resolving-identifier"
	case RequesterQueryingTracker:
		return "querying-tracker"
	case RequesterDownloading:
		return "downloading"
	case RequesterDone:
		return "done"
	case RequesterFailed:
		return "failed"
	}
	return "unknown"
}

// Announcer registers shared content with a tracker.
type Announcer interface {
	Announce(ctx context.Context, req tracker.AnnounceRequest) error
}

// PeerLister looks up which peers hold an info hash.
type PeerLister interface {
	GetPeers(ctx context.Context, infoHash string) ([]tracker.Peer, error)
}

// PeerSelector picks the peer to download from. peers is never empty.
type PeerSelector func(peers []tracker.Peer) tracker.Peer

// FirstPeer is the default selector.
func FirstPeer(peers []tracker.Peer) tracker.Peer {
	return peers[0]
}
