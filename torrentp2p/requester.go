package torrentp2p

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/vaguilera/MiniTorrent/logging"
	"github.com/vaguilera/MiniTorrent/torrentfile"
	"github.com/vaguilera/MiniTorrent/tracker"
)

// RequesterOptions tunes a Requester. The zero value is usable.
type RequesterOptions struct {
	// Client performs peer downloads; its timeout bounds every transfer.
	Client *http.Client
	// Select chooses the peer to download from. Defaults to FirstPeer.
	Select PeerSelector
	// Verify checks the downloaded bytes against the descriptor's piece
	// hashes before they are stored.
	Verify bool
}

// Result describes a completed download.
type Result struct {
	Torrent  *torrentfile.Torrent
	Peer     tracker.Peer
	FileName string
	Path     string
	Size     int64
}

// Requester resolves a descriptor, asks the tracker for peers and downloads
// the file from one of them.
type Requester struct {
	tracker    PeerLister
	storage    *Storage
	client     *http.Client
	selectPeer PeerSelector
	verify     bool

	mu    sync.Mutex
	state RequesterState
}

func NewRequester(t PeerLister, storage *Storage, opts RequesterOptions) *Requester {
	r := &Requester{
		tracker:    t,
		storage:    storage,
		client:     opts.Client,
		selectPeer: opts.Select,
		verify:     opts.Verify,
	}
	if r.client == nil {
		r.client = http.DefaultClient
	}
	if r.selectPeer == nil {
		r.selectPeer = FirstPeer
	}
	return r
}

// State returns the state of the current or last fetch.
func (r *Requester) State() RequesterState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Requester) setState(s RequesterState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	logging.Logger.Debug("requester state", "state", s)
}

func (r *Requester) fail(err error) error {
	r.setState(RequesterFailed)
	return err
}

// Fetch downloads the content described by the descriptor at descriptorPath.
func (r *Requester) Fetch(ctx context.Context, descriptorPath string) (*Result, error) {
	r.setState(RequesterResolvingIdentifier)
	torrent, err := torrentfile.TorrentFromFile(descriptorPath)
	if err != nil {
		return nil, r.fail(fmt.Errorf("reading descriptor %s: %w", filepath.Base(descriptorPath), err))
	}
	return r.fetch(ctx, torrent)
}

// FetchTorrent downloads the content of an already loaded descriptor.
func (r *Requester) FetchTorrent(ctx context.Context, torrent *torrentfile.Torrent) (*Result, error) {
	r.setState(RequesterResolvingIdentifier)
	return r.fetch(ctx, torrent)
}

func (r *Requester) fetch(ctx context.Context, torrent *torrentfile.Torrent) (*Result, error) {
	infoHash := torrent.HexInfoHash()
	logging.Logger.Info("fetching peers", "info_hash", infoHash, "name", torrent.Name)

	r.setState(RequesterQueryingTracker)
	peers, err := r.tracker.GetPeers(ctx, infoHash)
	if err != nil {
		return nil, r.fail(fmt.Errorf("querying tracker: %w", err))
	}
	if len(peers) == 0 {
		return nil, r.fail(fmt.Errorf("%w for %s", ErrNoSeedersAvailable, infoHash))
	}
	logging.Logger.Info("found seeders", "info_hash", infoHash, "count", len(peers))

	r.setState(RequesterDownloading)
	host := r.selectPeer(peers)
	fileName := torrent.Name
	if len(host.FileNames) > 0 {
		fileName = host.FileNames[0]
	}

	part, err := r.storage.CreatePartial(torrent.Name)
	if err != nil {
		return nil, r.fail(fmt.Errorf("saving %s: %w", torrent.Name, err))
	}
	defer part.Discard()

	n, err := NewPeer(host, r.client).fetch(ctx, fileName, part)
	if err != nil {
		return nil, r.fail(err)
	}
	if uint64(n) != torrent.Length {
		return nil, r.fail(fmt.Errorf("%w: got %d bytes from %s, descriptor says %d", ErrDownloadError, n, host.Addr(), torrent.Length))
	}

	if r.verify {
		if _, err := part.Seek(0, io.SeekStart); err != nil {
			return nil, r.fail(err)
		}
		if err := torrent.VerifyReader(part); err != nil {
			return nil, r.fail(fmt.Errorf("%w: %w", ErrDownloadError, err))
		}
	}

	if err := part.Commit(); err != nil {
		return nil, r.fail(fmt.Errorf("saving %s: %w", torrent.Name, err))
	}

	res := &Result{
		Torrent:  torrent,
		Peer:     host,
		FileName: fileName,
		Path:     filepath.Join(r.storage.Root, torrent.Name),
		Size:     n,
	}
	r.setState(RequesterDone)
	logging.Logger.Info("file downloaded",
		"file", fileName,
		"peer", host.Addr(),
		"size", humanize.IBytes(uint64(n)),
		"path", res.Path,
	)
	return res, nil
}
