package torrentp2p

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vaguilera/MiniTorrent/logging"
	"github.com/vaguilera/MiniTorrent/torrentfile"
	"github.com/vaguilera/MiniTorrent/tracker"
)

const defaultShutdownTimeout = 5 * time.Second

// SeederOptions configures a Seeder.
type SeederOptions struct {
	// Host and Port are announced to the tracker as the download address.
	Host string
	Port uint16
	// PieceLength defaults to torrentfile.DefaultPieceLength.
	PieceLength int
	// Announce is the tracker URL written into descriptors.
	Announce string
	// DescriptorDir receives <name>.torrent files. Defaults to the storage
	// root.
	DescriptorDir string
	// ShutdownTimeout bounds graceful shutdown in Serve.
	ShutdownTimeout time.Duration
}

// Shared is the outcome of a successful Share.
type Shared struct {
	Torrent        *torrentfile.Torrent
	DescriptorPath string
}

// Seeder shares files from its storage and serves them to requesters.
type Seeder struct {
	opts    SeederOptions
	storage *Storage
	tracker Announcer

	mu    sync.Mutex
	state SeederState
}

func NewSeeder(t Announcer, storage *Storage, opts SeederOptions) *Seeder {
	if opts.PieceLength == 0 {
		opts.PieceLength = torrentfile.DefaultPieceLength
	}
	if opts.DescriptorDir == "" {
		opts.DescriptorDir = storage.Root
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Seeder{opts: opts, storage: storage, tracker: t}
}

// State returns the seeder's lifecycle state.
func (s *Seeder) State() SeederState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Seeder) advance(to SeederState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if to > s.state {
		s.state = to
		logging.Logger.Debug("seeder state", "state", to)
	}
}

// Share copies the file at path into storage, writes its descriptor and
// announces it. A missing file fails with ErrFileNotFound before anything is
// announced.
func (s *Seeder) Share(ctx context.Context, path string) (*Shared, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrFileNotFound, path)
	}

	name, err := s.storage.Import(path)
	if err != nil {
		return nil, err
	}
	data, err := s.storage.ReadFile(name)
	if err != nil {
		return nil, err
	}

	torrent, err := torrentfile.Build(data, name, s.opts.PieceLength)
	if err != nil {
		return nil, err
	}
	torrent.Announce = s.opts.Announce

	descriptorPath := filepath.Join(s.opts.DescriptorDir, name+".torrent")
	if err := torrent.WriteFile(descriptorPath); err != nil {
		return nil, fmt.Errorf("writing descriptor: %w", err)
	}
	logging.Logger.Info("descriptor created",
		"path", descriptorPath,
		"info_hash", torrent.HexInfoHash(),
		"size", humanize.IBytes(torrent.Length),
		"pieces", len(torrent.PieceHashes),
	)

	err = s.tracker.Announce(ctx, tracker.AnnounceRequest{
		InfoHash:  torrent.HexInfoHash(),
		FileNames: tracker.FileNames{name},
		IP:        s.opts.Host,
		Port:      tracker.Port(s.opts.Port),
	})
	if err != nil {
		return nil, fmt.Errorf("announcing %s: %w", name, err)
	}
	logging.Logger.Info("registered with tracker", "info_hash", torrent.HexInfoHash(), "file", name)

	s.advance(SeederSharingRegistered)
	return &Shared{Torrent: torrent, DescriptorPath: descriptorPath}, nil
}

// Handler serves GET /download?file=<name> from storage.
func (s *Seeder) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /download", s.handleDownload)
	return mux
}

func (s *Seeder) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("file")
	if name == "" {
		http.Error(w, "Missing file parameter", http.StatusBadRequest)
		return
	}
	logging.Logger.Info("download request", "file", name, "remote", r.RemoteAddr)

	f, err := s.storage.Open(name)
	if errors.Is(err, ErrNotFound) {
		logging.Logger.Warn("file not found", "file", name)
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Logger.Error("error while sending file", "file", name, "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, name, fi.ModTime(), f)
}

// Serve accepts download requests on ln until ctx is cancelled, then shuts
// down gracefully.
func (s *Seeder) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.advance(SeederServingDownloads)
	logging.Logger.Info("seeder serving downloads", "addr", ln.Addr().String(), "root", s.storage.Root)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
