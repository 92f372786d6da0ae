package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vaguilera/MiniTorrent/logging"
	"github.com/vaguilera/MiniTorrent/torrentp2p"
	"github.com/vaguilera/MiniTorrent/tracker"
)

var (
	seedPort          int
	seedHost          string
	seedDescriptorDir string

	seedCmd = &cobra.Command{
		Use:   "seed <file>",
		Short: "share a file and serve it until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				cfg.Peer.SeedPort = seedPort
			}
			if cmd.Flags().Changed("host") {
				cfg.Peer.Host = seedHost
			}
			if cmd.Flags().Changed("descriptor-dir") {
				cfg.Peer.DescriptorDir = seedDescriptorDir
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSeed(ctx, args[0])
		},
	}
)

func init() {
	seedCmd.Flags().IntVarP(&seedPort, "port", "p", 0, "download port (default from config, 6881)")
	seedCmd.Flags().StringVar(&seedHost, "host", "", "address announced to the tracker")
	seedCmd.Flags().StringVar(&seedDescriptorDir, "descriptor-dir", "", "directory for the descriptor (default: the peer folder)")
}

func runSeed(ctx context.Context, path string) error {
	if cfg.Peer.SeedPort < 1 || cfg.Peer.SeedPort > 65535 {
		return fmt.Errorf("invalid seed port %d", cfg.Peer.SeedPort)
	}
	pieceLength, err := cfg.Peer.PieceLengthBytes()
	if err != nil {
		return err
	}

	storage, err := torrentp2p.NewStorage(cfg.Peer.PeerFolder(cfg.Peer.SeedPort))
	if err != nil {
		return err
	}

	// Bind before announcing so requesters never see an address nobody
	// listens on.
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(cfg.Peer.SeedPort)))
	if err != nil {
		return err
	}

	seeder := torrentp2p.NewSeeder(tracker.NewClient(cfg.Tracker.URL, cfg.Peer.Timeout), storage, torrentp2p.SeederOptions{
		Host:          cfg.Peer.Host,
		Port:          uint16(cfg.Peer.SeedPort),
		PieceLength:   pieceLength,
		Announce:      cfg.Tracker.URL,
		DescriptorDir: cfg.Peer.DescriptorDir,
	})

	shared, err := seeder.Share(ctx, path)
	if err != nil {
		ln.Close()
		return err
	}
	fmt.Printf("sharing %s\n  info hash:  %s\n  descriptor: %s\n",
		shared.Torrent.Name, shared.Torrent.HexInfoHash(), shared.DescriptorPath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- seeder.Serve(ctx, ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logging.Logger.Info("stopping seeder", "file", shared.Torrent.Name)
	return <-errCh
}
