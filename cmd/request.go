package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/vaguilera/MiniTorrent/torrentfile"
	"github.com/vaguilera/MiniTorrent/torrentp2p"
	"github.com/vaguilera/MiniTorrent/tracker"
)

var (
	requestPort    int
	requestVerify  bool
	requestTracker string

	requestCmd = &cobra.Command{
		Use:   "request <descriptor>",
		Short: "download the file described by a .torrent descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				cfg.Peer.RequestPort = requestPort
			}
			if cmd.Flags().Changed("verify") {
				cfg.Peer.Verify = requestVerify
			}

			t, err := torrentfile.TorrentFromFile(args[0])
			if err != nil {
				return err
			}

			// The descriptor's announce URL is used unless a tracker is configured
			// or passed with --tracker.
			trackerURL := cfg.Tracker.URL
			if cmd.Flags().Changed("tracker") {
				trackerURL = requestTracker
			} else if t.Announce != "" && configPath == "" {
				trackerURL = t.Announce
			}

			storage, err := torrentp2p.NewStorage(cfg.Peer.PeerFolder(cfg.Peer.RequestPort))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r := torrentp2p.NewRequester(tracker.NewClient(trackerURL, cfg.Peer.Timeout), storage, torrentp2p.RequesterOptions{
				Client: &http.Client{Timeout: cfg.Peer.Timeout},
				Verify: cfg.Peer.Verify,
			})
			res, err := r.FetchTorrent(ctx, t)
			if err != nil {
				return err
			}

			fmt.Printf("downloaded %s (%s) from %s\n  saved to: %s\n",
				res.FileName, humanize.IBytes(uint64(res.Size)), res.Peer.Addr(), res.Path)
			return nil
		},
	}
)

func init() {
	requestCmd.Flags().IntVarP(&requestPort, "port", "p", 0, "requester port, names the peer_<port> folder (default 6882)")
	requestCmd.Flags().BoolVar(&requestVerify, "verify", false, "check downloaded data against the piece hashes")
	requestCmd.Flags().StringVar(&requestTracker, "tracker", "", "tracker URL (default: the descriptor's announce)")
}
