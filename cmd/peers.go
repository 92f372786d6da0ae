package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/vaguilera/MiniTorrent/tracker"
)

var (
	peersTracker string

	peersCmd = &cobra.Command{
		Use:   "peers [info_hash]",
		Short: "list the peers a tracker knows, for one torrent or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("tracker") {
				cfg.Tracker.URL = peersTracker
			}
			client := tracker.NewClient(cfg.Tracker.URL, cfg.Peer.Timeout)
			ctx := context.Background()

			var out interface{}
			if len(args) == 1 {
				peers, err := client.GetPeers(ctx, args[0])
				if err != nil {
					return err
				}
				out = peers
			} else {
				dump, err := client.Dump(ctx)
				if err != nil {
					return err
				}
				out = dump
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
)

func init() {
	peersCmd.Flags().StringVar(&peersTracker, "tracker", "", "tracker URL (default from config)")
}
