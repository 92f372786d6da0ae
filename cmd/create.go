package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/vaguilera/MiniTorrent/torrentfile"
	"github.com/vaguilera/MiniTorrent/torrentp2p"
)

var (
	createPieceLength   string
	createAnnounce      string
	createDescriptorDir string

	createCmd = &cobra.Command{
		Use:   "create <file>",
		Short: "write a .torrent descriptor for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("piece-length") {
				cfg.Peer.PieceLength = createPieceLength
			}
			pieceLength, err := cfg.Peer.PieceLengthBytes()
			if err != nil {
				return err
			}
			announce := cfg.Tracker.URL
			if cmd.Flags().Changed("announce") {
				announce = createAnnounce
			}

			src := args[0]
			data, err := os.ReadFile(src)
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", torrentp2p.ErrFileNotFound, src)
			} else if err != nil {
				return err
			}

			t, err := torrentfile.Build(data, filepath.Base(src), pieceLength)
			if err != nil {
				return err
			}
			t.Announce = announce

			dir := createDescriptorDir
			if dir == "" {
				dir = filepath.Dir(src)
			}
			out := filepath.Join(dir, t.Name+".torrent")
			if err := t.WriteFile(out); err != nil {
				return err
			}

			fmt.Printf("%s\n  info hash: %s\n  size:      %s in %d pieces of %s\n",
				out, t.HexInfoHash(), humanize.IBytes(t.Length), len(t.PieceHashes), humanize.IBytes(uint64(t.PieceLength)))
			return nil
		},
	}
)

func init() {
	createCmd.Flags().StringVar(&createPieceLength, "piece-length", "", "piece length, e.g. 1MiB or 262144")
	createCmd.Flags().StringVar(&createAnnounce, "announce", "", "tracker URL written into the descriptor")
	createCmd.Flags().StringVar(&createDescriptorDir, "descriptor-dir", "", "directory for the descriptor (default: next to the file)")
}
