package main

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/vaguilera/MiniTorrent/config"
	"github.com/vaguilera/MiniTorrent/logging"
)

var (
	configPath string
	logLevel   string
	noColor    bool

	cfg config.Config

	rootCmd = &cobra.Command{
		Use:           "minitorrent",
		Short:         "MiniTorrent tracker, seeder and requester",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Setup(logLevel, noColor); err != nil {
				return err
			}
			var err error
			cfg, err = config.Load(configPath)
			return err
		},
	}
)

func init() {
	log.SetFlags(0)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored log output")

	rootCmd.AddCommand(trackerCmd, createCmd, seedCmd, requestCmd, peersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalln(err)
	}
}
