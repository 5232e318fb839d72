package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var env string
	serve := serveCmd(&env)

	rootCmd := &cobra.Command{
		Use:           "relay",
		Short:         "Room relay between a point of sale and its second screen",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "config environment (reads config/config.<env>.yaml)")
	rootCmd.AddCommand(serve, versionCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("relay exited with error")
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("relay %s (%s)\n", version, commit)
		},
	}
}
