// Command exptool maintains experience files offline.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/freeeve/chessexp/internal/logx"
	"github.com/freeeve/chessexp/internal/store"
)

var (
	logLevel    string
	writeBuffer string

	logger = zerolog.New(os.Stderr)
)

var rootCmd = &cobra.Command{
	Use:           "exptool",
	Short:         "Maintain chess engine experience files",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logx.NewLogger(logx.Options{Out: os.Stderr, Level: logLevel})
		return err
	},
}

// storeConfig builds the store settings shared by every command.
func storeConfig() (store.Config, error) {
	n, err := humanize.ParseBytes(writeBuffer)
	if err != nil {
		return store.Config{}, err
	}
	return store.Config{WriteBufferSize: int(n)}, nil
}

// newStore returns a store that logs through the command logger.
func newStore() (*store.Store, error) {
	cfg, err := storeConfig()
	if err != nil {
		return nil, err
	}
	s := store.New(cfg)
	s.SetLogger(func(format string, args ...any) { logger.Info().Msgf(format, args...) })
	return s, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")
	rootCmd.PersistentFlags().StringVar(&writeBuffer, "write-buffer", "16MiB", "bytes buffered per write")

	rootCmd.AddCommand(
		defragCmd,
		mergeCmd,
		statsCmd,
		showCmd,
		importCPGNCmd,
		pgnToCPGNCmd,
		exportCmd,
		importCSVCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg(rootCmd.Name() + " failed")
		stop()
		os.Exit(1)
	}
}
