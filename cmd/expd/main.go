// Command expd hosts an experience file behind the line protocol on stdin
// and stdout, with an optional HTTP query listener.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/freeeve/chessexp/internal/analyze"
	"github.com/freeeve/chessexp/internal/eco"
	"github.com/freeeve/chessexp/internal/experience"
	"github.com/freeeve/chessexp/internal/httpapi"
	"github.com/freeeve/chessexp/internal/logx"
	"github.com/freeeve/chessexp/internal/protocol"
	"github.com/freeeve/chessexp/internal/store"
)

func main() {
	defaults := experience.DefaultOptions()
	if f := os.Getenv("CHESSEXP_FILE"); f != "" {
		defaults.File = f
	}

	var (
		file       = flag.String("file", defaults.File, "experience file (env CHESSEXP_FILE)")
		disabled   = flag.Bool("disabled", false, "start with the experience disabled")
		readonly   = flag.Bool("readonly", false, "never write the experience file")
		importance = flag.Int("eval-importance", defaults.EvalImportance, "evaluation weight in move quality (0-10)")

		writeBuffer = flag.String("write-buffer", "16MiB", "bytes buffered per write during saves and imports")

		addr = flag.String("addr", "", "HTTP listen address (empty = disabled)")

		stockfishPath = flag.String("stockfish", os.Getenv("STOCKFISH_PATH"), "analysis engine for learn and PGN import (env STOCKFISH_PATH)")
		evalDepth     = flag.Int("eval-depth", 20, "analysis depth")
		evalMultiPV   = flag.Int("eval-multipv", 1, "lines per analysis")
		evalThreads   = flag.Int("eval-threads", 1, "analysis engine threads")
		evalHash      = flag.Int("eval-hash", 256, "analysis engine hash MB")
		importWorkers = flag.Int("import-workers", 1, "analysis engines used by PGN imports")

		ecoDir   = flag.String("eco-dir", "", "directory containing ECO .tsv files")
		logLevel = flag.String("log-level", "info", "diagnostic log level (logs go to stderr)")
	)
	flag.Parse()

	logger, err := logx.NewLogger(logx.Options{Out: os.Stderr, Level: *logLevel})
	if err != nil {
		logger.Fatal().Err(err).Msg("logger")
	}

	bufSize, err := humanize.ParseBytes(*writeBuffer)
	if err != nil {
		logger.Fatal().Err(err).Str("write_buffer", *writeBuffer).Msg("parse write buffer size")
	}

	engineCfg := analyze.Config{
		Path:    *stockfishPath,
		Depth:   *evalDepth,
		MultiPV: *evalMultiPV,
		HashMB:  *evalHash,
		Threads: *evalThreads,
		Logger:  logger.With().Str("component", "engine").Logger(),
	}

	cfg := experience.Config{
		Options: experience.Options{
			Enabled:        !*disabled,
			File:           *file,
			Readonly:       *readonly,
			EvalImportance: *importance,
		},
		Store:         store.Config{WriteBufferSize: int(bufSize)},
		Out:           os.Stdout,
		Logger:        logger.With().Str("component", "experience").Logger(),
		ImportWorkers: *importWorkers,
	}

	if *stockfishPath != "" {
		engine, err := analyze.NewEngine(engineCfg)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *stockfishPath).Msg("start analysis engine")
		}
		defer engine.Close()
		cfg.Analyzer = engine
		cfg.NewAnalyzer = func() (analyze.Analyzer, error) { return analyze.NewEngine(engineCfg) }
		logger.Info().Str("path", *stockfishPath).Int("depth", engine.Depth()).Msg("analysis engine ready")
	}

	if *ecoDir != "" {
		db := eco.NewDatabase()
		if err := db.LoadDir(*ecoDir); err != nil {
			logger.Warn().Err(err).Str("dir", *ecoDir).Msg("failed to load ECO database")
		} else {
			cfg.ECO = db
			logger.Info().Int("openings", db.Count()).Msg("ECO database loaded")
		}
	}

	exp := experience.New(cfg)
	if err := exp.Init(); err != nil {
		logger.Error().Err(err).Msg("load experience")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if *addr != "" {
		srv = &http.Server{
			Addr:         *addr,
			Handler:      httpapi.NewRouter(logger.With().Str("component", "http").Logger(), exp),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", srv.Addr).Msg("api listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal().Err(err).Msg("api server")
			}
		}()
	}

	host := protocol.NewHost(exp, logger.With().Str("component", "protocol").Logger())
	done := make(chan error, 1)
	go func() { done <- host.Run(ctx, os.Stdin) }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error().Err(err).Msg("protocol loop")
		}
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down...")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http server shutdown error")
		}
		cancel()
	}

	if err := exp.Close(); err != nil {
		logger.Error().Err(err).Msg("save experience")
	}
	st := exp.Stats()
	logger.Info().
		Uint64("saves", st.Saves).
		Uint64("records_written", st.RecordsWritten).
		Msg("shutdown complete")
}
