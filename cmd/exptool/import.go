package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/freeeve/chessexp/internal/analyze"
	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/cpgn"
	"github.com/freeeve/chessexp/internal/eco"
	"github.com/freeeve/chessexp/internal/experience"
	"github.com/freeeve/chessexp/internal/ingest"
)

var importCPGNCmd = &cobra.Command{
	Use:   "import-cpgn <source.cpgn[.gz|.zst]> <dest.exp>",
	Short: "Convert scored games in compact notation into experience",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		maxPly, _ := f.GetInt("max-ply")
		maxValue, _ := f.GetInt("max-value")
		minDepth, _ := f.GetInt("min-depth")
		maxDepth, _ := f.GetInt("max-depth")

		scfg, err := storeConfig()
		if err != nil {
			return err
		}
		c := cpgn.NewConverter(cpgn.Config{
			MaxPly:          maxPly,
			MaxValue:        chess.Value(maxValue),
			MinDepth:        chess.Depth(minDepth),
			MaxDepth:        chess.Depth(maxDepth),
			WriteBufferSize: scfg.WriteBufferSize,
			Logger:          logger.With().Str("component", "cpgn").Logger(),
		})
		st, err := c.Convert(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		logger.Info().Str("file", args[1]).Msg(st.String())
		return nil
	},
}

var pgnToCPGNCmd = &cobra.Command{
	Use:   "pgn-to-cpgn <source.pgn[.zst]> <dest.cpgn[.zst]>",
	Short: "Convert PGN games to compact notation, scored by an analysis engine",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		ratingMin, _ := f.GetInt("rating-min")
		maxGames, _ := f.GetInt("max-games")
		plies, _ := f.GetInt("annotate-plies")
		workers, _ := f.GetInt("workers")
		enginePath, _ := f.GetString("stockfish")
		depth, _ := f.GetInt("depth")

		cfg := ingest.Config{
			RatingMin:     ratingMin,
			MaxGames:      maxGames,
			AnnotatePlies: plies,
			Workers:       workers,
			Logger:        logger.With().Str("component", "ingest").Logger(),
		}
		if enginePath != "" {
			ecfg := analyze.Config{
				Path:   enginePath,
				Depth:  depth,
				Logger: logger.With().Str("component", "engine").Logger(),
			}
			cfg.NewAnalyzer = func() (analyze.Analyzer, error) { return analyze.NewEngine(ecfg) }
		}

		st, err := ingest.New(cfg).Run(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		logger.Info().
			Int64("games", st.Games).
			Int64("skipped", st.Skipped).
			Int64("positions", st.Positions).
			Int64("annotated", st.Annotated).
			Msg("conversion complete")
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <file.exp>",
	Short: "List the stored moves of a position",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		fen, _ := f.GetString("fen")
		moves, _ := f.GetStringSlice("moves")
		extended, _ := f.GetBool("extended")
		importance, _ := f.GetInt("eval-importance")
		ecoDir, _ := f.GetString("eco-dir")
		asJSON, _ := f.GetBool("json")

		pos, err := chess.NewPosition(fen)
		if err != nil {
			return err
		}
		if err := pos.PlayUCI(moves); err != nil {
			return err
		}

		scfg, err := storeConfig()
		if err != nil {
			return err
		}
		cfg := experience.Config{
			Options: experience.Options{Enabled: true, File: args[0], Readonly: true, EvalImportance: importance},
			Store:   scfg,
			Logger:  logger,
		}
		if ecoDir != "" {
			db := eco.NewDatabase()
			if err := db.LoadDir(ecoDir); err != nil {
				return err
			}
			cfg.ECO = db
		}

		exp := experience.New(cfg)
		if err := exp.Init(); err != nil {
			return err
		}
		defer exp.Close()

		if !asJSON {
			return exp.Show(pos, extended)
		}
		cands, err := exp.Candidates(pos)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cands)
	},
}

func init() {
	f := importCPGNCmd.Flags()
	f.Int("max-ply", 0, "plies per game to import (0 = all)")
	f.Int("max-value", 0, "largest absolute score imported (0 = mate)")
	f.Int("min-depth", 0, "shallowest depth imported (at least 4)")
	f.Int("max-depth", 0, "deepest depth imported (0 = no limit)")

	f = pgnToCPGNCmd.Flags()
	f.Int("rating-min", 0, "minimum rating of both players")
	f.Int("max-games", 0, "maximum games to convert (0 = unlimited)")
	f.Int("annotate-plies", 0, "plies per game scored by the engine (0 = all)")
	f.Int("workers", 1, "games converted in parallel, one engine each")
	f.String("stockfish", os.Getenv("STOCKFISH_PATH"), "analysis engine (env STOCKFISH_PATH)")
	f.Int("depth", 20, "analysis depth")

	f = showCmd.Flags()
	f.String("fen", "startpos", "position")
	f.StringSlice("moves", nil, "UCI moves played from the position")
	f.Bool("extended", false, "include count and quality")
	f.Int("eval-importance", experience.DefaultOptions().EvalImportance, "evaluation weight in move quality (0-10)")
	f.String("eco-dir", "", "directory containing ECO .tsv files")
	f.Bool("json", false, "output as JSON")
}
