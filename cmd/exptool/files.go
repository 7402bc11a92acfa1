package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/chessexp/internal/store"
)

var defragCmd = &cobra.Command{
	Use:   "defrag <file.exp>",
	Short: "Rewrite a file, merging duplicate moves and upgrading old versions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStore()
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Defragment(args[0]); err != nil {
			return err
		}
		st := s.Stats()
		logger.Info().
			Str("file", args[0]).
			Int("positions", st.Positions).
			Int("moves", st.Moves).
			Uint64("duplicates", st.Duplicates).
			Msg("defragmented")
		return nil
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge <target.exp> <source.exp>...",
	Short: "Merge experience files into the target",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, sources := args[0], args[1:]

		// Check every source up front so a typo fails before the target
		// is rewritten.
		infos := make([]store.FileInfo, len(sources))
		g, _ := errgroup.WithContext(cmd.Context())
		g.SetLimit(4)
		for i, src := range sources {
			g.Go(func() error {
				info, err := store.Inspect(nil, src)
				if err != nil {
					return err
				}
				infos[i] = info
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for _, info := range infos {
			logger.Info().
				Str("file", info.Name).
				Int("version", info.Version).
				Int64("records", info.Records).
				Msg("source")
		}

		s, err := newStore()
		if err != nil {
			return err
		}
		defer s.Close()
		n, err := s.MergeFiles(target, sources...)
		if err != nil {
			return err
		}
		logger.Info().Int("merged", n).Str("target", target).Int("moves", s.Stats().Moves).Msg("merge complete")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <file.exp>...",
	Short: "Describe experience files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		load, _ := cmd.Flags().GetBool("load")
		asJSON, _ := cmd.Flags().GetBool("json")

		if load {
			out := make([]store.Stats, 0, len(args))
			for _, f := range args {
				s, err := newStore()
				if err != nil {
					return err
				}
				err = s.Load(f, true)
				st := s.Stats()
				s.Close()
				if err != nil {
					return err
				}
				out = append(out, st)
			}
			return printStats(out, asJSON)
		}

		infos := make([]store.FileInfo, 0, len(args))
		for _, f := range args {
			info, err := store.Inspect(nil, f)
			if err != nil {
				return err
			}
			infos = append(infos, info)
		}
		if asJSON {
			return json.NewEncoder(os.Stdout).Encode(infos)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tVERSION\tRECORDS\tSIZE")
		for _, info := range infos {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", info.Name, info.Version, humanize.Comma(info.Records), humanize.IBytes(uint64(info.Size)))
		}
		return tw.Flush()
	},
}

func printStats(all []store.Stats, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(all)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tPOSITIONS\tMOVES\tDUPLICATES\tFRAGMENTATION")
	for _, st := range all {
		frag := 0.0
		if st.Moves > 0 {
			frag = 100 * float64(st.Duplicates) / float64(st.Moves)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f%%\n", st.File,
			humanize.Comma(int64(st.Positions)), humanize.Comma(int64(st.Moves)),
			humanize.Comma(int64(st.Duplicates)), frag)
	}
	return tw.Flush()
}

var exportCmd = &cobra.Command{
	Use:   "export <file.exp>",
	Short: "Dump every record as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		s, err := newStore()
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Load(args[0], true); err != nil {
			return err
		}

		w := os.Stdout
		if output != "" && output != "-" {
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		rows, err := s.WriteCSV(w)
		if err != nil {
			return err
		}
		logger.Info().Int("rows", rows).Str("file", args[0]).Msg("export complete")
		return nil
	},
}

var importCSVCmd = &cobra.Command{
	Use:   "import-csv <source.csv> <dest.exp>",
	Short: "Append a CSV dump to an experience file and defragment it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer in.Close()

		s, err := newStore()
		if err != nil {
			return err
		}
		n, err := s.ImportCSV(in, args[1])
		s.Close()
		if err != nil {
			return err
		}
		logger.Info().Int("records", n).Str("file", args[1]).Msg("imported, defragmenting")

		d, err := newStore()
		if err != nil {
			return err
		}
		defer d.Close()
		return d.Defragment(args[1])
	},
}

func init() {
	statsCmd.Flags().Bool("load", false, "load each file and report positions, moves and duplicates")
	statsCmd.Flags().Bool("json", false, "output as JSON")
	exportCmd.Flags().StringP("output", "o", "", "output CSV file (default stdout)")
}
