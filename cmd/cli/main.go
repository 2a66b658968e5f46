// cmd/cli is the offline maintenance tool: it works on the data directory
// while the bot is stopped.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"izumi/internal/config"
	"izumi/internal/lyrics"
	mem "izumi/internal/memory"
	"izumi/internal/reminder"
	"izumi/pkg/util"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var dataDir string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	def := "data"
	if cfg, err := config.Load(); err == nil {
		cfg.SetupLogging()
		def = cfg.DataDir
	}

	root := &cobra.Command{
		Use:           "izumi-cli",
		Short:         "Maintenance tool for the " + config.AppName + " data directory",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&dataDir, "data", "d", def, "data directory")

	root.AddCommand(migrateCmd(), exportCmd(), parseDurationCmd(), matchLyricCmd(), statsCmd())
	return root
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Fold legacy split documents into the unified memory document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := mem.Open(dataDir)
			if err != nil {
				return fmt.Errorf("open memory: %w", err)
			}
			if err := store.Save(); err != nil {
				return fmt.Errorf("save memory: %w", err)
			}
			st := store.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "Unified document %s holds %d user(s), version %s\n", store.Path(), st.Users, st.Version)
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var out string
	c := &cobra.Command{
		Use:   "export",
		Short: "Write a sanitized copy of the memory document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := mem.Open(dataDir)
			if err != nil {
				return fmt.Errorf("open memory: %w", err)
			}
			data, err := store.Export()
			if err != nil {
				return fmt.Errorf("export memory: %w", err)
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if out == "" {
				out = filepath.Join(dataDir, util.FormatDateTpl(time.Now(), mem.ExportName))
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d bytes to %s\n", len(data), out)
			return nil
		},
	}
	c.Flags().StringVarP(&out, "out", "o", "", `output file, "-" for stdout`)
	return c
}

func parseDurationCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "parse-duration <text>",
		Short:   "Show how a reminder duration is understood",
		Example: "  izumi-cli parse-duration 2d 6h 30m",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := reminder.ParseDuration(strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %d seconds\n", reminder.Format(d), int64(d/time.Second))
			return nil
		},
	}
}

func matchLyricCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match-lyric <text>",
		Short: "Find the lyric line a message quotes and the line that follows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := lyrics.Load(dataDir)
			if err != nil {
				log.Debugf("lyrics: %v, using the built-in songs", err)
				lib = lyrics.NewLibrary(lyrics.DefaultSongs())
			}
			m, ok := lib.FindMatch(strings.Join(args, " "))
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No match.")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print memory store statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := mem.Open(dataDir)
			if err != nil {
				return fmt.Errorf("open memory: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), store.Stats())
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
