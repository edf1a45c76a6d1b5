// xanthosctl: command-line maintenance for a xanthos cache directory
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/agilira/xanthos"
)

// Global flags
var (
	cacheDir string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:     "xanthosctl",
	Short:   "Inspect and maintain a xanthos market-bar cache directory",
	Long:    `xanthosctl reports on, verifies, repairs and re-encodes the payload files and metadata table of a xanthos cache directory.`,
	Version: xanthos.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize cache contents (bytes, entries, completeness)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache()
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()

		r := cache.Report()
		fmt.Printf("total bytes:   %d\n", r.TotalBytes)
		fmt.Printf("total entries: %d\n", r.TotalEntries)
		fmt.Printf("complete:      %d\n", r.CompleteCount)
		fmt.Printf("incomplete:    %d\n", r.IncompleteCount)

		fmt.Println("by kind:")
		for _, kind := range sortedKeys(r.ByKind) {
			fmt.Printf("  %-18s %d\n", kind, r.ByKind[kind])
		}
		if len(r.BySubject) > 0 {
			fmt.Println("by subject:")
			for _, subject := range sortedKeys(r.BySubject) {
				fmt.Printf("  %-18s %d\n", subject, r.BySubject[subject])
			}
		}
		return nil
	},
}

var clearOlderThan int

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cache entries (all, or only those older than --older-than days)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache()
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()

		if err := cache.Clear(clearOlderThan); err != nil {
			return err
		}
		log.Info().Int("older_than_days", clearOlderThan).Msg("cache cleared")
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Cross-check the metadata table against the payload files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache()
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()

		issues := cache.Verify()
		for _, issue := range issues {
			fmt.Printf("%s\t%s\t%s\t%s\n", issue.Problem, issue.Key, issue.Path, issue.Detail)
		}
		if len(issues) > 0 {
			return fmt.Errorf("%d issue(s) found", len(issues))
		}
		log.Info().Msg("cache is consistent")
		return nil
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Reconstruct the metadata table from the payload files on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache()
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()
		return cache.Rebuild()
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <codec>",
	Short: "Re-encode all payload files with a codec (snappy, gzip, zstd, brotli, none)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache()
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()
		return cache.Convert(args[0])
	},
}

func openCache() (*xanthos.Cache, error) {
	return xanthos.New(xanthos.Config{
		Dir:    cacheDir,
		Logger: zerologAdapter{},
	})
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// zerologAdapter bridges the cache's logging interface onto the global
// zerolog logger.
type zerologAdapter struct{}

func (zerologAdapter) Debug(msg string, fields ...interface{}) { emit(log.Debug(), msg, fields) }
func (zerologAdapter) Info(msg string, fields ...interface{})  { emit(log.Info(), msg, fields) }
func (zerologAdapter) Warn(msg string, fields ...interface{})  { emit(log.Warn(), msg, fields) }
func (zerologAdapter) Error(msg string, fields ...interface{}) { emit(log.Error(), msg, fields) }

func emit(ev *zerolog.Event, msg string, fields []interface{}) {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, fields[i+1])
	}
	ev.Msg(msg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cacheDir, "dir", "d", "./bar_cache", "Cache directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose debug output to stderr")
	clearCmd.Flags().IntVar(&clearOlderThan, "older-than", 0, "Only remove entries older than this many days (0 = all)")

	rootCmd.AddCommand(reportCmd, clearCmd, verifyCmd, rebuildCmd, convertCmd)
}
