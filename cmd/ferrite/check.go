package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ferrite/internal/config"
	"ferrite/internal/diagfmt"
	"ferrite/internal/driver"
	"ferrite/internal/modfile"
	"ferrite/internal/source"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] <module.fmod|directory>",
	Short: "Verify serialized module interfaces",
	Long: `Check loads serialized module interfaces (` + modfile.Ext + ` files, produced by a
separate-compilation run) and verifies their structural invariants: scope
linkage, dependency exactness, reference visibility and type shapes.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	checkCmd.Flags().Int("jobs", 0, "max parallel workers for directory processing (0=auto)")
	checkCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	checkCmd.Flags().String("manifest", "", "path to a ferrite.toml manifest")
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return err
	}
	manifest, err := cmd.Flags().GetString("manifest")
	if err != nil {
		return err
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}
	useColor, err := colorEnabled(cmd)
	if err != nil {
		return err
	}

	opts := config.Default()
	if manifest != "" {
		if opts, err = config.Load(manifest); err != nil {
			return err
		}
	}

	p := &driver.Pipeline{Opts: opts, MaxDiagnostics: maxDiagnostics}

	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	var results []driver.CheckResult
	if info.IsDir() {
		results, err = p.VerifyCacheDir(cmd.Context(), path, jobs)
		if err != nil {
			return err
		}
	} else {
		if !strings.HasSuffix(path, modfile.Ext) {
			return fmt.Errorf("%s: not a %s module cache", path, modfile.Ext)
		}
		results = []driver.CheckResult{p.VerifyCache(path)}
	}

	// Module caches carry no source text, so positions render as bytes.
	fset := source.NewFileSet()
	failed := 0
	for _, res := range results {
		if !res.OK {
			failed++
		}
		if showTimings {
			fmt.Fprintf(cmd.OutOrStdout(), "%s timings:\n", res.Path)
			for _, ph := range res.Timing.Phases {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-12s %7.2f ms\n", ph.Name, ph.DurationMS)
			}
		}
		if res.Bag.Len() == 0 {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", res.Path)
		switch format {
		case "json":
			if err := diagfmt.JSON(cmd.OutOrStdout(), res.Bag, fset,
				diagfmt.JSONOpts{IncludeNotes: withNotes}); err != nil {
				return err
			}
		default:
			diagfmt.Pretty(cmd.OutOrStdout(), res.Bag, fset,
				diagfmt.PrettyOpts{Color: useColor, ShowNotes: withNotes})
		}
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "checked %d module(s), %d failed\n", len(results), failed)
	}
	if failed > 0 {
		return fmt.Errorf("%d module(s) failed verification", failed)
	}
	return nil
}
