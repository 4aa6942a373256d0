package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/porticus-lab/go-slicer-pdf/internal/config"
	"github.com/porticus-lab/go-slicer-pdf/internal/report"
)

func newVerifyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <run-dir>",
		Short: "Check the PDFs of a run directory and write exported.csv",
		Long: `verify opens every PDF in a run directory, checks that it parses and has at
least one page, writes the inventory to exported.csv and compares it with the
run's run.yaml manifest. It fails when any PDF is invalid or the directory
and the manifest disagree.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := c.setupLogger(config.LoadLog(c.v))
			dir := args[0]

			arts, err := report.Scan(dir)
			if err != nil {
				return err
			}
			if err := report.WriteInventory(dir, arts); err != nil {
				return fmt.Errorf("writing inventory: %w", err)
			}

			var problems []string
			m, err := report.ReadManifest(dir)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				log.Warn("no manifest, checking PDFs only", "dir", dir)
				for _, a := range arts {
					if a.Err != nil {
						problems = append(problems, fmt.Sprintf("%s: %v", a.File, a.Err))
					}
				}
			case err != nil:
				return err
			default:
				problems = report.CrossCheck(m, arts)
			}

			out := cmd.OutOrStdout()
			pages := 0
			for _, a := range arts {
				pages += a.Pages
			}
			fmt.Fprintf(out, "%d PDFs, %d pages\n", len(arts), pages)
			for _, p := range problems {
				fmt.Fprintln(out, "  "+p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d problems in %s", len(problems), dir)
			}
			return nil
		},
	}
}

