package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/porticus-lab/go-slicer-pdf/internal/config"
	"github.com/porticus-lab/go-slicer-pdf/internal/journal"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent runs, or the outcomes of one run, from the journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.setupLogger(config.LoadLog(c.v))
			path := c.v.GetString("journal")
			if path == "" {
				return errors.New("no journal configured; set --journal or SLICERPDF_JOURNAL")
			}
			j, err := journal.Open(path)
			if err != nil {
				return err
			}
			defer j.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()

			if len(args) == 1 {
				outs, err := j.Outcomes(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "ATTEMPT\tENTITY\tSTATUS\tKIND\tDETAIL")
				for _, o := range outs {
					detail := o.Artifact
					if o.Diagnostic != "" {
						detail = o.Diagnostic
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", o.Attempt, o.Entity, o.Status, o.Kind, detail)
				}
				return nil
			}

			runs, err := j.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tATTEMPTS\tEXPORTED\tFAILED\tDIR")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					r.ID, r.Started.Local().Format(time.DateTime), r.Status,
					r.Attempts, r.Exported, r.Failed, r.OutputDir)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list (0 = all)")
	return cmd
}
