// slicerpdf exports one PDF per entity from a dashboard that filters its
// report with a dropdown slicer.
//
// Usage:
//
//	slicerpdf run --url <dashboard> --input entities.csv [flags]
//	slicerpdf verify <run-dir>
//	slicerpdf history [--journal path] [run-id]
//
// run exits 0 when every entity was exported, 2 when some entities are
// still failing after the last attempt (they are left in the failure list
// for the next run), and 1 on any other error.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/porticus-lab/go-slicer-pdf/internal/retry"
)

const (
	exitOK      = 0
	exitError   = 1
	exitPartial = 2
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	root, c := newRootCmd()
	defer c.close()
	root.SetArgs(args)
	err := root.Execute()
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, retry.ErrPartial):
		fmt.Fprintf(os.Stderr, "slicerpdf: %v\n", err)
		return exitPartial
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}
}
