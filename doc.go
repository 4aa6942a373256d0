// Package slicerpdf exports one PDF per entity from an interactive web
// dashboard by driving headless Chrome (Chrome DevTools Protocol).
//
// A dashboard filters its report with a dropdown "slicer". For each entity
// name a [Session] opens the slicer, searches for the name, picks the option
// whose text equals the name after [Normalize], waits until the report has
// re-rendered for that selection, and exports the view:
//
//	s, err := slicerpdf.NewSession(ctx, dashboardURL,
//	    slicerpdf.WithLayout(slicerpdf.FlatLayout("out")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	out := s.ExportEntity(ctx, "Hospital A")
//	if !out.OK() {
//	    log.Printf("%s: %s", out.Kind, out.Diagnostic)
//	}
//
// ExportEntity never returns an error. Failures come back as an [Outcome]
// tagged with a [FailureKind], so a batch can carry on and retry them later.
//
// # Matching
//
// Option texts and entity names are compared after [Normalize], which folds
// Unicode compatibility forms and case, drops invisible format characters
// and collapses whitespace. When several options match, the first in display
// order is chosen.
//
// # Waiting
//
// Every step has its own budget in [Waits]. Steps poll for a condition with
// [Poll] or for a settled state with [PollStable] rather than sleeping for a
// fixed time.
//
// # Export
//
// [ExportPrint] renders the page through Chrome's print-to-PDF using a
// [PageConfig]. [ExportDownload] clicks the dashboard's own export control
// and collects the downloaded file. Either way the bytes must parse as a PDF
// with at least one page before they are written, and an existing file is
// never overwritten.
//
// Chrome or Chromium must be available in PATH, or use [WithAutoDownload].
package slicerpdf
