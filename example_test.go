package slicerpdf_test

import (
	"context"
	"fmt"
	"log"
	"time"

	slicerpdf "github.com/porticus-lab/go-slicer-pdf"
)

func Example() {
	ctx := context.Background()
	s, err := slicerpdf.NewSession(ctx, "https://reports.example.com/dashboard",
		slicerpdf.WithNoSandbox(),
		slicerpdf.WithLayout(slicerpdf.FlatLayout("out")),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	for _, name := range []string{"Hospital A", "Hospital B"} {
		out := s.ExportEntity(ctx, name)
		if !out.OK() {
			log.Printf("%s: %s failure: %s", name, out.Kind, out.Diagnostic)
			continue
		}
		fmt.Println("exported", out.ArtifactPath)
	}
}

func Example_downloadMode() {
	locators := slicerpdf.DefaultLocators()
	locators.ExportButton = "button[aria-label='Export to PDF']"

	waits := slicerpdf.DefaultWaits()
	waits.Export = 2 * time.Minute

	s, err := slicerpdf.NewSession(context.Background(), "https://reports.example.com/dashboard",
		slicerpdf.WithExportMode(slicerpdf.ExportDownload),
		slicerpdf.WithLocators(locators),
		slicerpdf.WithWaits(waits),
		slicerpdf.WithScreenshots(true),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	out := s.ExportEntity(context.Background(), "Clinic C")
	fmt.Println(out.Status, out.ArtifactPath)
}

func ExampleNormalize() {
	fmt.Println(slicerpdf.Normalize("  Ｈｏｓｐｉｔａｌ   A "))
	fmt.Println(slicerpdf.SameName("Hospital A", "hospital  a"))
	// Output:
	// hospital a
	// true
}

func ExampleMatchOption() {
	options := []string{"Hospital A", "Hospital AB", "Hospital B"}
	i, err := slicerpdf.MatchOption("hospital  a", options, false)
	fmt.Println(i, err)

	_, err = slicerpdf.MatchOption("Hospital Z", options, false)
	fmt.Println(err)
	// Output:
	// 0 <nil>
	// no exact match
}
