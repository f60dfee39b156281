// Command audit-export opens the configured persistent store and writes the
// audit trail as CSV, either to stdout or to the configured blob store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"abattoircore/internal/blob"
	"abattoircore/internal/core"
	"abattoircore/internal/export"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("audit-export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		toBlob   = fs.Bool("blob", false, "upload to the configured blob store instead of stdout")
		action   = fs.String("action", "", "only export entries with this action")
		resource = fs.String("resource", "", "only export entries touching this resource")
		sinceStr = fs.String("since", "", "only export entries at or after this RFC3339 timestamp")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	filter := core.AuditFilter{Action: *action, Resource: *resource}
	if *sinceStr != "" {
		since, err := time.Parse(time.RFC3339, *sinceStr)
		if err != nil {
			fmt.Fprintf(stderr, "invalid -since value: %v\n", err)
			return 2
		}
		filter.Since = since
	}

	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine())
	if err != nil {
		fmt.Fprintf(stderr, "open store: %v\n", err)
		return 1
	}
	svc := core.NewService(store)

	if !*toBlob {
		if err := svc.ExportAuditCSV(stdout, filter); err != nil {
			fmt.Fprintf(stderr, "export: %v\n", err)
			return 1
		}
		return 0
	}

	ctx := context.Background()
	blobStore, err := blob.Open(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "open blob store: %v\n", err)
		return 1
	}
	info, err := export.ArchiveAuditCSV(ctx, blobStore, svc, filter, time.Now())
	if err != nil {
		fmt.Fprintf(stderr, "archive: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", info.Key, info.Size)
	return 0
}
