// Command accession-report runs the accessions report against an
// ArchivesSpace database, prints it, or serves it over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
)

var exitFunc = os.Exit

func main() {
	if err := newRootCmd(os.Stdout).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		exitFunc(1)
	}
}
