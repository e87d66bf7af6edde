// Command palank-rag is a hybrid retrieval knowledge base: ingest web
// pages and local files, then query them with fused keyword and vector
// search.
package main

import (
	"fmt"
	"os"

	"github.com/PALAN-K/palank-rag/cmd/palank-rag/cmd"
	ragerrors "github.com/PALAN-K/palank-rag/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ragerrors.FormatForCLI(err))
		os.Exit(1)
	}
}
