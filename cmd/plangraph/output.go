package main

import (
	"encoding/json"
	"os"

	"github.com/steveyegge/plangraph/internal/repl"
	"github.com/steveyegge/plangraph/internal/types"
)

// printJSON writes v indented to stdout.
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail(err)
	}
}

func writeFailure(f *types.ValidationFailure) {
	repl.WriteFailure(os.Stderr, f)
}
