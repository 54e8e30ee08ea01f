// Package diagfmt renders collected diagnostics for the CLI, as plain
// human-readable lines or as JSON for tooling.
package diagfmt

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color     bool
	ShowNotes bool
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	// IncludePositions adds resolved line/col to every location.
	IncludePositions bool
	IncludeNotes     bool
}
