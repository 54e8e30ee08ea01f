package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"ferrite/internal/diag"
	"ferrite/internal/source"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	noteColor    = color.New(color.Faint)
)

// Pretty writes bag's diagnostics in human-readable form, one per line:
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>
//
// followed by indented notes when ShowNotes is set. Callers sort the bag
// first; Pretty preserves its order.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	for _, d := range bag.Items() {
		fmt.Fprintf(w, "%s: %s %s: %s\n",
			location(fs, d.Primary), severity(d.Severity, opts.Color), d.Code, d.Message)
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			msg := n.Msg
			if opts.Color {
				msg = noteColor.Sprint(msg)
			}
			fmt.Fprintf(w, "  %s: note: %s\n", location(fs, n.Span), msg)
		}
	}
}

func location(fs *source.FileSet, sp source.Span) string {
	f := fs.Get(sp.File)
	if f == nil {
		return "<input>"
	}
	start, _ := fs.Resolve(sp)
	return fmt.Sprintf("%s:%d:%d", f.Path, start.Line, start.Col)
}

func severity(sev diag.Severity, colorize bool) string {
	s := sev.String()
	if !colorize {
		return s
	}
	switch sev {
	case diag.SevError:
		return errorColor.Sprint(s)
	case diag.SevWarning:
		return warningColor.Sprint(s)
	default:
		return infoColor.Sprint(s)
	}
}
