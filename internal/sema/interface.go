package sema

import (
	"ferrite/internal/ast"
	"ferrite/internal/diag"
	"ferrite/internal/ir"
)

// buildInterface resolves an interface block. Interface bodies become
// Function symbols with deftype Interface; generic, operator and
// assignment groupings go into the unit's deferred maps and are
// materialized when the unit closes, after every referenced procedure
// has been seen.
func (b *Builder) buildInterface(d *ast.InterfaceBlock) error {
	for _, body := range d.Bodies {
		if err := b.buildProcedure(body, ir.DeftypeInterface); err != nil {
			return err
		}
	}
	switch d.Kind {
	case ast.InterfaceBare:
		if len(d.ModuleProcs) > 0 {
			return b.abort(diag.SemaInterfaceProcMissing, d.Loc,
				"module procedure requires a generic interface name")
		}
		return nil
	case ast.InterfaceNamed:
		name := fold(d.Name)
		b.unit.generics[name] = append(b.unit.generics[name], d.ModuleProcs...)
		for _, body := range d.Bodies {
			b.unit.generics[name] = append(b.unit.generics[name], fold(body.Name))
		}
		if _, ok := b.unit.genericLocs[name]; !ok {
			b.unit.genericLocs[name] = d.Loc
		}
		return nil
	case ast.InterfaceOperator:
		op := fold(d.Name)
		b.unit.operators[op] = append(b.unit.operators[op], d.ModuleProcs...)
		for _, body := range d.Bodies {
			b.unit.operators[op] = append(b.unit.operators[op], fold(body.Name))
		}
		return nil
	case ast.InterfaceAssignment:
		b.unit.assignments = append(b.unit.assignments, d.ModuleProcs...)
		for _, body := range d.Bodies {
			b.unit.assignments = append(b.unit.assignments, fold(body.Name))
		}
		return nil
	case ast.InterfaceWrite, ast.InterfaceRead:
		// Defined I/O hooks reuse the operator machinery under the
		// format-kind name (formatted/unformatted).
		key := ioInterfaceKey(d)
		b.unit.operators[key] = append(b.unit.operators[key], d.ModuleProcs...)
		for _, body := range d.Bodies {
			b.unit.operators[key] = append(b.unit.operators[key], fold(body.Name))
		}
		return nil
	default:
		return b.abort(diag.SemaInterfaceProcMissing, d.Loc, "unsupported interface form")
	}
}

func ioInterfaceKey(d *ast.InterfaceBlock) string {
	prefix := "write("
	if d.Kind == ast.InterfaceRead {
		prefix = "read("
	}
	return prefix + fold(d.Name) + ")"
}
