package rcode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/rcode/atom"
)

const traceSeparator = "--------\n"

// TraceAt writes the rendering of code(i), resolving reference pointers to
// the OID of the referenced object. A pointer past the reference array is
// marked unassigned; the pass carries on.
func (o *Object) TraceAt(i int, ctx *atom.TraceContext, w io.Writer) error {
	code, refs := o.snapshot()
	if i < 0 || i >= len(code) {
		return fmt.Errorf("%w: code %d of %d", ErrOutOfRange, i, len(code))
	}
	return o.traceAtom(code[i], refs, ctx, w)
}

func (o *Object) traceAtom(a atom.Atom, refs []Handle, ctx *atom.TraceContext, w io.Writer) error {
	payload := ctx.StringData != 0 || ctx.TimestampData != 0
	if err := a.Trace(ctx, w, o.space.names); err != nil {
		return err
	}
	if payload || a.Descriptor() != atom.DescRPtr {
		return nil
	}

	idx := int(a.AsIndex())
	var ref *Object
	if idx < len(refs) {
		ref, _ = o.space.Get(refs[idx])
	}
	if ref == nil {
		_, err := io.WriteString(w, " (unassigned) ")
		return err
	}
	if o.space.detailOIDs {
		_, err := fmt.Fprintf(w, " -> %d(%d)", ref.OID(), ref.DetailOID())
		return err
	}
	_, err := fmt.Fprintf(w, " -> %d", ref.OID())
	return err
}

// TraceTo writes a dump of o: a separator line, one line per atom
// ("index<TAB>rendering") and the OID line. The dump is always written in
// full; an error wrapping atom.ErrMalformedSequence is returned afterwards
// when the code ends inside a header's members or a multi-atom payload.
func (o *Object) TraceTo(w io.Writer) error {
	code, refs := o.snapshot()
	bw := bufio.NewWriter(w)

	bw.WriteString(traceSeparator)
	var ctx atom.TraceContext
	for i, a := range code {
		fmt.Fprintf(bw, "%d\t", i)
		if err := o.traceAtom(a, refs, &ctx, bw); err != nil {
			return err
		}
		bw.WriteByte('\n')
	}
	fmt.Fprintf(bw, "OID: %d", o.OID())
	if o.space.detailOIDs {
		fmt.Fprintf(bw, "(%d)", o.DetailOID())
	}
	bw.WriteByte('\n')

	if err := bw.Flush(); err != nil {
		return err
	}
	if err := ctx.Finish(); err != nil {
		return fmt.Errorf("trace of OID %d: %w", o.OID(), err)
	}
	return nil
}

// TraceString returns the dump TraceTo would write.
func (o *Object) TraceString() (string, error) {
	var sb strings.Builder
	err := o.TraceTo(&sb)
	return sb.String(), err
}

// TraceAll writes the dumps of objs in order. Malformed objects are still
// dumped; the first such error is returned at the end.
func (s *Space) TraceAll(w io.Writer, objs ...*Object) error {
	var first error
	for _, o := range objs {
		if o.space != s {
			return ErrForeignObject
		}
		err := o.TraceTo(w)
		if err == nil {
			continue
		}
		if !errors.Is(err, atom.ErrMalformedSequence) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}
