package atom

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/rcode/utime"
)

// Namer resolves opcodes to display names.
type Namer interface {
	Name(opcode uint16) string
}

const unknownName = "unknown"

func opcodeName(names Namer, opcode uint16) string {
	if names == nil {
		return unknownName
	}
	return names.Name(opcode)
}

// indent is written once per pending member atom.
const indent = "   "

// TraceContext carries decode state across the atoms of one trace pass.
// Create a zero TraceContext before the first atom and pass the same value
// to every Atom.Trace call of the pass.
type TraceContext struct {
	MembersToGo   uint8 // member atoms left under the last header
	TimestampData uint8 // timestamp halves still to read
	StringData    uint8 // string blocks still to read
	CharCount     uint8 // characters left in the string being read
	TimestampHigh int64
}

// Pending reports whether the context still expects atoms.
func (ctx *TraceContext) Pending() bool {
	return ctx.MembersToGo != 0 || ctx.TimestampData != 0 || ctx.StringData != 0
}

// Finish checks that the stream did not end inside a header's members or a
// multi-atom payload.
func (ctx *TraceContext) Finish() error {
	switch {
	case ctx.TimestampData != 0:
		return fmt.Errorf("%w: %d timestamp atoms missing", ErrMalformedSequence, ctx.TimestampData)
	case ctx.StringData != 0:
		return fmt.Errorf("%w: %d string blocks missing", ErrMalformedSequence, ctx.StringData)
	case ctx.MembersToGo != 0:
		return fmt.Errorf("%w: %d member atoms missing", ErrMalformedSequence, ctx.MembersToGo)
	}
	return nil
}

func (ctx *TraceContext) writeIndents(sb *strings.Builder) {
	if ctx.MembersToGo != 0 {
		sb.WriteString(indent)
		ctx.MembersToGo--
	}
}

// appendChars consumes one string block, appending at most the characters
// the header still announces.
func (ctx *TraceContext) appendChars(buf []byte, a Atom) []byte {
	ctx.StringData--
	var content [4]byte
	binary.LittleEndian.PutUint32(content[:], uint32(a))
	for i := 0; i < len(content) && ctx.CharCount > 0; i++ {
		buf = append(buf, content[i])
		ctx.CharCount--
	}
	return buf
}

// Trace writes the rendering of a to w, updating ctx. Reference pointers
// are rendered by index only; resolving them needs the owning object.
func (a Atom) Trace(ctx *TraceContext, w io.Writer, names Namer) error {
	_, err := io.WriteString(w, a.render(ctx, names))
	return err
}

// String renders a on its own, outside any trace pass.
func (a Atom) String() string {
	var ctx TraceContext
	return a.render(&ctx, nil)
}

func (a Atom) render(ctx *TraceContext, names Namer) string {
	var sb strings.Builder
	ctx.writeIndents(&sb)

	if ctx.TimestampData != 0 {
		// Payload halves must not be read as descriptors.
		ctx.TimestampData--
		sb.WriteString(strconv.FormatUint(uint64(a), 10))
		if ctx.TimestampData == 1 {
			ctx.TimestampHigh = int64(a)
		} else {
			us := ctx.TimestampHigh<<32 | int64(uint32(a))
			sb.WriteByte(' ')
			sb.WriteString(utime.RelativeTime(utime.FromDuration(utime.Microseconds(us))))
		}
		return sb.String()
	}

	if ctx.StringData != 0 {
		sb.Write(ctx.appendChars(nil, a))
		return sb.String()
	}

	structural := func(kind string) {
		op := a.AsOpcode()
		fmt.Fprintf(&sb, "%s: %d (%s) %d", kind, op, opcodeName(names, op), a.AtomCount())
		ctx.MembersToGo = a.AtomCount()
	}

	switch a.Descriptor() {
	case DescNil:
		sb.WriteString("nil")
	case DescBoolean:
		sb.WriteString("bl: ")
		sb.WriteString(strconv.FormatBool(a.AsBoolean()))
	case DescWildcard:
		sb.WriteString(":")
	case DescTailWildcard:
		sb.WriteString("::")
	case DescIPtr:
		fmt.Fprintf(&sb, "iptr: %d", a.AsIndex())
	case DescVLPtr:
		fmt.Fprintf(&sb, "vlptr: %d", a.AsIndex())
	case DescRPtr:
		fmt.Fprintf(&sb, "rptr: %d", a.AsIndex())
	case DescIPGMPtr:
		fmt.Fprintf(&sb, "ipgm_ptr: %d", a.AsIndex())
	case DescInObjPtr:
		fmt.Fprintf(&sb, "in_obj_ptr: %d %d", a.AsInputIndex(), a.AsIndex())
	case DescDInObjPtr:
		fmt.Fprintf(&sb, "d_in_obj_ptr: %d %d", a.AsRelativeIndex(), a.AsIndex())
	case DescOutObjPtr:
		fmt.Fprintf(&sb, "out_obj_ptr: %d", a.AsIndex())
	case DescValuePtr:
		fmt.Fprintf(&sb, "value_ptr: %d", a.AsIndex())
	case DescProdPtr:
		fmt.Fprintf(&sb, "prod_ptr: %d", a.AsIndex())
	case DescAssignPtr:
		fmt.Fprintf(&sb, "assign_ptr: %d %d", a.AsAssignmentIndex(), a.AsIndex())
	case DescCodeVLPtr:
		fmt.Fprintf(&sb, "code_vlptr: %d", a.AsIndex())
	case DescThis:
		sb.WriteString("this")
	case DescView:
		sb.WriteString("view")
	case DescMks:
		sb.WriteString("mks")
	case DescVws:
		sb.WriteString("vws")
	case DescNode:
		fmt.Fprintf(&sb, "nid: %d", a.NodeID())
	case DescDevice:
		fmt.Fprintf(&sb, "did: %d %d %d", a.NodeID(), a.ClassID(), a.DeviceID())
	case DescDeviceFunction:
		op := a.AsOpcode()
		fmt.Fprintf(&sb, "fid: %d (%s)", op, opcodeName(names, op))
	case DescCPtr:
		fmt.Fprintf(&sb, "cptr: %d", a.AtomCount())
		ctx.MembersToGo = a.AtomCount()
	case DescSet:
		fmt.Fprintf(&sb, "set: %d", a.AtomCount())
		ctx.MembersToGo = a.AtomCount()
	case DescObject:
		structural("obj")
	case DescSSet:
		structural("s_set")
	case DescMarker:
		structural("mk")
	case DescOperator:
		structural("op")
	case DescString:
		fmt.Fprintf(&sb, "st: %d", a.AtomCount())
		ctx.MembersToGo = a.AtomCount()
		ctx.StringData = ctx.MembersToGo
		ctx.CharCount = a.CharCount()
	case DescTimestamp:
		sb.WriteString("us")
		ctx.MembersToGo = 2
		ctx.TimestampData = ctx.MembersToGo
	case DescGroup:
		structural("grp")
	case DescInstantiatedProgram, DescInstantiatedCPPProgram,
		DescInstantiatedAntiProgram, DescInstantiatedInputLessProgram:
		structural("ipgm")
	case DescCompositeState:
		structural("cst")
	case DescModel:
		structural("mdl")
	case DescNullProgram:
		if a.TakesPastInputs() {
			sb.WriteString("null pgm all inputs")
		} else {
			sb.WriteString("null pgm new inputs")
		}
	default:
		if a.IsFloat() {
			sb.WriteString("nb: ")
			sb.WriteString(formatScientific(a.AsFloat()))
		} else {
			sb.WriteString("undef")
		}
	}
	return sb.String()
}

// formatScientific renders f with six fraction digits and a bare exponent,
// e.g. 1.500000e0 and 2.500000e-3.
func formatScientific(f float32) string {
	switch {
	case math.IsNaN(float64(f)):
		return "NaN"
	case math.IsInf(float64(f), 1):
		return "inf"
	case math.IsInf(float64(f), -1):
		return "-inf"
	}
	s := strconv.FormatFloat(float64(f), 'e', 6, 32)
	mant, exp, _ := strings.Cut(s, "e")
	e, err := strconv.Atoi(exp)
	if err != nil {
		return s
	}
	return mant + "e" + strconv.Itoa(e)
}
