package atom

import "math"

// Atom is one 32-bit cell of code.
//
// Encoding scheme:
//   - Float: bit 31 clear; the IEEE 754 single bit pattern shifted right by
//     one. The least significant mantissa bit is lost.
//   - Tagged: bit 31 set; the top byte is the descriptor and the low 24
//     bits are laid out per descriptor (indices, opcodes, counts, ids).
type Atom uint32

// Descriptor is the top byte of a tagged atom.
type Descriptor uint8

// Descriptors
const (
	DescNil            Descriptor = 0x80
	DescBoolean        Descriptor = 0x81
	DescWildcard       Descriptor = 0x82
	DescTailWildcard   Descriptor = 0x83
	DescIPtr           Descriptor = 0x84 // internal pointer
	DescRPtr           Descriptor = 0x85 // reference pointer
	DescVLPtr          Descriptor = 0x86 // binding map value pointer
	DescIPGMPtr        Descriptor = 0x87 // index of data of a template arg held by an ipgm
	DescInObjPtr       Descriptor = 0x88 // index of data held by an input object
	DescValuePtr       Descriptor = 0x89 // index of data held by the overlay's value array
	DescProdPtr        Descriptor = 0x8A // index of data held by the overlay's production array
	DescOutObjPtr      Descriptor = 0x8B // index of data held by a newly produced object
	DescDInObjPtr      Descriptor = 0x8C // index of data held by an object referenced by an input object
	DescAssignPtr      Descriptor = 0x8D // hlp variable index and index of the expression producing its value
	DescCodeVLPtr      Descriptor = 0x8E // pointer to a value at an index in the same code array
	DescThis           Descriptor = 0x90
	DescView           Descriptor = 0x91
	DescMks            Descriptor = 0x92
	DescVws            Descriptor = 0x93
	DescNode           Descriptor = 0xA0
	DescDevice         Descriptor = 0xA1
	DescDeviceFunction Descriptor = 0xA2
	DescCPtr           Descriptor = 0xC0 // chain pointer
	DescSet            Descriptor = 0xC1
	DescSSet           Descriptor = 0xC2 // structured set
	DescObject         Descriptor = 0xC3
	DescMarker         Descriptor = 0xC4
	DescOperator       Descriptor = 0xC5
	DescString         Descriptor = 0xC6
	DescTimestamp      Descriptor = 0xC7
	DescGroup          Descriptor = 0xC8

	DescInstantiatedProgram          Descriptor = 0xC9
	DescInstantiatedCPPProgram       Descriptor = 0xCA
	DescInstantiatedInputLessProgram Descriptor = 0xCB
	DescInstantiatedAntiProgram      Descriptor = 0xCC
	DescCompositeState               Descriptor = 0xCD
	DescModel                        Descriptor = 0xCE
	DescNullProgram                  Descriptor = 0xCF
)

// Field masks
const (
	indexMask   uint32 = 0x00000FFF
	opcodeMask  uint32 = 0x00000FFF
	countMask   uint32 = 0x000000FF
	blocksMask  uint32 = 0x0000FF00
	subIdxMask  uint32 = 0x000FF000
	castMask    uint32 = 0x00FFF000
	highByte    uint32 = 0x00FF0000
	middleByte  uint32 = 0x0000FF00
	undefinedAt Atom   = 0xFFFFFFFF
)

func tagged(d Descriptor, payload uint32) Atom {
	return Atom(uint32(d)<<24 + payload)
}

func header(d Descriptor, opcode uint16, count uint8) Atom {
	return tagged(d, (uint32(opcode)&opcodeMask)<<8+uint32(count))
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// Undefined is the all-ones atom; it fills slots that were never written.
func Undefined() Atom { return undefinedAt }

// Float packs f, dropping its least significant mantissa bit.
func Float(f float32) Atom { return Atom(math.Float32bits(f) >> 1) }

// PlusInfinity returns the packed float +Inf.
func PlusInfinity() Atom { return 0x3FC00000 }

// MinusInfinity returns the packed float -Inf.
func MinusInfinity() Atom { return 0x7FC00000 }

// UndefinedFloat returns the float read as NaN.
func UndefinedFloat() Atom { return 0x0FFFFFFF }

// Nil returns the canonical nil atom.
func Nil() Atom { return tagged(DescNil, 0) }

// Boolean returns the boolean atom for v.
func Boolean(v bool) Atom {
	if v {
		return tagged(DescBoolean, 1)
	}
	return tagged(DescBoolean, 0)
}

// UndefinedBoolean returns the boolean that is neither true nor false.
func UndefinedBoolean() Atom { return 0x81FFFFFF }

// Wildcard returns the untyped wildcard ":".
func Wildcard() Atom { return WildcardOpcode(0) }

// WildcardOpcode returns a wildcard restricted to opcode.
func WildcardOpcode(opcode uint16) Atom {
	return tagged(DescWildcard, (uint32(opcode)&opcodeMask)<<8)
}

// TailWildcard returns the tail wildcard "::".
func TailWildcard() Atom { return tagged(DescTailWildcard, 0) }

// IPointer points at an index in the same code array.
func IPointer(index uint16) Atom { return tagged(DescIPtr, uint32(index)&indexMask) }

// VLPointer points at a value bound to a variable.
func VLPointer(index uint16) Atom { return tagged(DescVLPtr, uint32(index)&indexMask) }

// RPointer points at an entry of the object's reference array.
func RPointer(index uint16) Atom { return tagged(DescRPtr, uint32(index)&indexMask) }

// IPGMPointer points into the arguments of an instantiated program.
func IPGMPointer(index uint16) Atom { return tagged(DescIPGMPtr, uint32(index)&indexMask) }

// InObjPointer points at index in the input object at inputIndex.
func InObjPointer(inputIndex uint8, index uint16) Atom {
	return tagged(DescInObjPtr, uint32(inputIndex)<<12+uint32(index)&indexMask)
}

// DInObjPointer points at index in an input reached through relativeIndex.
func DInObjPointer(relativeIndex uint8, index uint16) Atom {
	return tagged(DescDInObjPtr, uint32(relativeIndex)<<12+uint32(index)&indexMask)
}

// OutObjPointer points at index in the production.
func OutObjPointer(index uint16) Atom { return tagged(DescOutObjPtr, uint32(index)&indexMask) }

// ValuePointer points at a value in the guard evaluation frame.
func ValuePointer(index uint16) Atom { return tagged(DescValuePtr, uint32(index)&indexMask) }

// ProductionPointer points at a production of the program.
func ProductionPointer(index uint16) Atom { return tagged(DescProdPtr, uint32(index)&indexMask) }

// AssignmentPointer packs a variable index into bits 16-23. It is tagged
// DescIPGMPtr, not DescAssignPtr: the executive reads assignments through
// the ipgm argument path.
func AssignmentPointer(variableIndex uint8, index uint16) Atom {
	return tagged(DescIPGMPtr, uint32(variableIndex)<<16+uint32(index)&indexMask)
}

// CodeVLPointer points at index with no cast (cast opcode 0xFFF).
func CodeVLPointer(index uint16) Atom { return CodeVLPointerCast(index, 0x0FFF) }

// CodeVLPointerCast points at index, cast to castOpcode.
func CodeVLPointerCast(index, castOpcode uint16) Atom {
	return tagged(DescCodeVLPtr, (uint32(castOpcode)&opcodeMask)<<12+uint32(index)&indexMask)
}

// This refers to the program being run.
func This() Atom { return tagged(DescThis, 0) }

// View refers to the view of the current object.
func View() Atom { return tagged(DescView, 0) }

// Mks refers to the markers of the current object.
func Mks() Atom { return tagged(DescMks, 0) }

// Vws refers to the views of the current object.
func Vws() Atom { return tagged(DescVws, 0) }

// SSet returns the header of a structured set with elementCount members.
func SSet(opcode uint16, elementCount uint8) Atom { return header(DescSSet, opcode, elementCount) }

// Set returns the header of a set with elementCount members.
func Set(elementCount uint8) Atom { return tagged(DescSet, uint32(elementCount)) }

// CPointer returns the header of a pointer chain of elementCount links.
func CPointer(elementCount uint8) Atom { return tagged(DescCPtr, uint32(elementCount)) }

// Object returns the header of an object with arity members.
func Object(opcode uint16, arity uint8) Atom { return header(DescObject, opcode, arity) }

// Marker returns the header of a marker with arity members.
func Marker(opcode uint16, arity uint8) Atom { return header(DescMarker, opcode, arity) }

// Operator returns the header of an operator call with arity arguments.
func Operator(opcode uint16, arity uint8) Atom { return header(DescOperator, opcode, arity) }

// Node returns the atom for node nodeID.
func Node(nodeID uint8) Atom { return tagged(DescNode, uint32(nodeID)<<8) }

// UndefinedNode returns the node atom with no node.
func UndefinedNode() Atom { return 0xA0FFFFFF }

// Device returns the atom for a device on a node.
func Device(nodeID, classID, devID uint8) Atom {
	return tagged(DescDevice, uint32(nodeID)<<16+uint32(classID)<<8+uint32(devID))
}

// UndefinedDevice returns the device atom with no device.
func UndefinedDevice() Atom { return 0xA1FFFFFF }

// DeviceFunction returns the atom for device function opcode.
func DeviceFunction(opcode uint16) Atom {
	return tagged(DescDeviceFunction, (uint32(opcode)&0xFFFF)<<8)
}

// UndefinedDeviceFunction returns the device function atom with no function.
func UndefinedDeviceFunction() Atom { return 0xA2FFFFFF }

// String returns the header of a string of characterCount characters. The
// header carries the number of payload blocks (four characters each) and
// the character count itself.
func String(characterCount uint8) Atom {
	blocks := uint32(characterCount) / 4
	if characterCount%4 != 0 {
		blocks++
	}
	return tagged(DescString, blocks<<8+uint32(characterCount))
}

// UndefinedString returns the string header with no string.
func UndefinedString() Atom { return 0xC6FFFFFF }

// Timestamp returns the header announcing a two-atom microsecond count.
func Timestamp() Atom { return tagged(DescTimestamp, 0) }

// UndefinedTimestamp returns the timestamp header with no time.
func UndefinedTimestamp() Atom { return 0xC7FFFFFF }

// InstantiatedProgram returns the header of a program instance.
func InstantiatedProgram(opcode uint16, arity uint8) Atom {
	return header(DescInstantiatedProgram, opcode, arity)
}

// Group returns the header of a group.
func Group(opcode uint16, arity uint8) Atom { return header(DescGroup, opcode, arity) }

// InstantiatedCPPProgram returns the header of a native program instance.
func InstantiatedCPPProgram(opcode uint16, arity uint8) Atom {
	return header(DescInstantiatedCPPProgram, opcode, arity)
}

// InstantiatedAntiProgram returns the header of an anti-program instance.
func InstantiatedAntiProgram(opcode uint16, arity uint8) Atom {
	return header(DescInstantiatedAntiProgram, opcode, arity)
}

// InstantiatedInputLessProgram returns the header of an input-less program instance.
func InstantiatedInputLessProgram(opcode uint16, arity uint8) Atom {
	return header(DescInstantiatedInputLessProgram, opcode, arity)
}

// CompositeState returns the header of a composite state.
func CompositeState(opcode uint16, arity uint8) Atom { return header(DescCompositeState, opcode, arity) }

// Model returns the header of a model.
func Model(opcode uint16, arity uint8) Atom { return header(DescModel, opcode, arity) }

// NullProgram returns the null program, which takes all inputs when takePastInputs is set.
func NullProgram(takePastInputs bool) Atom {
	if takePastInputs {
		return tagged(DescNullProgram, 1)
	}
	return tagged(DescNullProgram, 0)
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// IsUndefined reports whether a is the all-ones undefined atom.
func (a Atom) IsUndefined() bool { return a == undefinedAt }

// Descriptor returns the top byte of a.
func (a Atom) Descriptor() Descriptor { return Descriptor(a >> 24) }

// IsStructural reports whether a heads a run of member atoms. Every 0xC and
// 0xD prefixed descriptor is structural.
func (a Atom) IsStructural() bool {
	return uint32(a)&0xC0000000 == 0xC0000000 || uint32(a)&0xD0000000 == 0xD0000000
}

// IsFloat reports whether a holds a packed float.
func (a Atom) IsFloat() bool { return a>>31 == 0 }

// ReadsAsNil reports whether a is nil or one of the undefined values that
// read as nil. The set is closed; it does not follow from the descriptor.
func (a Atom) ReadsAsNil() bool {
	switch a {
	case 0x80000000, // nil
		0x3FFFFFFF, // NaN as nil
		0x81FFFFFF, // undefined boolean
		0xC1000000, // empty set
		0xA0FFFFFF, // undefined node
		0xA1FFFFFF, // undefined device
		0xA2FFFFFF, // undefined device function
		0xC6FFFFFF: // undefined string
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Accessors
//
// Each accessor assumes the caller has checked the descriptor.
// ---------------------------------------------------------------------------

// AsFloat unpacks a float; the low mantissa bit is always 0.
func (a Atom) AsFloat() float32 { return math.Float32frombits(uint32(a) << 1) }

// AsBoolean applies to DescBoolean.
func (a Atom) AsBoolean() bool { return uint32(a)&countMask != 0 }

// IsBooleanTrue reports whether a is the boolean true.
func (a Atom) IsBooleanTrue() bool { return a.Descriptor() == DescBoolean && a.AsBoolean() }

// IsBooleanFalse reports whether a is the boolean false.
func (a Atom) IsBooleanFalse() bool { return a.Descriptor() == DescBoolean && !a.AsBoolean() }

// AsIndex applies to every pointer descriptor.
func (a Atom) AsIndex() uint16 { return uint16(uint32(a) & indexMask) }

// AsInputIndex applies to DescInObjPtr.
func (a Atom) AsInputIndex() uint8 { return uint8((uint32(a) & subIdxMask) >> 12) }

// AsRelativeIndex applies to DescDInObjPtr.
func (a Atom) AsRelativeIndex() uint8 { return uint8((uint32(a) & subIdxMask) >> 12) }

// AsOpcode returns the 12-bit opcode of a header or wildcard.
func (a Atom) AsOpcode() uint16 { return uint16((uint32(a) >> 8) & opcodeMask) }

// AsCastOpcode applies to DescCodeVLPtr.
func (a Atom) AsCastOpcode() uint16 { return uint16((uint32(a) & castMask) >> 12) }

// NodeID applies to nodes and devices.
func (a Atom) NodeID() uint8 { return uint8((uint32(a) & highByte) >> 16) }

// ClassID applies to devices.
func (a Atom) ClassID() uint8 { return uint8((uint32(a) & middleByte) >> 8) }

// DeviceID applies to devices.
func (a Atom) DeviceID() uint8 { return uint8(uint32(a) & countMask) }

// AsAssignmentIndex returns the variable index of an assignment pointer.
func (a Atom) AsAssignmentIndex() uint8 { return uint8((uint32(a) & highByte) >> 16) }

// AtomCount returns how many atoms follow a as its members: the arity of
// objects, markers, operators and programs, the element count of sets, the
// length of pointer chains, the block count of strings and 2 for
// timestamps. It is 0 for everything else.
func (a Atom) AtomCount() uint8 {
	switch a.Descriptor() {
	case DescSet, DescObject, DescMarker, DescCPtr, DescOperator,
		DescInstantiatedProgram, DescInstantiatedCPPProgram,
		DescInstantiatedInputLessProgram, DescInstantiatedAntiProgram,
		DescCompositeState, DescModel, DescGroup, DescSSet:
		return uint8(uint32(a) & countMask)
	case DescString:
		return uint8((uint32(a) & blocksMask) >> 8)
	case DescTimestamp:
		return 2
	}
	return 0
}

// CharCount applies to string headers.
func (a Atom) CharCount() uint8 { return uint8(uint32(a) & countMask) }

// TakesPastInputs applies to DescNullProgram.
func (a Atom) TakesPastInputs() bool { return uint32(a)&0x00000001 != 0 }
