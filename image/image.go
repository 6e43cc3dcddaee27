// Package image moves code objects in and out of a space. An image is a
// flat list of system objects whose references are indices into the same
// list; it is serialized as canonical CBOR and can be kept in a SQLite
// catalog.
package image

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/rcode/atom"
	"github.com/chazu/rcode/rcode"
)

var log = commonlog.GetLogger("rcode.image")

// ErrBadReference is returned when a system object references an index
// outside its image.
var ErrBadReference = errors.New("image: reference out of range")

// SysObject is the interchange form of a code object.
type SysObject struct {
	OID        uint32   `cbor:"1,keyasint"`
	DetailOID  uint64   `cbor:"2,keyasint,omitempty"`
	Code       []uint32 `cbor:"3,keyasint"`
	References []uint16 `cbor:"4,keyasint,omitempty"`
}

// Image is a named, self-contained set of system objects.
type Image struct {
	Name    string      `cbor:"1,keyasint"`
	Objects []SysObject `cbor:"2,keyasint"`
}

// Materialize creates one object per system object in space and wires up
// their references. The returned slice is in image order. Objects are
// created rooted; release the ones that should live only through
// references.
func Materialize(space *rcode.Space, img *Image) ([]*rcode.Object, error) {
	n := len(img.Objects)
	for i, sys := range img.Objects {
		for j, r := range sys.References {
			if int(r) >= n {
				return nil, fmt.Errorf("%w: object %d reference %d is %d of %d",
					ErrBadReference, i, j, r, n)
			}
		}
	}

	objs := make([]*rcode.Object, n)
	for i, sys := range img.Objects {
		o := space.New(rcode.OriginImage)
		o.SetOID(sys.OID)
		if sys.DetailOID != 0 {
			o.SetDetailOID(sys.DetailOID)
		}
		code := make([]atom.Atom, len(sys.Code))
		for k, c := range sys.Code {
			code[k] = atom.Atom(c)
		}
		o.LoadCode(code)
		objs[i] = o
	}

	for i, sys := range img.Objects {
		refs := make([]*rcode.Object, len(sys.References))
		for j, r := range sys.References {
			refs[j] = objs[r]
		}
		if err := objs[i].SetReferences(refs); err != nil {
			return nil, err
		}
	}

	log.Debugf("materialized image %q: %d objects", img.Name, n)
	return objs, nil
}

// Capture extracts the objects reachable from roots into an image. Objects
// are listed breadth-first from the roots, each once.
func Capture(name string, roots ...*rcode.Object) (*Image, error) {
	if len(roots) == 0 {
		return &Image{Name: name}, nil
	}
	space := roots[0].Space()

	index := make(map[rcode.Handle]int)
	var queue []*rcode.Object
	visit := func(o *rcode.Object) (int, error) {
		if o.Space() != space {
			return 0, rcode.ErrForeignObject
		}
		if i, ok := index[o.Handle()]; ok {
			return i, nil
		}
		if len(queue) > 0xFFFF {
			return 0, fmt.Errorf("image: more than %d objects", 0xFFFF+1)
		}
		i := len(queue)
		index[o.Handle()] = i
		queue = append(queue, o)
		return i, nil
	}

	for _, r := range roots {
		if _, err := visit(r); err != nil {
			return nil, err
		}
	}

	img := &Image{Name: name}
	for head := 0; head < len(queue); head++ {
		o := queue[head]
		atoms := o.Atoms()
		sys := SysObject{
			OID:       o.OID(),
			DetailOID: o.DetailOID(),
			Code:      make([]uint32, len(atoms)),
		}
		for k, a := range atoms {
			sys.Code[k] = uint32(a)
		}
		for j := 0; j < o.ReferencesSize(); j++ {
			ref, err := o.Reference(j)
			if err != nil {
				return nil, fmt.Errorf("image: OID %d reference %d: %w", o.OID(), j, err)
			}
			i, err := visit(ref)
			if err != nil {
				return nil, err
			}
			sys.References = append(sys.References, uint16(i))
		}
		img.Objects = append(img.Objects, sys)
	}
	return img, nil
}
