package bcf

import (
	"fmt"

	"github.com/carbocation/pfx"
)

// Reserved field names consulted by the allele operations.
const (
	FieldGT = "GT"
	FieldAC = "AC"
	FieldAN = "AN"
)

// FieldDecl is one INFO or FORMAT declaration of a dictionary entry.
type FieldDecl struct {
	Number      Number
	Count       int // only meaningful for NumberFixed
	Type        Width
	Description string
}

type dictEntry struct {
	name  string
	decls [2]*FieldDecl // indexed by Kind
}

// Header is the dictionary shared by every record of a stream. Field IDs
// index the dictionary; INFO and FORMAT declarations of the same name share
// one ID.
type Header struct {
	Contigs []string
	Samples []string

	dict   []dictEntry
	byName map[string]int
}

func NewHeader() *Header {
	return &Header{byName: make(map[string]int)}
}

// Declare adds a declaration for name and returns the field ID. Declaring
// the same name and kind twice is an error.
func (h *Header) Declare(kind Kind, name string, decl FieldDecl) (int, error) {
	if kind != KindInfo && kind != KindFormat {
		return -1, pfx.Err(fmt.Errorf("unknown declaration kind %d for %s", kind, name))
	}
	if h.byName == nil {
		h.byName = make(map[string]int)
	}

	id, exists := h.byName[name]
	if !exists {
		id = len(h.dict)
		h.dict = append(h.dict, dictEntry{name: name})
		h.byName[name] = id
	}
	if h.dict[id].decls[kind] != nil {
		return -1, pfx.Err(fmt.Errorf("%s/%s is declared twice", kind, name))
	}

	d := decl
	h.dict[id].decls[kind] = &d
	return id, nil
}

// MustDeclare is Declare for headers built in code, where a duplicate is a
// programming error.
func (h *Header) MustDeclare(kind Kind, name string, decl FieldDecl) int {
	id, err := h.Declare(kind, name, decl)
	if err != nil {
		panic(err)
	}
	return id
}

// ID resolves a field name.
func (h *Header) ID(name string) (int, bool) {
	id, ok := h.byName[name]
	return id, ok
}

// Name returns the field name for id, or "" if id is unknown.
func (h *Header) Name(id int) string {
	if id < 0 || id >= len(h.dict) {
		return ""
	}
	return h.dict[id].name
}

// Decl returns the declaration of id for the given kind, or nil.
func (h *Header) Decl(kind Kind, id int) *FieldDecl {
	if id < 0 || id >= len(h.dict) || kind > KindFormat {
		return nil
	}
	return h.dict[id].decls[kind]
}

// NFields is the size of the dictionary.
func (h *Header) NFields() int {
	return len(h.dict)
}

// Contig returns the name of contig rid, or "NA" if it is not declared.
func (h *Header) Contig(rid int32) string {
	if rid < 0 || int(rid) >= len(h.Contigs) {
		return "NA"
	}
	return h.Contigs[rid]
}
