// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package header implements the key/value metadata block which follows the
// preamble of every bottle.
//
// A header is a sequence of fields. Every field starts with a 16 bit
// big-endian descriptor:
//
//	TTIIIILL LLLLLLLL
//
// T is the field Type, I is the field id (0-15) and L is the number of data
// bytes which follow (0-1023). Ids are scoped to their Type, so a header may
// have both a string 0 and an int 0.
package header

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"go.chromium.org/luci/common/errors"

	"github.com/riannucci/fourbottle/btl/btldata/zint"
)

// Type is the kind of data a field holds.
type Type byte

// These are the field types defined by the format. Type 1 is reserved.
const (
	TypeString Type = 0
	TypeInt    Type = 2
	TypeBool   Type = 3
)

const (
	// MaxID is the largest field id.
	MaxID = 15

	// MaxFieldSize is the largest number of data bytes in a single field.
	MaxFieldSize = 1023

	descriptorSize = 2
)

// ErrMalformed is returned when decoding a header which can't be parsed.
var ErrMalformed = errors.New("malformed header")

// Valid returns nil iff t is a known field type.
func (t Type) Valid() error {
	switch t {
	case TypeString, TypeInt, TypeBool:
		return nil
	}
	return errors.Reason("unknown field type %d", byte(t)).Err()
}

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	}
	return fmt.Sprintf("Type(%d)", byte(t))
}

// Field is a single decoded header field.
type Field struct {
	Type Type
	ID   int
	Data []byte
}

func (f Field) descriptor() uint16 {
	return uint16(f.Type)<<14 | uint16(f.ID)<<10 | uint16(len(f.Data))
}

// Header is an ordered list of fields.
//
// The zero value is an empty header, ready to use.
type Header struct {
	fields []Field
}

// Fields returns the fields of h in the order they were added or decoded.
// The returned slice must not be modified.
func (h *Header) Fields() []Field {
	if h == nil {
		return nil
	}
	return h.fields
}

func (h *Header) add(t Type, id int, data []byte) error {
	if id < 0 || id > MaxID {
		return errors.Reason("%s field id %d out of range [0, %d]", t, id, MaxID).Err()
	}
	if len(data) > MaxFieldSize {
		return errors.Reason("%s field %d is too large: %d > %d", t, id, len(data), MaxFieldSize).Err()
	}
	h.fields = append(h.fields, Field{t, id, data})
	return nil
}

// AddString adds a string field.
func (h *Header) AddString(id int, s string) error {
	return h.add(TypeString, id, []byte(s))
}

// AddStrings adds a string field holding a list of strings. The strings must
// not contain NUL bytes.
func (h *Header) AddStrings(id int, ss []string) error {
	buf := bytes.Buffer{}
	for i, s := range ss {
		if i > 0 {
			buf.WriteByte(0)
		}
		buf.WriteString(s)
	}
	return h.add(TypeString, id, buf.Bytes())
}

// AddInt adds an int field.
func (h *Header) AddInt(id int, n uint64) error {
	return h.add(TypeInt, id, zint.EncodePackedInt(n))
}

// AddBool adds a bool field. Bool fields are true when present.
func (h *Header) AddBool(id int) error {
	return h.add(TypeBool, id, nil)
}

func (h *Header) find(t Type, id int) (Field, bool) {
	for _, f := range h.Fields() {
		if f.Type == t && f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// String returns the first string field with the given id.
func (h *Header) String(id int) (string, bool) {
	f, ok := h.find(TypeString, id)
	return string(f.Data), ok
}

// Strings returns the first string field with the given id, split on NUL.
func (h *Header) Strings(id int) ([]string, bool) {
	f, ok := h.find(TypeString, id)
	if !ok {
		return nil, false
	}
	parts := bytes.Split(f.Data, []byte{0})
	ret := make([]string, len(parts))
	for i, p := range parts {
		ret[i] = string(p)
	}
	return ret, true
}

// Int returns the first int field with the given id.
func (h *Header) Int(id int) (uint64, bool) {
	f, ok := h.find(TypeInt, id)
	if !ok {
		return 0, false
	}
	return zint.DecodePackedInt(f.Data), true
}

// Bool returns true iff a bool field with the given id is present.
func (h *Header) Bool(id int) bool {
	_, ok := h.find(TypeBool, id)
	return ok
}

// Len returns the size of the encoded header, in bytes.
func (h *Header) Len() (ret int) {
	for _, f := range h.Fields() {
		ret += descriptorSize + len(f.Data)
	}
	return
}

// Encode serializes the header.
func (h *Header) Encode() []byte {
	ret := make([]byte, 0, h.Len())
	for _, f := range h.Fields() {
		ret = binary.BigEndian.AppendUint16(ret, f.descriptor())
		ret = append(ret, f.Data...)
	}
	return ret
}

// Decode parses an encoded header. The returned Header shares memory with
// buf.
func Decode(buf []byte) (*Header, error) {
	h := &Header{}
	for off := 0; off < len(buf); {
		if len(buf)-off < descriptorSize {
			return nil, errors.Annotate(ErrMalformed, "truncated field descriptor at offset %d", off).Err()
		}
		desc := binary.BigEndian.Uint16(buf[off:])
		off += descriptorSize

		f := Field{
			Type: Type(desc >> 14),
			ID:   int(desc>>10) & MaxID,
		}
		if err := f.Type.Valid(); err != nil {
			return nil, errors.Annotate(ErrMalformed, "field at offset %d: %s", off-descriptorSize, err).Err()
		}
		size := int(desc & MaxFieldSize)
		if len(buf)-off < size {
			return nil, errors.Annotate(ErrMalformed, "%s field %d wants %d bytes, %d remain", f.Type, f.ID, size, len(buf)-off).Err()
		}
		f.Data = buf[off : off+size : off+size]
		off += size
		if f.Type == TypeInt && size > zint.MaxPackedLen {
			return nil, errors.Annotate(ErrMalformed, "int field %d is %d bytes", f.ID, size).Err()
		}
		h.fields = append(h.fields, f)
	}
	return h, nil
}
