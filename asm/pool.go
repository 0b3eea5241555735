package asm

import (
	"errors"
	"math"
)

// ErrPoolOverflow is returned when a constant pool would need more than
// 65535 entries.
var ErrPoolOverflow = errors.New("constant pool overflow")

// Tag is the kind of a constant pool entry.
type Tag uint8

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagInvokeDynamic      Tag = 18
)

// Entry is one constant pool entry. Value holds the constant for literal
// entries; Refs holds the indexes of the entries a reference entry points
// to.
type Entry struct {
	Tag   Tag
	Value any
	Refs  []uint16
}

type poolKey struct {
	tag   Tag
	value any
	a, b  uint16
}

// Pool is a deduplicating constant pool. Index 0 is unused, as are the
// indexes following long and double entries.
type Pool struct {
	entries []Entry
	index   map[poolKey]uint16
	next    int
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{index: map[poolKey]uint16{}, next: 1}
}

// Len returns the constant_pool_count value: one more than the highest
// index in use.
func (p *Pool) Len() int {
	return p.next
}

// Entries returns the entries in index order, skipping unusable indexes.
func (p *Pool) Entries() []Entry {
	return append([]Entry(nil), p.entries...)
}

func (p *Pool) add(key poolKey, e Entry) (uint16, error) {
	if idx, ok := p.index[key]; ok {
		return idx, nil
	}
	width := 1
	if e.Tag == TagLong || e.Tag == TagDouble {
		width = 2
	}
	if p.next+width > math.MaxUint16+1 {
		return 0, ErrPoolOverflow
	}
	idx := uint16(p.next)
	p.next += width
	p.index[key] = idx
	p.entries = append(p.entries, e)
	return idx, nil
}

// Utf8 returns the index of a UTF-8 entry.
func (p *Pool) Utf8(s string) (uint16, error) {
	return p.add(poolKey{tag: TagUtf8, value: s}, Entry{Tag: TagUtf8, Value: s})
}

// Integer returns the index of an int constant.
func (p *Pool) Integer(v int32) (uint16, error) {
	return p.add(poolKey{tag: TagInteger, value: v}, Entry{Tag: TagInteger, Value: v})
}

// Float returns the index of a float constant. Constants are keyed by
// their bits so that NaNs deduplicate.
func (p *Pool) Float(v float32) (uint16, error) {
	return p.add(poolKey{tag: TagFloat, value: math.Float32bits(v)}, Entry{Tag: TagFloat, Value: v})
}

// Long returns the index of a long constant.
func (p *Pool) Long(v int64) (uint16, error) {
	return p.add(poolKey{tag: TagLong, value: v}, Entry{Tag: TagLong, Value: v})
}

// Double returns the index of a double constant.
func (p *Pool) Double(v float64) (uint16, error) {
	return p.add(poolKey{tag: TagDouble, value: math.Float64bits(v)}, Entry{Tag: TagDouble, Value: v})
}

// String returns the index of a string constant.
func (p *Pool) String(s string) (uint16, error) {
	return p.ref1(TagString, s)
}

// Class returns the index of a class reference.
func (p *Pool) Class(internalName string) (uint16, error) {
	return p.ref1(TagClass, internalName)
}

func (p *Pool) ref1(tag Tag, s string) (uint16, error) {
	u, err := p.Utf8(s)
	if err != nil {
		return 0, err
	}
	return p.add(poolKey{tag: tag, a: u}, Entry{Tag: tag, Refs: []uint16{u}})
}

// NameAndType returns the index of a name and type entry.
func (p *Pool) NameAndType(name, desc string) (uint16, error) {
	n, err := p.Utf8(name)
	if err != nil {
		return 0, err
	}
	d, err := p.Utf8(desc)
	if err != nil {
		return 0, err
	}
	return p.add(poolKey{tag: TagNameAndType, a: n, b: d}, Entry{Tag: TagNameAndType, Refs: []uint16{n, d}})
}

// Member returns the index of a field, method or interface method
// reference.
func (p *Pool) Member(tag Tag, owner, name, desc string) (uint16, error) {
	c, err := p.Class(owner)
	if err != nil {
		return 0, err
	}
	nt, err := p.NameAndType(name, desc)
	if err != nil {
		return 0, err
	}
	return p.add(poolKey{tag: tag, a: c, b: nt}, Entry{Tag: tag, Refs: []uint16{c, nt}})
}

// InvokeDynamic returns the index of a call site entry. Bootstrap methods
// are not modeled; every call site uses bootstrap index zero.
func (p *Pool) InvokeDynamic(name, desc string) (uint16, error) {
	nt, err := p.NameAndType(name, desc)
	if err != nil {
		return 0, err
	}
	return p.add(poolKey{tag: TagInvokeDynamic, b: nt}, Entry{Tag: TagInvokeDynamic, Refs: []uint16{0, nt}})
}
