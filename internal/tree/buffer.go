// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package tree

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	xglog "github.com/ManuGH/emtf-tree/internal/log"
	"github.com/ManuGH/emtf-tree/internal/treetypes"
)

var (
	invalidNameChars = regexp.MustCompile(`[^0-9a-zA-Z_]`)
	leadingNonLetter = regexp.MustCompile(`^[^a-zA-Z_]+`)
)

// loader reads a branch for the current entry on first access.
type loader interface {
	load(name string) error
}

// Buffer maps branch names to typed values, in insertion order.
//
// Names that are not valid identifiers are also reachable through a
// sanitised alias: invalid characters become '_' and leading characters
// that are not letters are dropped ("1.pt" is also "pt").
type Buffer struct {
	names   []string
	values  map[string]treetypes.Value
	aliases map[string]string
	entry   int64
	loader  loader

	objects     []*Object
	collections []*Collection
}

// NewBuffer builds a value for every branch. Branches of unsupported type
// fail the construction unless ignoreUnsupported is set, in which case
// they are skipped with a warning.
func NewBuffer(branches []Branch, ignoreUnsupported bool) (*Buffer, error) {
	b := newBuffer()
	seen := make(map[string]struct{}, len(branches))
	for _, br := range branches {
		if _, dup := seen[br.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateBranch, br.Name)
		}
		seen[br.Name] = struct{}{}

		v, err := treetypes.New(br.Type)
		if err != nil {
			if !errors.Is(err, treetypes.ErrUnsupportedType) {
				return nil, fmt.Errorf("branch %q: %w", br.Name, err)
			}
			if !ignoreUnsupported {
				return nil, fmt.Errorf("%w: branch %q has type %q", ErrUnsupportedBranch, br.Name, br.Type)
			}
			logger := xglog.WithComponent("tree")
			logger.Warn().
				Str(xglog.FieldBranch, br.Name).
				Str(xglog.FieldType, br.Type).
				Msg("ignoring branch with unsupported type")
			continue
		}
		if err := b.Add(br.Name, v); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func newBuffer() *Buffer {
	return &Buffer{
		values:  map[string]treetypes.Value{},
		aliases: map[string]string{},
	}
}

// CleanName returns the identifier form of a branch name.
func CleanName(name string) string {
	name = invalidNameChars.ReplaceAllString(name, "_")
	return leadingNonLetter.ReplaceAllString(name, "")
}

// Add stores v under name, replacing any previous value of that name.
func (b *Buffer) Add(name string, v treetypes.Value) error {
	fixed := CleanName(name)
	if fixed == "" || strings.HasPrefix(fixed, "_") {
		return fmt.Errorf("%w: %q", ErrIllegalName, name)
	}
	if fixed != name {
		b.aliases[fixed] = name
	}
	if _, ok := b.values[name]; !ok {
		b.names = append(b.names, name)
	}
	b.values[name] = v
	return nil
}

func (b *Buffer) resolve(name string) string {
	if _, ok := b.values[name]; ok {
		return name
	}
	if orig, ok := b.aliases[name]; ok {
		return orig
	}
	return name
}

// Has reports whether name (or its alias) is in the buffer.
func (b *Buffer) Has(name string) bool {
	_, ok := b.values[b.resolve(name)]
	return ok
}

// Get returns the value stored under name. While a tree iterates on
// demand, the branch is read for the current entry on first access.
func (b *Buffer) Get(name string) (treetypes.Value, error) {
	name = b.resolve(name)
	v, ok := b.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q not in buffer", ErrNoSuchBranch, name)
	}
	if b.loader != nil {
		if err := b.loader.load(name); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Value returns the current value under name: the element for scalars,
// the string for character arrays and the slice for other arrays.
func (b *Buffer) Value(name string) (any, error) {
	v, err := b.Get(name)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

func (b *Buffer) Float64(name string) (float64, error) {
	v, err := b.Get(name)
	if err != nil {
		return 0, err
	}
	f, ok := treetypes.AsFloat64(v.Interface())
	if !ok {
		return 0, fmt.Errorf("%w: %s %q is not numeric", treetypes.ErrConvert, v.TypeName(), name)
	}
	return f, nil
}

func (b *Buffer) Int64(name string) (int64, error) {
	v, err := b.Get(name)
	if err != nil {
		return 0, err
	}
	n, ok := treetypes.AsInt64(v.Interface())
	if !ok {
		return 0, fmt.Errorf("%w: %s %q is not numeric", treetypes.ErrConvert, v.TypeName(), name)
	}
	return n, nil
}

func (b *Buffer) Bool(name string) (bool, error) {
	v, err := b.Get(name)
	if err != nil {
		return false, err
	}
	if x, ok := v.Interface().(bool); ok {
		return x, nil
	}
	n, ok := treetypes.AsInt64(v.Interface())
	if !ok {
		return false, fmt.Errorf("%w: %s %q is not a boolean", treetypes.ErrConvert, v.TypeName(), name)
	}
	return n != 0, nil
}

func (b *Buffer) Str(name string) (string, error) {
	v, err := b.Get(name)
	if err != nil {
		return "", err
	}
	s, ok := v.Interface().(string)
	if !ok {
		return "", fmt.Errorf("%w: %s %q is not a string", treetypes.ErrConvert, v.TypeName(), name)
	}
	return s, nil
}

func (b *Buffer) indexed(name string) (treetypes.Indexed, error) {
	v, err := b.Get(name)
	if err != nil {
		return nil, err
	}
	idx, ok := v.(treetypes.Indexed)
	if !ok {
		return nil, fmt.Errorf("%w: %q has type %s", ErrNotIndexed, name, v.TypeName())
	}
	return idx, nil
}

// ArrayLen returns the current length of the array stored under name.
func (b *Buffer) ArrayLen(name string) (int, error) {
	idx, err := b.indexed(name)
	if err != nil {
		return 0, err
	}
	return idx.Len(), nil
}

// At returns element i of the array stored under name.
func (b *Buffer) At(name string, i int) (any, error) {
	idx, err := b.indexed(name)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= idx.Len() {
		return nil, fmt.Errorf("%w: index %d for %q of length %d", ErrIndexOutOfRange, i, name, idx.Len())
	}
	return idx.At(i)
}

// SetAt assigns element i of the array stored under name.
func (b *Buffer) SetAt(name string, i int, v any) error {
	idx, err := b.indexed(name)
	if err != nil {
		return err
	}
	if i < 0 || i >= idx.Len() {
		return fmt.Errorf("%w: index %d for %q of length %d", ErrIndexOutOfRange, i, name, idx.Len())
	}
	return idx.SetAt(i, v)
}

// Set assigns v to the value stored under name.
func (b *Buffer) Set(name string, v any) error {
	val, err := b.Get(name)
	if err != nil {
		return err
	}
	if err := val.Set(v); err != nil {
		return fmt.Errorf("set %q: %w", name, err)
	}
	return nil
}

// Reset restores every value to its default.
func (b *Buffer) Reset() {
	for _, name := range b.names {
		b.values[name].Reset()
	}
}

// Update adopts the values, aliases and current entry of other. Values of
// the same name are replaced by other's.
func (b *Buffer) Update(other *Buffer) {
	b.entry = other.entry
	for _, name := range other.names {
		if _, ok := b.values[name]; !ok {
			b.names = append(b.names, name)
		}
		b.values[name] = other.values[name]
	}
	for alias, name := range other.aliases {
		b.aliases[alias] = name
	}
}

// Keys returns the names in insertion order.
func (b *Buffer) Keys() []string {
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

func (b *Buffer) Len() int { return len(b.names) }

// Entry is the number of the entry currently held.
func (b *Buffer) Entry() int64 { return b.entry }

func (b *Buffer) String() string {
	var sb strings.Builder
	for _, name := range b.names {
		fmt.Fprintf(&sb, "%s -> %s\n", name, b.values[name])
	}
	return sb.String()
}

// DefineObject makes the values named prefix+attr reachable as the
// attributes of one object.
func (b *Buffer) DefineObject(name, prefix string) *Object {
	obj := &Object{buf: b, name: name, prefix: prefix}
	for i, o := range b.objects {
		if o.name == name {
			b.objects[i] = obj
			return obj
		}
	}
	b.objects = append(b.objects, obj)
	return obj
}

// Object returns the object defined under name.
func (b *Buffer) Object(name string) (*Object, bool) {
	for _, o := range b.objects {
		if o.name == name {
			return o, true
		}
	}
	return nil, false
}

// DefineCollection defines a collection over the arrays named
// prefix+attr, whose length is held by the size value.
func (b *Buffer) DefineCollection(name, prefix, size string) *Collection {
	coll := newCollection(b, name, prefix, size)
	for i, c := range b.collections {
		if c.name == name {
			b.collections[i] = coll
			return coll
		}
	}
	b.collections = append(b.collections, coll)
	return coll
}

// Collection returns the collection defined under name.
func (b *Buffer) Collection(name string) (*Collection, bool) {
	for _, c := range b.collections {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// Collections returns the defined collections in definition order.
func (b *Buffer) Collections() []*Collection {
	out := make([]*Collection, len(b.collections))
	copy(out, b.collections)
	return out
}

// SetObjects redefines the objects and collections of other on b.
func (b *Buffer) SetObjects(other *Buffer) {
	for _, o := range other.objects {
		b.DefineObject(o.name, o.prefix)
	}
	for _, c := range other.collections {
		b.DefineCollection(c.name, c.prefix, c.size)
	}
}

// ResetCollections drops the selections and cached objects of every
// collection.
func (b *Buffer) ResetCollections() {
	for _, c := range b.collections {
		c.Reset()
	}
}

// Object is a view onto the buffer values sharing a name prefix.
type Object struct {
	buf    *Buffer
	name   string
	prefix string
}

func (o *Object) Name() string   { return o.name }
func (o *Object) Prefix() string { return o.prefix }

func (o *Object) Get(attr string) (treetypes.Value, error) { return o.buf.Get(o.prefix + attr) }
func (o *Object) Value(attr string) (any, error)           { return o.buf.Value(o.prefix + attr) }
func (o *Object) Float64(attr string) (float64, error)     { return o.buf.Float64(o.prefix + attr) }
func (o *Object) Int64(attr string) (int64, error)         { return o.buf.Int64(o.prefix + attr) }
func (o *Object) Bool(attr string) (bool, error)           { return o.buf.Bool(o.prefix + attr) }
func (o *Object) Str(attr string) (string, error)          { return o.buf.Str(o.prefix + attr) }
func (o *Object) Set(attr string, v any) error             { return o.buf.Set(o.prefix+attr, v) }
