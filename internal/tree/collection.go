// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package tree

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/ManuGH/emtf-tree/internal/treetypes"
)

// Collection is an indexed view over parallel array branches: element i
// of every prefix+attr array describes object i. The number of objects in
// the current entry is held by the size value.
//
// A selection narrows and reorders the visible objects without touching
// the arrays. Selections and cached objects are dropped after every entry.
type Collection struct {
	buf    *Buffer
	name   string
	prefix string
	size   string

	selection []int // nil: every object in storage order
	cache     map[int]*CollectionObject
}

func newCollection(buf *Buffer, name, prefix, size string) *Collection {
	return &Collection{buf: buf, name: name, prefix: prefix, size: size, cache: map[int]*CollectionObject{}}
}

func (c *Collection) Name() string   { return c.name }
func (c *Collection) Prefix() string { return c.prefix }
func (c *Collection) Size() string   { return c.size }

// Len returns the number of selected objects.
func (c *Collection) Len() (int, error) {
	if c.selection != nil {
		return len(c.selection), nil
	}
	return c.storedLen()
}

func (c *Collection) storedLen() (int, error) {
	n, err := c.buf.Int64(c.size)
	if err != nil {
		return 0, fmt.Errorf("collection %q: %w", c.name, err)
	}
	return int(n), nil
}

func (c *Collection) ensureSelection() error {
	if c.selection != nil {
		return nil
	}
	n, err := c.storedLen()
	if err != nil {
		return err
	}
	c.selection = make([]int, n)
	for i := range c.selection {
		c.selection[i] = i
	}
	return nil
}

// At returns the i-th selected object. Negative positions count from the
// end.
func (c *Collection) At(i int) (*CollectionObject, error) {
	n, err := c.Len()
	if err != nil {
		return nil, err
	}
	pos, ok := position(i, n)
	if !ok {
		return nil, c.rangeErr(i, n)
	}
	if c.selection != nil {
		pos = c.selection[pos]
	}
	return c.object(pos), nil
}

// position resolves i against a length n, counting negative i from the end.
func position(i, n int) (int, bool) {
	if i < 0 {
		i += n
	}
	return i, i >= 0 && i < n
}

// Raw returns object i in storage order, ignoring the selection.
func (c *Collection) Raw(i int) (*CollectionObject, error) {
	n, err := c.storedLen()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= n {
		return nil, c.rangeErr(i, n)
	}
	return c.object(i), nil
}

func (c *Collection) object(i int) *CollectionObject {
	if obj, ok := c.cache[i]; ok {
		return obj
	}
	obj := &CollectionObject{coll: c, index: i}
	c.cache[i] = obj
	return obj
}

func (c *Collection) rangeErr(i, n int) error {
	return fmt.Errorf("%w: index %d for collection %q of size %d", ErrIndexOutOfRange, i, c.name, n)
}

// All returns the selected objects in order.
func (c *Collection) All() ([]*CollectionObject, error) {
	n, err := c.Len()
	if err != nil {
		return nil, err
	}
	out := make([]*CollectionObject, n)
	for i := range out {
		if out[i], err = c.At(i); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Select keeps the objects for which keep returns true.
func (c *Collection) Select(keep func(*CollectionObject) (bool, error)) error {
	return c.filter(keep, true)
}

// Mask drops the objects for which drop returns true.
func (c *Collection) Mask(drop func(*CollectionObject) (bool, error)) error {
	return c.filter(drop, false)
}

func (c *Collection) filter(pred func(*CollectionObject) (bool, error), want bool) error {
	if err := c.ensureSelection(); err != nil {
		return err
	}
	kept := c.selection[:0:0]
	for _, i := range c.selection {
		ok, err := pred(c.object(i))
		if err != nil {
			return err
		}
		if ok == want {
			kept = append(kept, i)
		}
	}
	c.selection = kept
	return nil
}

// SelectIndices keeps the selected objects at the given positions, in the
// given order. Negative positions count from the end.
func (c *Collection) SelectIndices(indices []int) error {
	if err := c.ensureSelection(); err != nil {
		return err
	}
	kept := make([]int, 0, len(indices))
	for _, i := range indices {
		pos, ok := position(i, len(c.selection))
		if !ok {
			return c.rangeErr(i, len(c.selection))
		}
		kept = append(kept, c.selection[pos])
	}
	c.selection = kept
	return nil
}

// MaskIndices drops the selected objects at the given positions.
func (c *Collection) MaskIndices(indices []int) error {
	if err := c.ensureSelection(); err != nil {
		return err
	}
	kept := c.selection[:0:0]
	for pos, i := range c.selection {
		if !slices.Contains(indices, pos) {
			kept = append(kept, i)
		}
	}
	c.selection = kept
	return nil
}

// Sort orders the selection by key, ascending unless reverse is set. Equal
// keys keep their relative order.
func (c *Collection) Sort(key func(*CollectionObject) (float64, error), reverse bool) error {
	if err := c.ensureSelection(); err != nil {
		return err
	}
	keys := make(map[int]float64, len(c.selection))
	for _, i := range c.selection {
		k, err := key(c.object(i))
		if err != nil {
			return err
		}
		keys[i] = k
	}
	sort.SliceStable(c.selection, func(a, b int) bool {
		if reverse {
			return keys[c.selection[a]] > keys[c.selection[b]]
		}
		return keys[c.selection[a]] < keys[c.selection[b]]
	})
	return nil
}

// Slice keeps every step-th selected object from start up to stop:
// negative positions count from the end and out of range bounds are
// clamped.
func (c *Collection) Slice(start, stop, step int) error {
	if step == 0 {
		return errors.New("slice step cannot be zero")
	}
	if err := c.ensureSelection(); err != nil {
		return err
	}
	n := len(c.selection)
	start, stop = sliceBounds(n, start, stop, step)
	var kept []int
	if step > 0 {
		for i := start; i < stop; i += step {
			kept = append(kept, c.selection[i])
		}
	} else {
		for i := start; i > stop; i += step {
			kept = append(kept, c.selection[i])
		}
	}
	if kept == nil {
		kept = []int{}
	}
	c.selection = kept
	return nil
}

func sliceBounds(n, start, stop, step int) (int, int) {
	clamp := func(i, lo, hi int) int {
		if i < 0 {
			i += n
		}
		return max(lo, min(i, hi))
	}
	if step > 0 {
		return clamp(start, 0, n), clamp(stop, 0, n)
	}
	return clamp(start, -1, n-1), clamp(stop, -1, n-1)
}

// Remove drops obj from the selection.
func (c *Collection) Remove(obj *CollectionObject) error {
	if err := c.ensureSelection(); err != nil {
		return err
	}
	for pos, i := range c.selection {
		if obj.coll == c && obj.index == i {
			c.selection = slices.Delete(c.selection, pos, pos+1)
			return nil
		}
	}
	return nil
}

// Pop removes and returns the selected object at position i. Negative
// positions count from the end.
func (c *Collection) Pop(i int) (*CollectionObject, error) {
	if err := c.ensureSelection(); err != nil {
		return nil, err
	}
	obj, err := c.At(i)
	if err != nil {
		return nil, err
	}
	pos, _ := position(i, len(c.selection))
	c.selection = slices.Delete(c.selection, pos, pos+1)
	return obj, nil
}

// Reset drops the selection and the cached objects.
func (c *Collection) Reset() {
	c.ResetSelection()
	c.ResetCache()
}

func (c *Collection) ResetSelection() { c.selection = nil }

func (c *Collection) ResetCache() { clear(c.cache) }

// CollectionObject is element Index of the arrays of a collection.
type CollectionObject struct {
	coll  *Collection
	index int
}

func (o *CollectionObject) Index() int { return o.index }

func (o *CollectionObject) Collection() *Collection { return o.coll }

// Get returns element Index of the prefix+attr array.
func (o *CollectionObject) Get(attr string) (any, error) {
	v, err := o.coll.buf.At(o.coll.prefix+attr, o.index)
	if err != nil {
		return nil, fmt.Errorf("attribute %q of collection %q: %w", attr, o.coll.name, err)
	}
	return v, nil
}

func (o *CollectionObject) Float64(attr string) (float64, error) {
	v, err := o.Get(attr)
	if err != nil {
		return 0, err
	}
	f, ok := treetypes.AsFloat64(v)
	if !ok {
		return 0, fmt.Errorf("%w: attribute %q is not numeric", treetypes.ErrConvert, attr)
	}
	return f, nil
}

func (o *CollectionObject) Int64(attr string) (int64, error) {
	v, err := o.Get(attr)
	if err != nil {
		return 0, err
	}
	n, ok := treetypes.AsInt64(v)
	if !ok {
		return 0, fmt.Errorf("%w: attribute %q is not numeric", treetypes.ErrConvert, attr)
	}
	return n, nil
}

// Set assigns element Index of the prefix+attr array.
func (o *CollectionObject) Set(attr string, v any) error {
	if err := o.coll.buf.SetAt(o.coll.prefix+attr, o.index, v); err != nil {
		return fmt.Errorf("attribute %q of collection %q: %w", attr, o.coll.name, err)
	}
	return nil
}
