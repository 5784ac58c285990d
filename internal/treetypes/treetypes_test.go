// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package treetypes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalar_SetAndReset(t *testing.T) {
	i := NewScalar[int32](7)
	assert.Equal(t, int32(7), i.Value())
	assert.Equal(t, "Int_t", i.TypeName())

	require.NoError(t, i.Set(42))
	assert.Equal(t, int32(42), i.Value())

	require.NoError(t, i.Set(3.9))
	assert.Equal(t, int32(3), i.Value(), "floats truncate")

	require.NoError(t, i.Set(true))
	assert.Equal(t, int32(1), i.Value())

	i.Reset()
	assert.Equal(t, int32(7), i.Value())

	i.NoReset()
	require.NoError(t, i.Set(9))
	i.Reset()
	assert.Equal(t, int32(9), i.Value())
}

func TestScalar_FromOtherValue(t *testing.T) {
	d := NewScalar[float64](0)
	f := NewScalar[float32](2.5)
	require.NoError(t, d.Set(f))
	assert.Equal(t, 2.5, d.Value())
}

func TestScalar_Unsigned(t *testing.T) {
	u := NewScalar[uint32](0)
	err := u.Set(-1)
	require.ErrorIs(t, err, ErrNegativeUnsigned)

	err = u.Set(-0.5)
	require.ErrorIs(t, err, ErrNegativeUnsigned)

	require.NoError(t, u.Set(uint64(4000000000)))
	assert.Equal(t, uint32(4000000000), u.Value())
}

func TestScalar_Overflow(t *testing.T) {
	s := NewScalar[int16](0)
	require.ErrorIs(t, s.Set(70000), ErrOverflow)

	uc := NewScalar[uint8](0)
	require.ErrorIs(t, uc.Set(256), ErrOverflow)

	l := NewScalar[int64](7)
	require.ErrorIs(t, l.Set(1e30), ErrOverflow)
	require.ErrorIs(t, l.Set(-1e30), ErrOverflow)
	require.ErrorIs(t, l.Set(math.NaN()), ErrOverflow)
	assert.Equal(t, int64(7), l.Value(), "failed sets leave the value alone")
	require.NoError(t, l.Set(-3.0))
	assert.Equal(t, int64(-3), l.Value())

	ul := NewScalar[uint64](0)
	require.ErrorIs(t, ul.Set(1e30), ErrOverflow)
	require.ErrorIs(t, ul.Set(math.Inf(1)), ErrOverflow)

	i := NewScalar[int32](0)
	require.ErrorIs(t, i.Set(float32(3e9)), ErrOverflow)
}

func TestScalar_Bool(t *testing.T) {
	b := NewScalar[bool](false)
	assert.Equal(t, "Bool_t", b.TypeName())
	require.NoError(t, b.Set(2))
	assert.True(t, b.Value())
	require.NoError(t, b.Set(0.0))
	assert.False(t, b.Value())
	require.ErrorIs(t, b.Set("yes"), ErrConvert)
}

func TestScalar_Char(t *testing.T) {
	c := NewScalar[int8](0)
	require.NoError(t, c.Set("a"))
	assert.Equal(t, int8('a'), c.Value())
	assert.Equal(t, `Char('a')`, c.String())
	require.ErrorIs(t, c.Set("ab"), ErrConvert)
}

func TestArray_Fixed(t *testing.T) {
	a, err := NewArray[float32](4, -1)
	require.NoError(t, err)
	assert.Equal(t, "Float_t[4]", a.TypeName())
	assert.True(t, a.Fixed())
	assert.Equal(t, []float32{-1, -1, -1, -1}, a.Values())

	require.NoError(t, a.Set([]int{1, 2}))
	assert.Equal(t, []float32{1, 2, -1, -1}, a.Values())

	require.ErrorIs(t, a.Set([]float64{1, 2, 3, 4, 5}), ErrLength)

	require.NoError(t, a.SetAt(3, 8))
	v, err := a.At(3)
	require.NoError(t, err)
	assert.Equal(t, float32(8), v)

	_, err = a.At(4)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	a.Reset()
	assert.Equal(t, []float32{-1, -1, -1, -1}, a.Values())

	target, ok := a.Target().(*[4]float32)
	require.True(t, ok, "fixed arrays decode through *[n]T")
	target[0] = 5
	assert.Equal(t, float32(5), a.Values()[0], "values alias the target storage")

	_, err = NewArray[int32](0, 0)
	require.ErrorIs(t, err, ErrLength)
}

func TestArray_Variable(t *testing.T) {
	v := NewVector[int32]()
	assert.Equal(t, "vector<int>", v.TypeName())
	assert.False(t, v.Fixed())
	assert.Zero(t, v.Len())

	require.NoError(t, v.Set([]int64{1, 2, 3}))
	assert.Equal(t, []int32{1, 2, 3}, v.Values())

	target, ok := v.Target().(*[]int32)
	require.True(t, ok)
	*target = append(*target, 4)
	assert.Equal(t, 4, v.Len())

	v.Reset()
	assert.Zero(t, v.Len())

	other := NewVariableArray[float64]()
	assert.Equal(t, "Double_t[]", other.TypeName())
	require.NoError(t, other.Set(v))
	assert.Zero(t, other.Len())
}

func TestCharArray(t *testing.T) {
	c, err := NewCharArray[int8](6)
	require.NoError(t, err)
	assert.Equal(t, "Char_t[6]", c.TypeName())

	require.NoError(t, c.Set("hello"))
	assert.Equal(t, "hello", c.Str())

	require.ErrorIs(t, c.Set("hello!"), ErrLength)

	require.NoError(t, c.Set("hi"))
	assert.Equal(t, "hi", c.Str(), "shorter strings are terminated")

	c.Reset()
	assert.Equal(t, "", c.Str())

	_, err = NewCharArray[uint8](1)
	require.ErrorIs(t, err, ErrLength)
}

func TestString(t *testing.T) {
	s := NewString("none")
	require.NoError(t, s.Set("ME1/1"))
	assert.Equal(t, "ME1/1", s.Value())
	other := NewString("")
	require.NoError(t, other.Set(s))
	assert.Equal(t, "ME1/1", other.Value())
	s.Reset()
	assert.Equal(t, "none", s.Value())
	require.ErrorIs(t, s.Set(3), ErrConvert)
}

func TestNew(t *testing.T) {
	tests := []struct {
		spec     string
		typeName string
		wantErr  error
	}{
		{spec: "I", typeName: "Int_t"},
		{spec: "Int_t", typeName: "Int_t"},
		{spec: "B", typeName: "Bool_t"},
		{spec: "UL", typeName: "ULong64_t"},
		{spec: "F[3]", typeName: "Float_t[3]"},
		{spec: "Double_t[]", typeName: "Double_t[]"},
		{spec: "vector<float>", typeName: "vector<float>"},
		{spec: "std::vector<unsigned int>", typeName: "vector<unsigned int>"},
		{spec: "vector<long long>", typeName: "vector<long>"},
		{spec: "Char_t[2]", typeName: "Char_t"},
		{spec: "Char_t[3]", typeName: "Char_t[3]"},
		{spec: "UChar_t[8]", typeName: "UChar_t[8]"},
		{spec: "string", typeName: "string"},
		{spec: "Int", typeName: "Int_t"},
		{spec: "FloatArray", typeName: "Float_t[]"},
		{spec: "FloatArray[4]", typeName: "Float_t[4]"},
		{spec: "CharArray[8]", typeName: "Char_t[8]"},
		{spec: "O", wantErr: ErrUnsupportedType},
		{spec: "Char_t[1]", wantErr: ErrLength},
		{spec: "TLorentzVector", wantErr: ErrUnsupportedType},
		{spec: "vector<TLorentzVector>", wantErr: ErrUnsupportedType},
		{spec: "Int_t[0]", wantErr: ErrLength},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			v, err := New(tt.spec)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.typeName, v.TypeName())
		})
	}
}

func TestRegister_Custom(t *testing.T) {
	Register(Factory{Scalar: func() Value { return NewScalar[float64](-999) }}, "Sentinel_t")
	v, err := New("Sentinel_t")
	require.NoError(t, err)
	assert.Equal(t, -999.0, v.Interface())

	_, ok := Lookup("Sentinel_t")
	assert.True(t, ok)
}

func TestConvert(t *testing.T) {
	tests := []struct {
		from, to, typ, want string
	}{
		{"ROOTCODE", "ROOTNAME", "F", "Float_t"},
		{"rootname", "numpy", "UInt_t", "u4"},
		{"NUMPY", "GO", "i8", "int64"},
		{"GO", "ROOTCODE", "bool", "O"},
		{"ROOTCODE", "NUMPY", "b", "u1"},
	}
	for _, tt := range tests {
		got, err := Convert(tt.from, tt.to, tt.typ)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := Convert("ARRAY", "GO", "f")
	require.ErrorIs(t, err, ErrUnknownType)
	_, err = Convert("ROOTCODE", "GO", "X")
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestAsFloat64AndInt64(t *testing.T) {
	f, ok := AsFloat64(NewScalar[int16](-3))
	require.True(t, ok)
	assert.Equal(t, -3.0, f)

	n, ok := AsInt64(float32(2.7))
	require.True(t, ok)
	assert.Equal(t, int64(2), n)

	_, ok = AsInt64("x")
	assert.False(t, ok)
	_, ok = AsFloat64(nil)
	assert.False(t, ok)
}
