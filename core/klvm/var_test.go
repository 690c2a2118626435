package klvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarBindOnce(t *testing.T) {
	v := NewVar()
	assert.False(t, v.IsBound())

	require.NoError(t, v.BindToValue(Int64(42), nil))
	assert.True(t, v.IsBound())

	val, err := ResolveValue(v)
	require.NoError(t, err)
	assert.Equal(t, Int64(42), val)
}

func TestVarBindConflictFails(t *testing.T) {
	v := NewVar()
	require.NoError(t, v.BindToValue(Int64(1), nil))
	err := v.BindToValue(Int64(2), nil)
	assert.Error(t, err)
	assert.IsType(t, &UnificationError{}, err)
}

func TestVarBindCallbackFiresOnce(t *testing.T) {
	v := NewVar()
	var fired int
	var seen Value
	v.SetBindCallback(func(_ *Var, value Value) {
		fired++
		seen = value
	})
	require.NoError(t, v.BindToValue(Str("hello"), nil))
	assert.Equal(t, 1, fired)
	assert.Equal(t, Str("hello"), seen)
}

func TestVarBindCallbackFiresImmediatelyIfAlreadyBound(t *testing.T) {
	v := NewVar()
	require.NoError(t, v.BindToValue(Int64(7), nil))

	var fired int
	v.SetBindCallback(func(_ *Var, value Value) {
		fired++
		assert.Equal(t, Int64(7), value)
	})
	assert.Equal(t, 1, fired)
}

func TestUnifyTwoUnboundVarsThenBindEitherBindsBoth(t *testing.T) {
	a, b := NewVar(), NewVar()
	require.NoError(t, a.unifyVar(b))
	require.NoError(t, a.BindToValue(Int64(9), nil))

	val, err := ResolveValue(b)
	require.NoError(t, err)
	assert.Equal(t, Int64(9), val)
}

func TestUnifyPropagatesCallbacksAcrossMerge(t *testing.T) {
	a, b := NewVar(), NewVar()
	var fired bool
	b.SetBindCallback(func(*Var, Value) { fired = true })

	require.NoError(t, a.unifyVar(b))
	require.NoError(t, a.BindToValue(Bool(true), nil))
	assert.True(t, fired)
}

func TestResolveValueReturnsWaitErrorForUnboundVar(t *testing.T) {
	v := NewVar()
	_, err := ResolveValue(v)
	require.Error(t, err)
	waitErr, ok := err.(*WaitError)
	require.True(t, ok)
	assert.Same(t, v, waitErr.Barrier)
}

func TestCheckCompleteRecursesIntoRecFields(t *testing.T) {
	inner := NewVar()
	rec := NewRecBuilder(Str("point")).
		AddField(Str("x"), Int64(1)).
		AddField(Str("y"), inner).
		Build()

	_, err := CheckComplete(rec)
	require.Error(t, err)
	waitErr, ok := err.(*WaitError)
	require.True(t, ok)
	assert.Same(t, inner, waitErr.Barrier)

	require.NoError(t, inner.BindToValue(Int64(2), nil))
	complete, err := CheckComplete(rec)
	require.NoError(t, err)
	assert.NotNil(t, complete)
}
