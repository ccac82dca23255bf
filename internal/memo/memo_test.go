package memo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemo_DoCachesByKey(t *testing.T) {
	m := New[int](2)
	calls := 0
	compute := func() int {
		calls++
		return calls * 10
	}

	v, hit := m.Do("a", compute)
	assert.Equal(t, 10, v)
	assert.False(t, hit)

	v, hit = m.Do("a", compute)
	assert.Equal(t, 10, v)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)
}

func TestMemo_EvictsInInsertionOrderNotAccessOrder(t *testing.T) {
	// GIVEN: a full cache where the oldest key was just read
	m := New[string](2)
	m.Put("first", "1")
	m.Put("second", "2")
	_, ok := m.Get("first")
	require.True(t, ok)

	// WHEN: a third key is inserted
	m.Put("third", "3")

	// THEN: the oldest inserted key is gone even though it was read last
	_, ok = m.Get("first")
	assert.False(t, ok)
	assert.Equal(t, []string{"second", "third"}, m.Keys())
	assert.Equal(t, 2, m.Len())
}

func TestMemo_PutExistingKeyKeepsPosition(t *testing.T) {
	m := New[int](2)
	m.Put("a", 1)
	m.Put("b", 2)
	m.Put("a", 3)
	m.Put("c", 4)

	_, ok := m.Get("a")
	assert.False(t, ok, "a was inserted first and must be evicted first")
	v, ok := m.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestNew_DefaultSize(t *testing.T) {
	m := New[int](0)
	for i := 0; i < DefaultMaxSize+5; i++ {
		m.Put(Key(i), i)
	}
	assert.Equal(t, DefaultMaxSize, m.Len())
	_, ok := m.Get(Key(0))
	assert.False(t, ok)
}

func TestKey_IsJSONOfArguments(t *testing.T) {
	assert.Equal(t, `["A","normal",100,10,5]`, Key("A", "normal", 100, 10, 5))
	assert.Equal(t, Key("x", 1.5), Key("x", 1.5))
	assert.NotEqual(t, Key("x", 1), Key("x", 2))
}

func TestKey_UnencodableArgumentsAreEmpty(t *testing.T) {
	assert.Empty(t, Key(math.NaN()))
	assert.Empty(t, Key("x", math.Inf(1)))
	assert.Empty(t, Key(&struct{ C chan int }{C: make(chan int)}))
}

func TestMemo_EmptyKeyIsNeverCached(t *testing.T) {
	// GIVEN a key built from an argument JSON cannot encode
	m := New[int](2)
	key := Key(math.NaN())
	calls := 0
	compute := func() int {
		calls++
		return calls
	}

	// WHEN the same call is made twice
	first, hit1 := m.Do(key, compute)
	second, hit2 := m.Do(key, compute)
	m.Put(key, 99)

	// THEN both calls compute and nothing is stored
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	assert.False(t, hit1)
	assert.False(t, hit2)
	assert.Zero(t, m.Len())
}
