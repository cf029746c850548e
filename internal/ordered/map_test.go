package ordered

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapKeepsFirstInsertionOrder(t *testing.T) {
	m := New[string, int]()
	m.Set("b", 1)
	m.Set("a", 2)
	m.Set("b", 3)
	m.Set("c", 4)

	assert.Equal(t, []string{"b", "a", "c"}, m.Keys())
	assert.Equal(t, []int{3, 2, 4}, m.Values())
	assert.Equal(t, 3, m.Len())

	v, ok := m.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestGetOrCreateOnlyCreatesOnce(t *testing.T) {
	m := New[string, *[]int]()
	calls := 0
	create := func() *[]int {
		calls++
		return &[]int{}
	}

	first := m.GetOrCreate("k", create)
	*first = append(*first, 1)
	second := m.GetOrCreate("k", create)

	assert.Equal(t, 1, calls)
	assert.Same(t, first, second)
	assert.Equal(t, []int{1}, *second)
}

func TestEachStopsEarly(t *testing.T) {
	m := New[int, string]()
	for i := 0; i < 5; i++ {
		m.Set(i, "x")
	}

	var seen []int
	m.Each(func(k int, _ string) bool {
		seen = append(seen, k)
		return k < 2
	})

	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestKeysReturnsCopy(t *testing.T) {
	m := New[string, int]()
	m.Set("x", 1)
	keys := m.Keys()
	keys[0] = "mutated"

	assert.Equal(t, []string{"x"}, m.Keys())
}
