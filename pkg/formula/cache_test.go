package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := toks(Num("2"), Op("+"), Var("x"))

	assert.Equal(t, Key(a), Key(toks(Num("2"), Op("+"), Var("x"))))
	assert.NotEqual(t, Key(a), Key(toks(Num("2"), Op("-"), Var("x"))))
	assert.NotEqual(t, Key(toks(Num("12"))), Key(toks(Num("1"), Num("2"))))
	assert.NotEqual(t, Key(toks(Op("*"))), Key(toks(Op("×"))), "display text is part of the key")
	assert.NotEqual(t, Key(toks(Open())), Key(toks(Token{Kind: KindGrouping, Symbol: "(", Side: SideClose})))
	assert.Len(t, Key(nil), 64)
}

func TestCache_PutGet(t *testing.T) {
	c := NewCache(10)
	tree, err := parse(toks(Num("1")), DefaultCatalog())
	require.NoError(t, err)

	_, ok := c.Get("k")
	assert.False(t, ok)

	assert.Same(t, tree, c.Put("k", tree))
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Same(t, tree, got)
	assert.Equal(t, 1, c.Len())
}

func TestCache_KeepsFirstTree(t *testing.T) {
	c := NewCache(10)
	first := &Tree{}
	second := &Tree{}

	c.Put("k", first)
	assert.Same(t, first, c.Put("k", second))
	assert.Equal(t, 1, c.Len())
}

func TestCache_Capacity(t *testing.T) {
	c := NewCache(1)
	a, b := &Tree{}, &Tree{}

	c.Put("a", a)
	assert.Same(t, b, c.Put("b", b))

	_, ok := c.Get("b")
	assert.False(t, ok)
	assert.Same(t, a, c.Put("a", &Tree{}))
	assert.Equal(t, 1, c.Len())
}

func TestEngine_ParseUsesCache(t *testing.T) {
	e := NewEngine(WithCache(NewCache(8)))
	tokens := toks(Var("x"), Op("×"), Num("2"))

	first, err := e.Parse(tokens)
	require.NoError(t, err)
	second, err := e.Parse(toks(Var("x"), Op("×"), Num("2")))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, e.CachedTrees())
	assert.Equal(t, 0, NewEngine().CachedTrees())
}

func TestEngine_InvalidFormulasAreNotCached(t *testing.T) {
	c := NewCache(8)
	e := NewEngine(WithCache(c))

	_, err := e.Parse(toks(Num("2"), Op("+")))
	requireCode(t, err, CodeArityMismatch)
	assert.Equal(t, 0, c.Len())
}
