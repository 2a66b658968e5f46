package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echo struct {
	name string
	ran  []string
}

func (e *echo) Name() string        { return e.name }
func (e *echo) Description() string { return "echo" }
func (e *echo) Run(_ context.Context, inv *Invocation) error {
	e.ran = append(e.ran, inv.Args...)
	return nil
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Register(&echo{name: "self"})
	r.Register(&echo{name: "birthday"})
	r.Alias("SelfTest", "self")

	c, ok := r.Resolve("selftest")
	require.True(t, ok)
	assert.Equal(t, "self", c.Name())

	c, ok = r.Resolve("BIRTHDAY")
	require.True(t, ok)
	assert.Equal(t, "birthday", c.Name())

	_, ok = r.Resolve("nope")
	assert.False(t, ok)

	names := []string{}
	for _, c := range r.GetAll() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"birthday", "self"}, names)
}

func TestMiddlewareOrderAndRoot(t *testing.T) {
	inner := &echo{name: "x"}
	var order []string
	mw := func(tag string) Middleware {
		return func(c Command) Command {
			return Wrap(c, func(ctx context.Context, inv *Invocation) error {
				order = append(order, tag)
				return c.Run(ctx, inv)
			})
		}
	}
	c := Apply(inner, mw("first"), mw("second"))

	require.NoError(t, c.Run(context.Background(), &Invocation{Args: []string{"a"}}))
	assert.Equal(t, []string{"second", "first"}, order, "last applied runs outermost")
	assert.Equal(t, []string{"a"}, inner.ran)
	assert.Same(t, inner, Root(c))
	assert.Equal(t, "x", c.Name())
}
