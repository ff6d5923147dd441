package middleware

import (
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
)

func TestChain(t *testing.T) {
	var calls []string
	named := func(name string) Func {
		return func(ctx huma.Context, next func(huma.Context)) {
			calls = append(calls, name)
			next(ctx)
		}
	}

	chain := NewChain(named("logger")).WithAuth(named("auth"))

	assert.Len(t, chain.Public(), 1)

	protected := chain.Protected()
	assert.Len(t, protected, 2)

	protected.Handler(func(huma.Context) { calls = append(calls, "handler") })(nil)
	assert.Equal(t, []string{"logger", "auth", "handler"}, calls)

	// повторный вызов не должен копить middleware
	assert.Len(t, chain.Protected(), 2)
}
