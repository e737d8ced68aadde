package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompensationStack_UnwindsInReverseOrder(t *testing.T) {
	stack := newCompensationStack(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var order []string
	for _, name := range []string{"workspace", "site", "unit"} {
		name := name
		stack.push(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	require.Equal(t, 3, stack.size())

	leftovers, errs := stack.unwind(context.Background())
	assert.Empty(t, leftovers)
	assert.Empty(t, errs)
	assert.Equal(t, []string{"unit", "site", "workspace"}, order, "strict reverse order")
}

func TestCompensationStack_FailureDoesNotStopRemaining(t *testing.T) {
	stack := newCompensationStack(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var order []string
	stack.push("workspace", func(ctx context.Context) error {
		order = append(order, "workspace")
		return nil
	})
	stack.push("site", func(ctx context.Context) error {
		order = append(order, "site")
		return errors.New("reload refused")
	})
	stack.push("unit", func(ctx context.Context) error {
		order = append(order, "unit")
		return nil
	})

	leftovers, errs := stack.unwind(context.Background())
	assert.Equal(t, []string{"unit", "site", "workspace"}, order,
		"a failing compensation never aborts the rest")
	assert.Equal(t, []string{"site"}, leftovers)
	require.Len(t, errs, 1)
}

func TestCompensationStack_EmptyUnwind(t *testing.T) {
	stack := newCompensationStack(slog.New(slog.NewTextHandler(io.Discard, nil)))
	leftovers, errs := stack.unwind(context.Background())
	assert.Empty(t, leftovers)
	assert.Empty(t, errs)
}
