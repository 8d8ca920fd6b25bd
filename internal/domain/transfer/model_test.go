package transfer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

func newValidTransfer() *StockTransfer {
	t := New(id.New(), id.New())
	t.AddItem(id.New(), "Widget", types.NewQuantityFromInt(10))
	return t
}

func TestStockTransfer_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, newValidTransfer().Validate(ctx))
	})

	t.Run("same warehouse", func(t *testing.T) {
		wh := id.New()
		tr := New(wh, wh)
		tr.AddItem(id.New(), "Widget", types.NewQuantityFromInt(10))
		err := tr.Validate(ctx)
		require.Error(t, err)
		appErr, _ := apperror.AsAppError(err)
		assert.Equal(t, apperror.CodeValidation, appErr.Code)
	})

	t.Run("no items", func(t *testing.T) {
		tr := New(id.New(), id.New())
		require.Error(t, tr.Validate(ctx))
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		tr := New(id.New(), id.New())
		tr.AddItem(id.New(), "Widget", types.NewQuantityFromInt(0))
		require.Error(t, tr.Validate(ctx))
	})
}

func TestStockTransfer_Transitions(t *testing.T) {
	t.Run("full forward path", func(t *testing.T) {
		tr := newValidTransfer()
		require.NoError(t, tr.MarkShipped())
		assert.Equal(t, StatusInTransit, tr.Status)
		require.NotNil(t, tr.ShippedAt)

		require.NoError(t, tr.MarkReceived())
		assert.Equal(t, StatusCompleted, tr.Status)
		require.NotNil(t, tr.ReceivedAt)
	})

	t.Run("ship requires pending", func(t *testing.T) {
		tr := newValidTransfer()
		require.NoError(t, tr.MarkShipped())
		err := tr.MarkShipped()
		require.True(t, apperror.IsInvalidTransition(err))
	})

	t.Run("receive requires in_transit", func(t *testing.T) {
		tr := newValidTransfer()
		err := tr.MarkReceived()
		require.True(t, apperror.IsInvalidTransition(err))
	})

	t.Run("cancel from pending and in_transit", func(t *testing.T) {
		tr := newValidTransfer()
		require.NoError(t, tr.MarkCancelled())

		tr = newValidTransfer()
		require.NoError(t, tr.MarkShipped())
		require.NoError(t, tr.MarkCancelled())
	})

	t.Run("cancel rejected when completed or cancelled", func(t *testing.T) {
		tr := newValidTransfer()
		require.NoError(t, tr.MarkShipped())
		require.NoError(t, tr.MarkReceived())
		require.True(t, apperror.IsInvalidTransition(tr.MarkCancelled()))

		tr = newValidTransfer()
		require.NoError(t, tr.MarkCancelled())
		require.True(t, apperror.IsInvalidTransition(tr.MarkCancelled()))
	})
}
