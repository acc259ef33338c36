package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/bifrost/internal/store"
)

func TestNewPostgresStore_PanicsOnNilPool(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { store.NewPostgresStore(nil) })
}

func TestStoredBatch_Decode(t *testing.T) {
	t.Parallel()

	t.Run("Should decode a payload", func(t *testing.T) {
		t.Parallel()
		b := &store.StoredBatch{ID: 1, Payload: []byte(`{"account_id":"12001","revision":"42","visitors":[]}`)}

		batch, err := b.Decode()
		require.NoError(t, err)
		assert.Equal(t, "12001", batch.AccountID)
		assert.Equal(t, "42", batch.Revision)
	})

	t.Run("Should report corrupted payloads", func(t *testing.T) {
		t.Parallel()
		b := &store.StoredBatch{ID: 7, Payload: []byte(`{`)}

		_, err := b.Decode()
		assert.ErrorContains(t, err, "stored batch 7")
	})
}
