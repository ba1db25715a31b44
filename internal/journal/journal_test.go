package journal

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/ledger"
)

func testBatch(id string) ledger.Batch {
	return ledger.Batch{IntentID: id, Mutations: []ledger.Mutation{
		ledger.SetWallet(domain.Wallet{Balance: decimal.NewFromInt(10)}),
	}}
}

func TestJournal_LifecycleSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir, nil)
	require.NoError(t, err)

	before := BeforeImage{Wallet: &domain.Wallet{Balance: decimal.NewFromInt(25)}}
	applied, err := j.Prepare(testBatch("a"), before)
	require.NoError(t, err)
	require.NoError(t, j.MarkApplied(applied))

	rolled, err := j.Prepare(testBatch("b"), before)
	require.NoError(t, err)
	require.NoError(t, j.MarkRolledBack(rolled, errors.New("wallet write failed")))

	_, err = j.Prepare(testBatch("c"), before)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	reopened, err := Open(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	status, ok := reopened.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, StatusApplied, status)

	status, ok = reopened.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, StatusRolledBack, status)

	pending := reopened.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "c", pending[0].ID)
	require.NotNil(t, pending[0].Before.Wallet)
	assert.True(t, pending[0].Before.Wallet.Balance.Equal(decimal.NewFromInt(25)))
}

func TestJournal_RejectsReappliedIntent(t *testing.T) {
	j, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	defer j.Close()

	rec, err := j.Prepare(testBatch("dup"), BeforeImage{})
	require.NoError(t, err)
	require.NoError(t, j.MarkApplied(rec))

	_, err = j.Prepare(testBatch("dup"), BeforeImage{})
	assert.Error(t, err)

	_, ok := j.Lookup("missing")
	assert.False(t, ok)
}

func TestJournal_CheckpointCompactsAndRetains(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir, nil, WithCheckpointEvery(4), WithRetain(3))
	require.NoError(t, err)

	before := BeforeImage{Wallet: &domain.Wallet{Balance: decimal.NewFromInt(25)}}
	pending, err := j.Prepare(testBatch("pending"), before)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		batch := testBatch(fmt.Sprintf("t%d", i))
		batch.Fingerprint = fmt.Sprintf("fp%d", i)
		rec, err := j.Prepare(batch, before)
		require.NoError(t, err)
		require.NoError(t, j.MarkApplied(rec))
	}
	require.NoError(t, j.Checkpoint())
	require.NoError(t, j.Close())

	reopened, err := Open(dir, nil, WithRetain(3))
	require.NoError(t, err)
	defer reopened.Close()

	for _, id := range []string{"t0", "t1", "t2"} {
		_, ok := reopened.Lookup(id)
		assert.False(t, ok, id)
	}
	rec, ok := reopened.Get("t5")
	require.True(t, ok)
	assert.Equal(t, StatusApplied, rec.Status)
	assert.Equal(t, "fp5", rec.Batch.Fingerprint)
	assert.Nil(t, rec.Before.Wallet, "resolved intents drop their before-image")

	left := reopened.Pending()
	require.Len(t, left, 1)
	assert.Equal(t, pending.ID, left[0].ID)
	require.NotNil(t, left[0].Before.Wallet, "pending intents keep their before-image")
}

func TestJournal_ReplayAfterCheckpoint(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir, nil, WithCheckpointEvery(2))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		rec, err := j.Prepare(testBatch(fmt.Sprintf("r%d", i)), BeforeImage{})
		require.NoError(t, err)
		if i < 4 {
			require.NoError(t, j.MarkApplied(rec))
		}
	}
	require.NoError(t, j.Close())

	reopened, err := Open(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	for i := 0; i < 4; i++ {
		status, ok := reopened.Lookup(fmt.Sprintf("r%d", i))
		require.True(t, ok)
		assert.Equal(t, StatusApplied, status)
	}
	pending := reopened.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "r4", pending[0].ID)
}
