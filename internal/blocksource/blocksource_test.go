package blocksource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaintrace/indexer/common"
	"github.com/chaintrace/indexer/internal/engine"
)

func TestMemoryGetBlockNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.GetBlock(context.Background(), 1, 5)
	require.Error(t, err)
	assert.True(t, engine.Is(err, engine.KindTransient))
}

func TestMemoryPutAndGetAdvancesTip(t *testing.T) {
	m := NewMemory()
	m.PutBlock(1, Block{Number: 10})

	tip, err := m.Tip(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), tip)

	b, err := m.GetBlock(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), b.Number)
}

func TestMemorySetTipIndependentOfBlocks(t *testing.T) {
	m := NewMemory()
	m.SetTip(1, 100)

	tip, err := m.Tip(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), tip)

	_, err = m.GetBlock(context.Background(), 1, 100)
	assert.Error(t, err)
}

func TestExtractedAddressesSkipsTopicZero(t *testing.T) {
	from := common.BytesToAddress([]byte{1})
	to := common.BytesToAddress([]byte{2})
	contract := common.BytesToAddress([]byte{3})
	sender := common.BytesToAddress([]byte{4})
	sig := common.BytesToHash([]byte{0xAA})

	var topicFromSender common.Hash
	copy(topicFromSender[12:], sender.Bytes())

	tx := Transaction{
		From: from,
		To:   &to,
		Logs: []Log{{
			Address: contract,
			Topics:  []common.Hash{sig, topicFromSender},
		}},
	}

	got := ExtractedAddresses(tx)
	assert.Contains(t, got, from)
	assert.Contains(t, got, to)
	assert.Contains(t, got, contract)
	assert.Contains(t, got, sender)
	assert.NotContains(t, got, common.BytesToAddress(sig.Bytes()))
}

func TestExtractedAddressesContractCreation(t *testing.T) {
	from := common.BytesToAddress([]byte{1})
	tx := Transaction{From: from, To: nil}
	assert.Equal(t, []common.Address{from}, ExtractedAddresses(tx))
}
