package adminapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaintrace/indexer/common"
	"github.com/chaintrace/indexer/internal/store"
	"github.com/chaintrace/indexer/internal/watchset"
)

func TestAddAccountAddsToStoreAndWatchSet(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, mem.EnsureChain(context.Background(), 1, 1))
	ws := watchset.New()
	h := &Handler{Store: mem, Watch: ws}

	srv := httptest.NewServer(h.NewMux())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/chains/1/accounts/0x0000000000000000000000000000000000000001", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	accounts, err := mem.Accounts(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.True(t, ws.Contains(1, common.HexToAddress("0x0000000000000000000000000000000000000001")))
}

func TestAddAccountRejectsInvalidAddress(t *testing.T) {
	mem := store.NewMemory()
	h := &Handler{Store: mem, Watch: watchset.New()}
	srv := httptest.NewServer(h.NewMux())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/chains/1/accounts/not-an-address", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddAccountRejectsInvalidChainID(t *testing.T) {
	mem := store.NewMemory()
	h := &Handler{Store: mem, Watch: watchset.New()}
	srv := httptest.NewServer(h.NewMux())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/chains/not-a-number/accounts/0x0000000000000000000000000000000000000001", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
