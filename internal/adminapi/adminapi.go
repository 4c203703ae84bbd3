// Package adminapi exposes the single add_account boundary operation over
// plain net/http, standing in for the real authenticated admin service
// that is out of scope for this module.
package adminapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/chaintrace/indexer/common"
	"github.com/chaintrace/indexer/internal/store"
	"github.com/chaintrace/indexer/internal/watchset"
	"github.com/chaintrace/indexer/log"
)

// Handler wires POST /chains/{chain_id}/accounts/{address} to the
// WatchSet and Store: the store gets the durable account row, the
// WatchSet gets the in-memory addition that wakes the chain's supervisor.
type Handler struct {
	Store store.Interface
	Watch *watchset.WatchSet
	Log   log.Logger
}

// NewMux returns an http.ServeMux with the add_account route registered.
func (h *Handler) NewMux() *http.ServeMux {
	if h.Log == nil {
		h.Log = log.Root()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chains/{chain_id}/accounts/{address}", h.addAccount)
	return mux
}

type addAccountResponse struct {
	Added bool `json:"added"`
}

func (h *Handler) addAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	chainID64, err := strconv.ParseUint(r.PathValue("chain_id"), 10, 32)
	if err != nil {
		http.Error(w, "invalid chain_id", http.StatusBadRequest)
		return
	}
	chainID := uint32(chainID64)

	if !common.IsHexAddress(r.PathValue("address")) {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}
	address := common.HexToAddress(r.PathValue("address"))

	added, err := h.Store.AddAccount(ctx, chainID, address)
	if err != nil {
		h.Log.Error("add_account store write failed", "chain", chainID, "address", address, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if added {
		h.Watch.Add(chainID, address)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(addAccountResponse{Added: added})
}
