package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/lightchain-sdp/node/merkle"
	"github.com/lightchain-sdp/node/model"
	"github.com/lightchain-sdp/node/state"
	"github.com/lightchain-sdp/node/store"
)

// Engine accepts an entity for ingestion. Satisfied by *ingest.Engine;
// declared here so rpc does not import ingest just to call one method.
type Engine interface {
	Process(e model.Entity) error
}

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	blocks  *store.Blocks
	pending *store.PendingTransactions
	states  *state.Store
	tree    *merkle.Tree
	engine  Engine
}

// NewHandler creates an RPC Handler.
func NewHandler(blocks *store.Blocks, pending *store.PendingTransactions, states *state.Store, tree *merkle.Tree, engine Engine) *Handler {
	return &Handler{blocks: blocks, pending: pending, states: states, tree: tree, engine: engine}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "getBlockHeight":
		return okResponse(req.ID, h.states.Latest().ReferenceHeight)

	case "getBlock":
		return h.getBlock(req)

	case "getAccount":
		return h.getAccount(req)

	case "getTransaction":
		return h.getTransaction(req)

	case "getMerkleProof":
		return h.getMerkleProof(req)

	case "submitTransaction":
		return h.submitTransaction(req)

	case "submitBlock":
		return h.submitBlock(req)

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

func (h *Handler) getBlock(req Request) Response {
	var params struct {
		ID     string  `json:"id"`
		Height *uint64 `json:"height"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}

	var block *model.Block
	var err error
	switch {
	case params.ID != "":
		var id model.Identifier
		id, err = model.IdentifierFromHex(params.ID)
		if err == nil {
			block, err = h.blocks.ByID(id)
		}
	case params.Height != nil:
		block, err = h.blocks.AtHeight(*params.Height)
	default:
		return errResponse(req.ID, CodeInvalidParams, "id or height is required")
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, block)
}

func (h *Handler) getAccount(req Request) Response {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	id, err := model.IdentifierFromHex(params.ID)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "id: "+err.Error())
	}
	acc, ok := h.states.Latest().Get(id)
	if !ok {
		return errResponse(req.ID, CodeInternalError, "account not found in latest snapshot")
	}
	return okResponse(req.ID, acc)
}

func (h *Handler) getTransaction(req Request) Response {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	id, err := model.IdentifierFromHex(params.ID)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "id: "+err.Error())
	}

	if vt, err := h.pending.Get(id); err == nil {
		return okResponse(req.ID, map[string]any{"status": "pending", "transaction": vt})
	}

	// Not pending: fall back to a linear scan of committed blocks. Good
	// enough for a reference implementation; a production node would
	// maintain a transaction-id index alongside Blocks.
	blocks, err := h.blocks.All()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	for _, b := range blocks {
		for _, vt := range b.Proposal.Payload {
			if vt.ID() == id {
				return okResponse(req.ID, map[string]any{"status": "committed", "block_id": b.ID().String(), "transaction": vt})
			}
		}
	}
	return errResponse(req.ID, CodeInternalError, "transaction not found")
}

// merkleProofResult is the wire shape of a membership proof: the entity
// id and kind plus the proof itself, rather than the full entity (the
// caller asking "is X committed" already holds X or its id).
type merkleProofResult struct {
	EntityID string           `json:"entity_id"`
	Kind     model.EntityKind `json:"kind"`
	Proof    merkle.Proof     `json:"proof"`
}

func (h *Handler) getMerkleProof(req Request) Response {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	id, err := model.IdentifierFromHex(params.ID)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, "id: "+err.Error())
	}
	ae, ok := h.tree.GetByID(id)
	if !ok {
		return errResponse(req.ID, CodeInternalError, "entity not authenticated")
	}
	return okResponse(req.ID, merkleProofResult{EntityID: id.String(), Kind: ae.Kind, Proof: ae.Proof})
}

func (h *Handler) submitTransaction(req Request) Response {
	var vt model.ValidatedTransaction
	if err := json.Unmarshal(req.Params, &vt); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if err := h.engine.Process(&vt); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]string{"id": vt.ID().String()})
}

func (h *Handler) submitBlock(req Request) Response {
	var b model.Block
	if err := json.Unmarshal(req.Params, &b); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if err := h.engine.Process(&b); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]string{"id": b.ID().String()})
}
