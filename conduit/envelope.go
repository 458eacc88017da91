package conduit

import (
	"encoding/json"
	"fmt"

	"github.com/lightchain-sdp/node/model"
)

// envelope is the wire representation of one entity: a kind tag plus its
// JSON-encoded body. In the framed (originId, channel, type, payload)
// message, type is the frame kind (see wireMessage) and, for entity and
// dht_get_reply frames, payload is the marshaled envelope.
type envelope struct {
	Kind model.EntityKind `json:"kind"`
	Body json.RawMessage  `json:"body"`
}

type wireTransaction struct {
	RefBlockID model.Identifier `json:"ref_block_id"`
	Sender     model.Identifier `json:"sender"`
	Receiver   model.Identifier `json:"receiver"`
	Amount     uint64           `json:"amount"`
	Signature  model.Signature  `json:"signature"`
}

type wireValidatedTransaction struct {
	wireTransaction
	Certificates []model.Signature `json:"certificates"`
}

type wireBlock struct {
	Header            model.BlockHeader          `json:"header"`
	Payload           []wireValidatedTransaction `json:"payload"`
	ProposerSignature model.Signature            `json:"proposer_signature"`
	Certificates      []model.Signature          `json:"certificates"`
}

type wireOpaque struct {
	DeclaredKind model.EntityKind `json:"declared_kind"`
	Raw          []byte           `json:"raw"`
}

// encodeEntity marshals e into a transport envelope.
func encodeEntity(e model.Entity) ([]byte, error) {
	var body []byte
	var err error

	switch v := e.(type) {
	case *model.Transaction:
		body, err = json.Marshal(wireTransaction{
			RefBlockID: v.RefBlockID,
			Sender:     v.Sender,
			Receiver:   v.Receiver,
			Amount:     v.Amount,
			Signature:  v.Signature,
		})
	case *model.ValidatedTransaction:
		body, err = json.Marshal(wireValidatedTransaction{
			wireTransaction: wireTransaction{
				RefBlockID: v.RefBlockID,
				Sender:     v.Sender,
				Receiver:   v.Receiver,
				Amount:     v.Amount,
				Signature:  v.Signature,
			},
			Certificates: v.Certificates,
		})
	case *model.Block:
		payload := make([]wireValidatedTransaction, len(v.Proposal.Payload))
		for i, vt := range v.Proposal.Payload {
			payload[i] = wireValidatedTransaction{
				wireTransaction: wireTransaction{
					RefBlockID: vt.RefBlockID,
					Sender:     vt.Sender,
					Receiver:   vt.Receiver,
					Amount:     vt.Amount,
					Signature:  vt.Signature,
				},
				Certificates: vt.Certificates,
			}
		}
		body, err = json.Marshal(wireBlock{
			Header:            v.Proposal.Header,
			Payload:           payload,
			ProposerSignature: v.Proposal.ProposerSignature,
			Certificates:      v.Certificates,
		})
	case *model.OpaqueEntity:
		body, err = json.Marshal(wireOpaque{DeclaredKind: v.DeclaredKind, Raw: v.Raw})
	default:
		return nil, fmt.Errorf("conduit: cannot encode entity kind %q", e.Kind())
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(envelope{Kind: e.Kind(), Body: body})
}

// decodeEntity unmarshals a transport envelope back into an Entity.
func decodeEntity(data []byte) (model.Entity, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	switch env.Kind {
	case model.KindTransaction:
		var w wireTransaction
		if err := json.Unmarshal(env.Body, &w); err != nil {
			return nil, err
		}
		return &model.Transaction{
			RefBlockID: w.RefBlockID,
			Sender:     w.Sender,
			Receiver:   w.Receiver,
			Amount:     w.Amount,
			Signature:  w.Signature,
		}, nil
	case model.KindValidatedTransaction:
		var w wireValidatedTransaction
		if err := json.Unmarshal(env.Body, &w); err != nil {
			return nil, err
		}
		return &model.ValidatedTransaction{
			Transaction: model.Transaction{
				RefBlockID: w.RefBlockID,
				Sender:     w.Sender,
				Receiver:   w.Receiver,
				Amount:     w.Amount,
				Signature:  w.Signature,
			},
			Certificates: w.Certificates,
		}, nil
	case model.KindBlock:
		var w wireBlock
		if err := json.Unmarshal(env.Body, &w); err != nil {
			return nil, err
		}
		payload := make([]model.ValidatedTransaction, len(w.Payload))
		for i, vt := range w.Payload {
			payload[i] = model.ValidatedTransaction{
				Transaction: model.Transaction{
					RefBlockID: vt.RefBlockID,
					Sender:     vt.Sender,
					Receiver:   vt.Receiver,
					Amount:     vt.Amount,
					Signature:  vt.Signature,
				},
				Certificates: vt.Certificates,
			}
		}
		return &model.Block{
			Proposal: model.BlockProposal{
				Header:            w.Header,
				Payload:           payload,
				ProposerSignature: w.ProposerSignature,
			},
			Certificates: w.Certificates,
		}, nil
	default:
		var w wireOpaque
		if err := json.Unmarshal(env.Body, &w); err != nil {
			return nil, err
		}
		return &model.OpaqueEntity{DeclaredKind: w.DeclaredKind, Raw: w.Raw}, nil
	}
}
