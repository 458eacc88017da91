// Package conduit implements the channel-multiplexed peer-to-peer message
// bus: per-channel single-subscriber dispatch, unicast delivery, and a
// DHT-style put/get store.
package conduit

import (
	"errors"

	"github.com/lightchain-sdp/node/model"
)

// Channel names a logical sub-network. Exactly one engine may register
// per (node, channel).
type Channel string

// Well-known channels.
const (
	ChannelBroadcast       Channel = "broadcast-channel"
	ChannelProposedBlocks  Channel = "proposed-blocks"
	ChannelValidatedBlocks Channel = "validated-blocks"
	ChannelValidatedTxs    Channel = "validated-transactions"
	ChannelProposalsVoting Channel = "proposals-voting"
)

// ErrChannelTaken is returned by Register when a channel already has a
// registered engine at this node.
var ErrChannelTaken = errors.New("conduit: channel already registered")

// ErrUnknownPeer is returned by Conduit.Unicast when the target node is
// not known to the transport.
var ErrUnknownPeer = errors.New("conduit: unknown peer")

// ErrNotFound is returned by Conduit.Get when no entity is stored under
// the requested id.
var ErrNotFound = errors.New("conduit: entity not found")

// Engine is the minimal capability a conduit needs from a registered
// consumer: deliver one entity for processing.
type Engine interface {
	Process(e model.Entity) error
}

// Conduit is the per-channel handle a registered Engine uses to send.
type Conduit interface {
	// Unicast sends e to targetNodeID. It returns once the transport layer
	// has accepted the send, not once the peer has received it.
	Unicast(e model.Entity, targetNodeID string) error
	// Put stores e in the DHT.
	Put(e model.Entity) error
	// Get fetches the entity with id from the DHT.
	Get(id model.Identifier) (model.Entity, error)
	// AllEntities returns every entity currently held in the DHT.
	AllEntities() []model.Entity
}

// Network exposes per-channel engine registration and this node's id.
type Network interface {
	ID() string
	Register(engine Engine, channel Channel) (Conduit, error)
}
