package conduit

import (
	"fmt"
	"sync"

	"github.com/lightchain-sdp/node/model"
)

// registrationKey identifies one (nodeId, channel) registration slot.
type registrationKey struct {
	nodeID  string
	channel Channel
}

// Hub is an in-process Network multiplexer used for integration testing.
// It holds a registry (nodeId, channel) → engine and performs unicast as
// a direct call into the target's Process on the caller's goroutine.
type Hub struct {
	mu            sync.RWMutex
	registrations map[registrationKey]Engine
	dht           map[model.Identifier]model.Entity
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		registrations: make(map[registrationKey]Engine),
		dht:           make(map[model.Identifier]model.Entity),
	}
}

// NodeNetwork returns the Network view of the hub for a given node id.
// Every node sharing a Hub sees the same registry and DHT.
func (h *Hub) NodeNetwork(nodeID string) Network {
	return &hubNetwork{hub: h, nodeID: nodeID}
}

// register binds engine to (nodeID, channel). Re-registration on the same
// (node, channel) fails, matching the real network's exclusivity rule.
func (h *Hub) register(nodeID string, engine Engine, channel Channel) (Conduit, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := registrationKey{nodeID: nodeID, channel: channel}
	if _, taken := h.registrations[key]; taken {
		return nil, fmt.Errorf("%w: node %s channel %s", ErrChannelTaken, nodeID, channel)
	}
	h.registrations[key] = engine
	return &hubConduit{hub: h, nodeID: nodeID, channel: channel}, nil
}

// deliver routes entity e on channel to the engine registered for
// (targetNodeID, channel), or ErrUnknownPeer if none is registered.
func (h *Hub) deliver(targetNodeID string, channel Channel, e model.Entity) error {
	h.mu.RLock()
	engine, ok := h.registrations[registrationKey{nodeID: targetNodeID, channel: channel}]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, targetNodeID)
	}
	return engine.Process(e)
}

type hubNetwork struct {
	hub    *Hub
	nodeID string
}

func (n *hubNetwork) ID() string { return n.nodeID }

func (n *hubNetwork) Register(engine Engine, channel Channel) (Conduit, error) {
	return n.hub.register(n.nodeID, engine, channel)
}

type hubConduit struct {
	hub     *Hub
	nodeID  string
	channel Channel
}

func (c *hubConduit) Unicast(e model.Entity, targetNodeID string) error {
	return c.hub.deliver(targetNodeID, c.channel, e)
}

func (c *hubConduit) Put(e model.Entity) error {
	c.hub.mu.Lock()
	c.hub.dht[e.ID()] = e
	c.hub.mu.Unlock()
	return nil
}

func (c *hubConduit) Get(id model.Identifier) (model.Entity, error) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	e, ok := c.hub.dht[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (c *hubConduit) AllEntities() []model.Entity {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	out := make([]model.Entity, 0, len(c.hub.dht))
	for _, e := range c.hub.dht {
		out = append(out, e)
	}
	return out
}
