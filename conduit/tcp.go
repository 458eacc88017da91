package conduit

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lightchain-sdp/node/model"
)

// DefaultMaxPeers bounds simultaneous peer connections per node.
const DefaultMaxPeers = 50

// TCPNetwork is the production Network implementation: nodes exchange
// length-prefixed JSON frames over TCP, optionally behind mTLS.
type TCPNetwork struct {
	nodeID     string
	listenAddr string
	tlsConfig  *tls.Config // nil → plain TCP
	maxPeers   int

	mu            sync.RWMutex
	peers         map[string]*peer
	registrations map[Channel]Engine
	dht           map[model.Identifier]model.Entity

	listener net.Listener
	stopCh   chan struct{}
}

// NewTCPNetwork creates a TCPNetwork that will listen on listenAddr once
// Start is called. tlsCfg may be nil for plain TCP.
func NewTCPNetwork(nodeID, listenAddr string, tlsCfg *tls.Config) *TCPNetwork {
	return &TCPNetwork{
		nodeID:        nodeID,
		listenAddr:    listenAddr,
		tlsConfig:     tlsCfg,
		maxPeers:      DefaultMaxPeers,
		peers:         make(map[string]*peer),
		registrations: make(map[Channel]Engine),
		dht:           make(map[model.Identifier]model.Entity),
		stopCh:        make(chan struct{}),
	}
}

// ID returns this node's identifier.
func (n *TCPNetwork) ID() string { return n.nodeID }

// Register binds engine to channel exclusively. A second registration on
// the same channel fails.
func (n *TCPNetwork) Register(engine Engine, channel Channel) (Conduit, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, taken := n.registrations[channel]; taken {
		return nil, fmt.Errorf("%w: %s", ErrChannelTaken, channel)
	}
	n.registrations[channel] = engine
	return &tcpConduit{net: n, channel: channel}, nil
}

// Start begins accepting connections.
func (n *TCPNetwork) Start() error {
	var ln net.Listener
	var err error
	if n.tlsConfig != nil {
		ln, err = tls.Listen("tcp", n.listenAddr, n.tlsConfig)
	} else {
		ln, err = net.Listen("tcp", n.listenAddr)
	}
	if err != nil {
		return fmt.Errorf("conduit: listen %s: %w", n.listenAddr, err)
	}
	n.listener = ln
	go n.acceptLoop()
	return nil
}

// Stop shuts down the listener and closes every peer connection. Stop is
// idempotent.
func (n *TCPNetwork) Stop() error {
	select {
	case <-n.stopCh:
		return nil
	default:
		close(n.stopCh)
	}
	if n.listener != nil {
		n.listener.Close()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range n.peers {
		p.close()
	}
	return nil
}

// AddPeer dials addr and registers the resulting connection under id.
func (n *TCPNetwork) AddPeer(id, addr string) error {
	p, err := dialPeer(id, addr)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.peers[id] = p
	n.mu.Unlock()
	go n.readLoop(p)

	return p.send(wireMessage{OriginID: n.nodeID, Type: frameHello})
}

func (n *TCPNetwork) acceptLoop() {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.stopCh:
				return
			default:
				log.Printf("[conduit] accept error: %v", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}
		}
		n.mu.RLock()
		count := len(n.peers)
		n.mu.RUnlock()
		if count >= n.maxPeers {
			log.Printf("[conduit] max peers (%d) reached, rejecting %s", n.maxPeers, conn.RemoteAddr())
			conn.Close()
			continue
		}
		remote := conn.RemoteAddr().String()
		p := newPeer(remote, remote, conn)
		n.mu.Lock()
		n.peers[p.id] = p
		n.mu.Unlock()
		go n.readLoop(p)
	}
}

func (n *TCPNetwork) readLoop(p *peer) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[conduit] readLoop panic from %s: %v", p.id, r)
		}
		p.close()
		n.mu.Lock()
		delete(n.peers, p.id)
		n.mu.Unlock()
	}()
	for {
		msg, err := p.receive()
		if err != nil {
			return
		}
		n.dispatch(p, msg)
	}
}

// dispatch locates the engine registered on msg.Channel and delivers
// Process(entity) exactly once. Every dispatched frame gets a
// correlation id so the log lines dispatch writes for it (decode,
// process, DHT reply) can be grepped together.
func (n *TCPNetwork) dispatch(p *peer, msg wireMessage) {
	corrID := uuid.NewString()
	switch msg.Type {
	case frameHello:
		return
	case frameDHTGet:
		var id model.Identifier
		if err := json.Unmarshal(msg.Payload, &id); err != nil {
			log.Printf("[conduit %s] bad dht_get payload from %s: %v", corrID, p.id, err)
			return
		}
		n.mu.RLock()
		entity, ok := n.dht[id]
		n.mu.RUnlock()
		if !ok {
			return
		}
		body, err := encodeEntity(entity)
		if err != nil {
			log.Printf("[conduit %s] encode dht reply: %v", corrID, err)
			return
		}
		if err := p.send(wireMessage{OriginID: n.nodeID, Channel: msg.Channel, Type: frameDHTGetReply, Payload: body}); err != nil {
			log.Printf("[conduit %s] send dht reply to %s: %v", corrID, p.id, err)
		}
		return
	case frameEntity:
		n.mu.RLock()
		engine, ok := n.registrations[msg.Channel]
		n.mu.RUnlock()
		if !ok {
			log.Printf("[conduit %s] no engine registered on channel %s, dropping message from %s", corrID, msg.Channel, p.id)
			return
		}
		entity, err := decodeEntity(msg.Payload)
		if err != nil {
			log.Printf("[conduit %s] decode entity from %s: %v", corrID, p.id, err)
			return
		}
		if err := engine.Process(entity); err != nil {
			log.Printf("[conduit %s] process entity from %s on %s: %v", corrID, p.id, msg.Channel, err)
		}
	}
}

// tcpConduit is the per-channel handle returned by Register.
type tcpConduit struct {
	net     *TCPNetwork
	channel Channel
}

func (c *tcpConduit) Unicast(e model.Entity, targetNodeID string) error {
	c.net.mu.RLock()
	p, ok := c.net.peers[targetNodeID]
	c.net.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, targetNodeID)
	}
	body, err := encodeEntity(e)
	if err != nil {
		return err
	}
	return p.send(wireMessage{OriginID: c.net.nodeID, Channel: c.channel, Type: frameEntity, Payload: body})
}

func (c *tcpConduit) Put(e model.Entity) error {
	c.net.mu.Lock()
	c.net.dht[e.ID()] = e
	c.net.mu.Unlock()
	return nil
}

func (c *tcpConduit) Get(id model.Identifier) (model.Entity, error) {
	c.net.mu.RLock()
	defer c.net.mu.RUnlock()
	e, ok := c.net.dht[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (c *tcpConduit) AllEntities() []model.Entity {
	c.net.mu.RLock()
	defer c.net.mu.RUnlock()
	out := make([]model.Entity, 0, len(c.net.dht))
	for _, e := range c.net.dht {
		out = append(out, e)
	}
	return out
}
