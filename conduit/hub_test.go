package conduit

import (
	"errors"
	"testing"

	"github.com/lightchain-sdp/node/model"
	"github.com/stretchr/testify/require"
)

type recordingEngine struct {
	processed []model.Entity
}

func newRecordingEngine() *recordingEngine {
	return &recordingEngine{}
}

func (r *recordingEngine) Process(e model.Entity) error {
	r.processed = append(r.processed, e)
	return nil
}

func sampleTxEntity(seed string) *model.Transaction {
	return &model.Transaction{
		Sender:   model.Hash([]byte(seed + "-s")),
		Receiver: model.Hash([]byte(seed + "-r")),
		Amount:   7,
	}
}

func TestHubRegisterAndUnicastDeliversExactlyOnce(t *testing.T) {
	hub := NewHub()
	engine := newRecordingEngine()
	netA := hub.NodeNetwork("nodeA")
	_, err := netA.Register(engine, ChannelValidatedTxs)
	require.NoError(t, err)

	netB := hub.NodeNetwork("nodeB")
	conduitB, err := netB.Register(newRecordingEngine(), ChannelValidatedTxs)
	require.NoError(t, err)

	tx := sampleTxEntity("one")
	require.NoError(t, conduitB.Unicast(tx, "nodeA"))
	require.Len(t, engine.processed, 1)
	require.Equal(t, tx.ID(), engine.processed[0].ID())
}

func TestHubSecondRegistrationOnSameChannelFails(t *testing.T) {
	hub := NewHub()
	net := hub.NodeNetwork("node1")
	_, err := net.Register(newRecordingEngine(), ChannelBroadcast)
	require.NoError(t, err)

	_, err = net.Register(newRecordingEngine(), ChannelBroadcast)
	require.True(t, errors.Is(err, ErrChannelTaken))
}

func TestHubUnicastToUnknownPeerFails(t *testing.T) {
	hub := NewHub()
	conduit, err := hub.NodeNetwork("solo").Register(newRecordingEngine(), ChannelBroadcast)
	require.NoError(t, err)

	err = conduit.Unicast(sampleTxEntity("x"), "ghost")
	require.True(t, errors.Is(err, ErrUnknownPeer))
}

func TestHubChannelIsolation(t *testing.T) {
	hub := NewHub()
	engineValidated := newRecordingEngine()
	engineProposed := newRecordingEngine()
	netTarget := hub.NodeNetwork("target")
	_, err := netTarget.Register(engineValidated, ChannelValidatedTxs)
	require.NoError(t, err)
	_, err = netTarget.Register(engineProposed, ChannelProposedBlocks)
	require.NoError(t, err)

	sender := hub.NodeNetwork("sender")
	conduitValidated, err := sender.Register(newRecordingEngine(), ChannelValidatedTxs)
	require.NoError(t, err)

	tx := sampleTxEntity("isolated")
	require.NoError(t, conduitValidated.Unicast(tx, "target"))

	require.Len(t, engineValidated.processed, 1)
	require.Empty(t, engineProposed.processed)
}

func TestHubPutGetAllEntities(t *testing.T) {
	hub := NewHub()
	conduit, err := hub.NodeNetwork("n").Register(newRecordingEngine(), ChannelBroadcast)
	require.NoError(t, err)

	tx := sampleTxEntity("stored")
	require.NoError(t, conduit.Put(tx))

	got, err := conduit.Get(tx.ID())
	require.NoError(t, err)
	require.Equal(t, tx.ID(), got.ID())

	_, err = conduit.Get(model.Hash([]byte("missing")))
	require.True(t, errors.Is(err, ErrNotFound))

	all := conduit.AllEntities()
	require.Len(t, all, 1)
}

func TestEnvelopeRoundtripsTxValidatedTxAndBlock(t *testing.T) {
	tx := sampleTxEntity("envelope")
	data, err := encodeEntity(tx)
	require.NoError(t, err)
	decoded, err := decodeEntity(data)
	require.NoError(t, err)
	require.Equal(t, tx.ID(), decoded.ID())

	vt := &model.ValidatedTransaction{Transaction: *tx, Certificates: []model.Signature{{1, 2}}}
	data, err = encodeEntity(vt)
	require.NoError(t, err)
	decoded, err = decodeEntity(data)
	require.NoError(t, err)
	require.Equal(t, vt.ID(), decoded.ID())

	block := &model.Block{
		Proposal: model.BlockProposal{
			Header: model.BlockHeader{
				Height:            1,
				PreviousBlockID:   model.ZeroIdentifier,
				ProposerID:        model.Hash([]byte("p")),
				PayloadMerkleRoot: model.Hash([]byte("root")),
			},
			Payload: []model.ValidatedTransaction{*vt},
		},
		Certificates: []model.Signature{{9}},
	}
	data, err = encodeEntity(block)
	require.NoError(t, err)
	decoded, err = decodeEntity(data)
	require.NoError(t, err)
	require.Equal(t, block.ID(), decoded.ID())
}
