package config

import (
	"testing"

	"github.com/lightchain-sdp/node/crypto"
	"github.com/stretchr/testify/require"
)

func TestGenesisSnapshotSortsAccountsByID(t *testing.T) {
	var cfg Config
	for i := 0; i < 5; i++ {
		_, pub, err := crypto.GenerateKeyPair()
		require.NoError(t, err)
		cfg.Genesis.Accounts = append(cfg.Genesis.Accounts, GenesisAccount{
			PubKey:  pub.Hex(),
			Balance: uint64(i),
			Stake:   MinStake,
		})
	}

	snap, err := GenesisSnapshot(&cfg)
	require.NoError(t, err)
	require.Len(t, snap.Accounts, 5)
	require.True(t, snap.ReferenceBlockID.IsZero())
	require.Equal(t, uint64(0), snap.ReferenceHeight)

	for i := 1; i < len(snap.Accounts); i++ {
		require.False(t, snap.Accounts[i].ID.Less(snap.Accounts[i-1].ID))
	}
}

func TestGenesisSnapshotRejectsBadPubKey(t *testing.T) {
	cfg := Config{Genesis: GenesisConfig{Accounts: []GenesisAccount{{PubKey: "not-hex"}}}}
	_, err := GenesisSnapshot(&cfg)
	require.Error(t, err)
}
