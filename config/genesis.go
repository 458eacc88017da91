package config

import (
	"fmt"

	appcrypto "github.com/lightchain-sdp/node/crypto"
	"github.com/lightchain-sdp/node/model"
	"github.com/lightchain-sdp/node/state"
)

// GenesisSnapshot builds the state.Snapshot at height 0 from cfg.Genesis:
// one account per entry, keyed by the hash of its public key — derived,
// not chosen, so two nodes started from the same genesis config always
// agree on account ids.
func GenesisSnapshot(cfg *Config) (state.Snapshot, error) {
	accounts := make([]state.Account, 0, len(cfg.Genesis.Accounts))
	for i, ga := range cfg.Genesis.Accounts {
		pub, err := appcrypto.PubKeyFromHex(ga.PubKey)
		if err != nil {
			return state.Snapshot{}, fmt.Errorf("genesis.accounts[%d]: %w", i, err)
		}
		accounts = append(accounts, state.Account{
			ID:          model.Hash(pub),
			PublicKey:   pub,
			Balance:     ga.Balance,
			Stake:       ga.Stake,
			LastBlockID: model.ZeroIdentifier,
		})
	}

	for i := 1; i < len(accounts); i++ {
		for j := i; j > 0 && accounts[j].ID.Less(accounts[j-1].ID); j-- {
			accounts[j], accounts[j-1] = accounts[j-1], accounts[j]
		}
	}

	genesis := state.Snapshot{
		ReferenceBlockID: model.ZeroIdentifier,
		ReferenceHeight:  0,
		Accounts:         accounts,
	}
	return genesis, nil
}
