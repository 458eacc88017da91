package config

// Protocol constants. These are fixed per the protocol, not
// runtime-tunable: changing them would change which blocks and
// transactions this node accepts relative to its peers.
const (
	// ValidatorThreshold (K) is the number of validators assigned to
	// certify a single entity.
	ValidatorThreshold = 5
	// SignatureThreshold is the minimum number of valid, distinct
	// certificates required to accept a block or validated transaction.
	// It must be <= ValidatorThreshold.
	SignatureThreshold = 3
	// MinStake is the stake floor for an account to count as a staked
	// (assignable) validator in a snapshot.
	MinStake = 1_000
	// BlockHeightBits is the bit width of a block height value.
	BlockHeightBits = 64
)
