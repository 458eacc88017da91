package ingest

import (
	"sort"
	"sync"

	"github.com/lightchain-sdp/node/model"
)

// stripeCount is the number of independent lock stripes the engine
// serializes entity processing over. Two entities whose ids fall in the
// same stripe are processed one after another; entities in different
// stripes run fully in parallel. Striping is approximate rather than
// per-id, traded for a bounded number of mutexes.
const stripeCount = 256

// idStripes provides a per-id critical section: the dedup check and the
// cross-index commit for one entity id must run under the same stripe
// lock so that two concurrent Process calls for the same id produce
// exactly one acceptance path.
type idStripes struct {
	mus [stripeCount]sync.Mutex
}

func (s *idStripes) lock(id model.Identifier) func() {
	mu := &s.mus[id[0]]
	mu.Lock()
	return mu.Unlock
}

// lockMany locks every stripe touched by ids, deduplicated and always in
// ascending stripe order, so callers that lock overlapping id sets (a
// block committing alongside one of its own payload transactions) can
// never deadlock against each other regardless of call order. A block's
// commit touches both its own id and every payload transaction's id,
// so processBlock must hold every one of those stripes, not just its
// own.
func (s *idStripes) lockMany(ids ...model.Identifier) func() {
	seen := make(map[byte]struct{}, len(ids))
	for _, id := range ids {
		seen[id[0]] = struct{}{}
	}
	stripes := make([]int, 0, len(seen))
	for stripe := range seen {
		stripes = append(stripes, int(stripe))
	}
	sort.Ints(stripes)

	for _, stripe := range stripes {
		s.mus[stripe].Lock()
	}
	return func() {
		for i := len(stripes) - 1; i >= 0; i-- {
			s.mus[stripes[i]].Unlock()
		}
	}
}
