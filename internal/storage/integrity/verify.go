package integrity

import "github.com/plateau-io/plateau/internal/domain/event"

// Issue describes one integrity violation found while verifying a platform's
// journal.
type Issue struct {
	Seq    uint64
	Reason string
}

// VerifyChain checks a platform's events for sequence gaps, content hash
// mismatches, and broken chain links. Events must be supplied in ascending
// sequence order starting at sequence 1.
func VerifyChain(events []event.Event) []Issue {
	var issues []Issue
	prevChain := ""
	expectedSeq := uint64(1)
	for _, evt := range events {
		if evt.Seq != expectedSeq {
			issues = append(issues, Issue{Seq: evt.Seq, Reason: "sequence gap"})
			expectedSeq = evt.Seq
		}
		expectedSeq++

		hash, err := EventHash(evt)
		if err != nil {
			issues = append(issues, Issue{Seq: evt.Seq, Reason: "hash: " + err.Error()})
			prevChain = evt.ChainHash
			continue
		}
		if hash != evt.Hash {
			issues = append(issues, Issue{Seq: evt.Seq, Reason: "content hash mismatch"})
		}
		if evt.PrevHash != prevChain {
			issues = append(issues, Issue{Seq: evt.Seq, Reason: "chain link mismatch"})
		}
		chain, err := ChainHash(evt, evt.PrevHash)
		if err != nil {
			issues = append(issues, Issue{Seq: evt.Seq, Reason: "chain hash: " + err.Error()})
		} else if chain != evt.ChainHash {
			issues = append(issues, Issue{Seq: evt.Seq, Reason: "chain hash mismatch"})
		}
		prevChain = evt.ChainHash
	}
	return issues
}
