package coredoc

// Lamport is a logical clock value. Every operation carries a Lamport
// timestamp that is >= 1 + max(lamport of its dependencies); ties in
// causal ordering comparisons are broken first by Lamport, then by peer.
type Lamport uint32

// NextLamport computes the Lamport timestamp for a new operation given the
// Lamport timestamps of its dependencies. With no dependencies the result
// is 0, the root Lamport value.
func NextLamport(depLamports ...Lamport) Lamport {
	var max Lamport
	for _, l := range depLamports {
		if l+1 > max {
			max = l + 1
		}
	}
	return max
}

// CompareCausal implements the engine-wide tie-break rule used by the
// tracker's sibling ordering, the map diff calculator's LWW winner
// selection, and tree-move conflict resolution: higher Lamport wins, ties
// broken by higher peer id. It returns a negative number if (aLamport,
// aPeer) sorts before (bLamport, bPeer), zero if equal, positive otherwise.
func CompareCausal(aLamport Lamport, aPeer PeerID, bLamport Lamport, bPeer PeerID) int {
	switch {
	case aLamport < bLamport:
		return -1
	case aLamport > bLamport:
		return 1
	case aPeer < bPeer:
		return -1
	case aPeer > bPeer:
		return 1
	default:
		return 0
	}
}
