package orchestrator

// claimFeature atomically assigns featureID to agentIndex if no other
// agent currently holds it. Returns false if the feature is already
// claimed by a different agent.
func (ps *projectState) claimFeature(featureID string, agentIndex int) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if owner, ok := ps.claims[featureID]; ok && owner != agentIndex {
		return false
	}
	ps.claims[featureID] = agentIndex
	return true
}

// releaseFeature drops a claim if agentIndex is still its holder. A stale
// release (the feature was never claimed, or was reclaimed by someone
// else in the meantime) is a no-op.
func (ps *projectState) releaseFeature(featureID string, agentIndex int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if owner, ok := ps.claims[featureID]; ok && owner == agentIndex {
		delete(ps.claims, featureID)
	}
}

// releaseAllFor drops every claim held by agentIndex, used when a session
// exits without having released a specific feature.
func (ps *projectState) releaseAllFor(agentIndex int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for fid, owner := range ps.claims {
		if owner == agentIndex {
			delete(ps.claims, fid)
		}
	}
}

// claimSnapshot returns a copy of the current claim table for
// persistence or broadcast.
func (ps *projectState) claimSnapshot() map[string]int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make(map[string]int, len(ps.claims))
	for k, v := range ps.claims {
		out[k] = v
	}
	return out
}

// isClaimed reports whether featureID is currently held by any agent.
func (ps *projectState) isClaimed(featureID string) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	_, ok := ps.claims[featureID]
	return ok
}
