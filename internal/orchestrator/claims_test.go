package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectState_ClaimFeature(t *testing.T) {
	ps := newProjectState()

	assert.True(t, ps.claimFeature("f1", 0))
	assert.False(t, ps.claimFeature("f1", 1), "a second agent must not steal an existing claim")
	assert.True(t, ps.claimFeature("f1", 0), "the same agent re-claiming its own feature is a no-op success")
}

func TestProjectState_ReleaseFeature(t *testing.T) {
	ps := newProjectState()
	ps.claimFeature("f1", 0)

	ps.releaseFeature("f1", 1) // stale release by a different agent, no-op
	assert.True(t, ps.isClaimed("f1"))

	ps.releaseFeature("f1", 0)
	assert.False(t, ps.isClaimed("f1"))
}

func TestProjectState_ReleaseAllFor(t *testing.T) {
	ps := newProjectState()
	ps.claimFeature("f1", 0)
	ps.claimFeature("f2", 0)
	ps.claimFeature("f3", 1)

	ps.releaseAllFor(0)

	assert.False(t, ps.isClaimed("f1"))
	assert.False(t, ps.isClaimed("f2"))
	assert.True(t, ps.isClaimed("f3"))
}

func TestProjectState_ClaimSnapshotIsACopy(t *testing.T) {
	ps := newProjectState()
	ps.claimFeature("f1", 0)

	snap := ps.claimSnapshot()
	snap["f2"] = 9

	assert.False(t, ps.isClaimed("f2"), "mutating the snapshot must not leak back into live state")
}
