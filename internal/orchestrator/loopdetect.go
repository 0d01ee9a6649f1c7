package orchestrator

import "strings"

// recordAssistantText appends a non-JSON assistant text message to the
// agent's recent-text window, capped at windowSize entries (oldest
// dropped first).
func (ps *projectState) recordAssistantText(agentIndex int, text string, windowSize int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	hist := append(ps.recentText[agentIndex], text)
	if len(hist) > windowSize {
		hist = hist[len(hist)-windowSize:]
	}
	ps.recentText[agentIndex] = hist
}

// isLooping reports whether the agent's recent-text window looks like it
// is repeating itself: the window is full, and every entry's word-set
// similarity against the first entry exceeds threshold.
func (ps *projectState) isLooping(agentIndex int, windowSize int, threshold float64) bool {
	ps.mu.Lock()
	hist := append([]string(nil), ps.recentText[agentIndex]...)
	ps.mu.Unlock()

	if len(hist) < windowSize {
		return false
	}

	sets := make([]map[string]struct{}, len(hist))
	for i, s := range hist {
		sets[i] = wordSet(s)
	}

	first := sets[0]
	for i := 1; i < len(sets); i++ {
		if wordSetSimilarity(first, sets[i]) <= threshold {
			return false
		}
	}
	return true
}

// wordSet lower-cases and splits s on whitespace, discarding words of
// length <= 2 as too generic to carry similarity signal.
func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len(w) > 2 {
			out[w] = struct{}{}
		}
	}
	return out
}

// wordSetSimilarity returns |a ∩ b| / max(|a|, |b|), or 0 if both sets are
// empty. Because max(|a|, |b|) never exceeds |a ∪ b|, the score is never
// lower than Jaccard's for the same sets (a proper subset scores
// |small|/|large| rather than |small|/|union|), so more message pairs clear
// the threshold than under Jaccard.
func wordSetSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	return float64(inter) / float64(maxLen)
}

// lastText returns the most recently recorded assistant text for
// agentIndex, or "" if none has been recorded yet.
func (ps *projectState) lastText(agentIndex int) string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	hist := ps.recentText[agentIndex]
	if len(hist) == 0 {
		return ""
	}
	return hist[len(hist)-1]
}

// clearHistory drops the recent-text window for agentIndex, called once
// its session ends.
func (ps *projectState) clearHistory(agentIndex int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.recentText, agentIndex)
}
