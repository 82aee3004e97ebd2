// Package burst groups photos captured in rapid succession into burst
// sequences, so near-identical frames from one capture event are reviewed as
// a set instead of being flagged as N independent duplicates.
//
// The same pairwise heuristic serves two callers: batch grouping for the
// review UI (Classify) and pairwise suppression inside the duplicate
// detector (IsBurstPair).
package burst

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/photo-vault/internal/metadata"
)

// Member is the projection of a candidate or library entry the classifier
// needs: one representative file per logical asset, already deduplicated to
// the best available version.
type Member struct {
	ID          string
	FileName    string
	ByteSize    int64
	TakenAt     time.Time
	Fingerprint string
	Camera      *metadata.Camera
}

// Group is one detected burst sequence. Read-only output for the review UI.
type Group struct {
	ID                string   `json:"id"`
	MemberIDs         []string `json:"member_ids"` // ordered by capture time
	SuggestedBestID   string   `json:"suggested_best_id"`
	AverageSimilarity float64  `json:"average_similarity"`
	TimeSpanMillis    int64    `json:"time_span_millis"`
	Reason            string   `json:"reason"`
}

// verdict is the outcome of scoring one pair.
type verdict int

const (
	verdictNone verdict = iota
	verdictPossible
	verdictBurst
)

// Classifier applies the burst policy to candidate pools.
type Classifier struct {
	policy Policy
}

// NewClassifier creates a classifier with the given policy. Use
// DefaultPolicy() unless an operator has tuned the thresholds.
func NewClassifier(policy Policy) *Classifier {
	return &Classifier{policy: policy}
}

// PairScore computes the composite similarity of two members from the
// independent signals (time proximity, filename sequence, size ratio, camera
// metadata), additively, capped at 100.
func (c *Classifier) PairScore(a, b Member) float64 {
	score := c.timeScore(a, b) + c.filenameScore(a, b) + c.sizeScore(a, b) + c.cameraScore(a, b)
	if score > 100 {
		score = 100
	}
	return score
}

func (c *Classifier) timeDelta(a, b Member) time.Duration {
	delta := a.TakenAt.Sub(b.TakenAt)
	if delta < 0 {
		delta = -delta
	}
	return delta
}

func (c *Classifier) timeScore(a, b Member) float64 {
	delta := c.timeDelta(a, b)
	switch {
	case delta <= time.Duration(c.policy.Brackets.RapidSeconds)*time.Second:
		return c.policy.Signals.TimeRapid
	case delta <= time.Duration(c.policy.Brackets.MaxSeconds)*time.Second:
		return c.policy.Signals.TimeWindow
	default:
		return 0
	}
}

func (c *Classifier) filenameScore(a, b Member) float64 {
	baseA, seqA, okA := splitSequence(a.FileName)
	baseB, seqB, okB := splitSequence(b.FileName)
	if okA && okB && baseA == baseB && abs(seqA-seqB) <= c.policy.Filename.SequenceGapMax {
		return c.policy.Signals.FilenameSequence
	}
	if commonPrefixLen(a.FileName, b.FileName) >= c.policy.Filename.PrefixMinLength {
		return c.policy.Signals.FilenamePrefix
	}
	return 0
}

func (c *Classifier) sizeScore(a, b Member) float64 {
	if a.ByteSize <= 0 || b.ByteSize <= 0 {
		return 0
	}
	small, large := a.ByteSize, b.ByteSize
	if small > large {
		small, large = large, small
	}
	ratio := float64(small) / float64(large)
	switch {
	case ratio > c.policy.SizeRatios.Near:
		return c.policy.Signals.SizeNear
	case ratio > c.policy.SizeRatios.Close:
		return c.policy.Signals.SizeClose
	default:
		return 0
	}
}

func (c *Classifier) cameraScore(a, b Member) float64 {
	if a.Camera.SameDevice(b.Camera) && a.Camera.SameExposure(b.Camera) {
		return c.policy.Signals.CameraMatch
	}
	return 0
}

// qualify scores a pair and decides whether it belongs to the same burst.
// A rapid time delta alone is sufficient; wider brackets need the composite
// score to clear a floor that grows with the bracket.
func (c *Classifier) qualify(a, b Member) (verdict, float64) {
	delta := c.timeDelta(a, b)
	score := c.PairScore(a, b)

	rapid := time.Duration(c.policy.Brackets.RapidSeconds) * time.Second
	short := time.Duration(c.policy.Brackets.ShortSeconds) * time.Second
	max := time.Duration(c.policy.Brackets.MaxSeconds) * time.Second

	switch {
	case delta <= rapid:
		return verdictBurst, score
	case delta <= short && score >= c.policy.Floors.Short:
		return verdictBurst, score
	case delta <= max && score >= c.policy.Floors.Max:
		return verdictBurst, score
	case delta <= max && score >= c.policy.Floors.Possible:
		return verdictPossible, score
	default:
		return verdictNone, score
	}
}

// IsBurstPair reports whether two members qualify as the same burst, used by
// the duplicate detector to suppress conflicts between burst frames.
func (c *Classifier) IsBurstPair(a, b Member) bool {
	v, _ := c.qualify(a, b)
	return v == verdictBurst
}

// Classify partitions members into burst groups. Members are sorted by
// resolved capture time; each unprocessed member pools everything within the
// max burst interval and chains qualifying neighbors into its group.
// Singletons are not emitted. A pool of exactly two with only weak evidence
// is emitted as a possible match rather than a burst.
func (c *Classifier) Classify(members []Member) []Group {
	if len(members) < 2 {
		return nil
	}

	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].TakenAt.Equal(sorted[j].TakenAt) {
			return sorted[i].TakenAt.Before(sorted[j].TakenAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	maxInterval := time.Duration(c.policy.Brackets.MaxSeconds) * time.Second
	used := make([]bool, len(sorted))
	var groups []Group

	for i := range sorted {
		if used[i] {
			continue
		}

		// Pool: everything within the max interval of the anchor.
		poolEnd := i + 1
		for poolEnd < len(sorted) && sorted[poolEnd].TakenAt.Sub(sorted[i].TakenAt) <= maxInterval {
			poolEnd++
		}

		group := []int{i}
		possible := false
		for j := i + 1; j < poolEnd; j++ {
			if used[j] {
				continue
			}
			// Chain against the most recently accepted member so long
			// bursts are not cut off by the anchor's bracket.
			v, _ := c.qualify(sorted[group[len(group)-1]], sorted[j])
			if v == verdictBurst {
				group = append(group, j)
			}
		}

		// A lone anchor may still have one "possible match" neighbor.
		if len(group) == 1 {
			if j, ok := c.bestPossible(sorted, used, i, poolEnd); ok {
				group = append(group, j)
				possible = true
			}
		}

		if len(group) < 2 {
			continue
		}
		for _, idx := range group {
			used[idx] = true
		}
		groups = append(groups, c.buildGroup(sorted, group, possible))
	}

	return groups
}

// bestPossible finds the highest-scoring unused possible-match partner for
// the anchor within its pool.
func (c *Classifier) bestPossible(sorted []Member, used []bool, anchor, poolEnd int) (int, bool) {
	best, bestScore := -1, 0.0
	for j := anchor + 1; j < poolEnd; j++ {
		if used[j] {
			continue
		}
		v, score := c.qualify(sorted[anchor], sorted[j])
		if v == verdictPossible && score > bestScore {
			best, bestScore = j, score
		}
	}
	return best, best >= 0
}

func (c *Classifier) buildGroup(sorted []Member, indexes []int, possible bool) Group {
	members := make([]Member, len(indexes))
	for i, idx := range indexes {
		members[i] = sorted[idx]
	}

	// Pairwise composite average across the whole group.
	var sum float64
	var pairs int
	maxGap := time.Duration(0)
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sum += c.PairScore(members[i], members[j])
			pairs++
		}
		if i > 0 {
			if gap := members[i].TakenAt.Sub(members[i-1].TakenAt); gap > maxGap {
				maxGap = gap
			}
		}
	}
	avg := 0.0
	if pairs > 0 {
		avg = sum / float64(pairs)
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}

	return Group{
		ID:                uuid.NewString(),
		MemberIDs:         ids,
		SuggestedBestID:   suggestBest(members),
		AverageSimilarity: avg,
		TimeSpanMillis:    members[len(members)-1].TakenAt.Sub(members[0].TakenAt).Milliseconds(),
		Reason:            c.reason(maxGap, possible),
	}
}

// suggestBest picks the largest file, tie-broken by most recent timestamp.
// Larger is assumed to mean less compressed.
func suggestBest(members []Member) string {
	best := members[0]
	for _, m := range members[1:] {
		if m.ByteSize > best.ByteSize ||
			(m.ByteSize == best.ByteSize && m.TakenAt.After(best.TakenAt)) {
			best = m
		}
	}
	return best.ID
}

func (c *Classifier) reason(maxGap time.Duration, possible bool) string {
	if possible {
		return fmt.Sprintf("possible match within %d seconds", c.policy.Brackets.MaxSeconds)
	}
	if maxGap <= time.Duration(c.policy.Brackets.RapidSeconds)*time.Second {
		return fmt.Sprintf("rapid burst, sub-%d-second interval", c.policy.Brackets.RapidSeconds)
	}
	return fmt.Sprintf("similar photos within %d seconds", c.policy.Brackets.MaxSeconds)
}
