package burst

import (
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/photo-vault/internal/metadata"
)

var t0 = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

func member(id, name string, size int64, offset time.Duration) Member {
	return Member{
		ID:       id,
		FileName: name,
		ByteSize: size,
		TakenAt:  t0.Add(offset),
	}
}

func classifier() *Classifier {
	return NewClassifier(DefaultPolicy())
}

func TestClassifyRapidBurst(t *testing.T) {
	// Three camera frames, 2.5MB +-2%, captured within a 4-second span.
	members := []Member{
		member("a", "IMG_0001.jpg", 2_500_000, 0),
		member("b", "IMG_0002.jpg", 2_550_000, 2*time.Second),
		member("c", "IMG_0003.jpg", 2_460_000, 4*time.Second),
	}

	groups := classifier().Classify(members)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}

	g := groups[0]
	if len(g.MemberIDs) != 3 {
		t.Fatalf("expected 3 members, got %v", g.MemberIDs)
	}
	if g.SuggestedBestID != "b" {
		t.Errorf("suggested best = %s; want b (largest file)", g.SuggestedBestID)
	}
	if !strings.Contains(g.Reason, "rapid burst") {
		t.Errorf("reason %q should indicate rapid succession", g.Reason)
	}
	if g.TimeSpanMillis != 4000 {
		t.Errorf("time span = %d ms; want 4000", g.TimeSpanMillis)
	}
	if g.MemberIDs[0] != "a" || g.MemberIDs[2] != "c" {
		t.Errorf("members not ordered by time: %v", g.MemberIDs)
	}
}

func TestClassifyBestTieBrokenByRecency(t *testing.T) {
	members := []Member{
		member("a", "IMG_0001.jpg", 2_500_000, 0),
		member("b", "IMG_0002.jpg", 2_500_000, 2*time.Second),
	}

	groups := classifier().Classify(members)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].SuggestedBestID != "b" {
		t.Errorf("equal sizes should prefer the most recent, got %s", groups[0].SuggestedBestID)
	}
}

func TestClassifyFarApartNotGrouped(t *testing.T) {
	members := []Member{
		member("a", "IMG_0001.jpg", 2_500_000, 0),
		member("b", "IMG_0002.jpg", 2_500_000, 10*time.Minute),
	}

	if groups := classifier().Classify(members); len(groups) != 0 {
		t.Errorf("expected no groups for photos 10 minutes apart, got %d", len(groups))
	}
}

func TestClassifyWideBracketNeedsEvidence(t *testing.T) {
	cam := &metadata.Camera{Make: "Canon", Model: "EOS R5", ISO: 400}

	// 20 seconds apart: time alone scores 25, far below the wide-bracket
	// floor. Sequence naming, near-equal sizes and matching camera push the
	// composite over it.
	strong := []Member{
		member("a", "IMG_0001.jpg", 2_500_000, 0),
		member("b", "IMG_0002.jpg", 2_520_000, 20*time.Second),
	}
	strong[0].Camera = cam
	strong[1].Camera = cam

	groups := classifier().Classify(strong)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group for strong wide-bracket pair, got %d", len(groups))
	}
	if !strings.Contains(groups[0].Reason, "within 30 seconds") {
		t.Errorf("reason %q should indicate the wide window", groups[0].Reason)
	}

	// Same gap with unrelated names and sizes: no group at all.
	weak := []Member{
		member("a", "beach.jpg", 1_000_000, 0),
		member("b", "sunset.jpg", 4_000_000, 20*time.Second),
	}
	if groups := classifier().Classify(weak); len(groups) != 0 {
		t.Errorf("expected no groups for weak wide-bracket pair, got %d", len(groups))
	}
}

func TestClassifyPossibleMatchDowngrade(t *testing.T) {
	// 20 seconds apart, shared prefix and close-but-not-near sizes: clears
	// the possible floor but not the burst floor.
	members := []Member{
		member("a", "holiday_beach_day.jpg", 2_000_000, 0),
		member("b", "holiday_beach_evening.jpg", 2_300_000, 20*time.Second),
	}

	groups := classifier().Classify(members)
	if len(groups) != 1 {
		t.Fatalf("expected 1 possible-match group, got %d", len(groups))
	}
	if !strings.Contains(groups[0].Reason, "possible match") {
		t.Errorf("reason %q should be downgraded to possible match", groups[0].Reason)
	}
}

func TestClassifySingletonsNotEmitted(t *testing.T) {
	members := []Member{
		member("a", "IMG_0001.jpg", 2_500_000, 0),
		member("b", "IMG_0002.jpg", 2_500_000, 2*time.Second),
		member("c", "unrelated.png", 90_000, 5*time.Minute),
	}

	groups := classifier().Classify(members)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	for _, id := range groups[0].MemberIDs {
		if id == "c" {
			t.Error("outlier should not be part of the burst group")
		}
	}
}

func TestClassifyChainsLongBursts(t *testing.T) {
	// Each frame is 4 s after the previous; the whole burst spans 16 s.
	// Chaining against the last accepted member must keep it together.
	var members []Member
	for i := 0; i < 5; i++ {
		members = append(members, member(
			string(rune('a'+i)),
			"IMG_000"+string(rune('1'+i))+".jpg",
			2_500_000,
			time.Duration(i*4)*time.Second,
		))
	}

	groups := classifier().Classify(members)
	if len(groups) != 1 {
		t.Fatalf("expected 1 chained group, got %d", len(groups))
	}
	if len(groups[0].MemberIDs) != 5 {
		t.Errorf("expected all 5 frames in one burst, got %v", groups[0].MemberIDs)
	}
}

func TestIsBurstPair(t *testing.T) {
	cam := &metadata.Camera{Make: "Canon", Model: "EOS R5", ISO: 400}

	near := member("a", "IMG_0001.jpg", 2_500_000, 0)
	near.Camera = cam
	close := member("b", "IMG_0002.jpg", 2_500_000, 2*time.Second)
	close.Camera = cam
	far := member("c", "IMG_0003.jpg", 2_500_000, 10*time.Minute)
	far.Camera = cam

	c := classifier()
	if !c.IsBurstPair(near, close) {
		t.Error("frames 2 seconds apart must qualify as a burst pair")
	}
	if c.IsBurstPair(near, far) {
		t.Error("frames 10 minutes apart must not qualify as a burst pair")
	}
}

func TestPairScoreCapped(t *testing.T) {
	cam := &metadata.Camera{Make: "Canon", Model: "EOS R5", ISO: 400}
	a := member("a", "IMG_0001.jpg", 2_500_000, 0)
	a.Camera = cam
	b := member("b", "IMG_0002.jpg", 2_500_000, time.Second)
	b.Camera = cam

	// 50 + 30 + 20 + 10 = 110 raw, capped at 100.
	if score := classifier().PairScore(a, b); score != 100 {
		t.Errorf("PairScore = %v; want capped 100", score)
	}
}

func TestPairScoreSymmetric(t *testing.T) {
	a := member("a", "IMG_0001.jpg", 2_500_000, 0)
	b := member("b", "vacation.png", 900_000, 12*time.Second)

	c := classifier()
	if c.PairScore(a, b) != c.PairScore(b, a) {
		t.Error("PairScore must be symmetric")
	}
}

func TestDefaultPolicyLoads(t *testing.T) {
	p := DefaultPolicy()
	if p.Brackets.MaxSeconds != 30 || p.Brackets.RapidSeconds != 5 {
		t.Errorf("unexpected bracket defaults: %+v", p.Brackets)
	}
	if p.Signals.TimeRapid == 0 || p.Floors.Max == 0 {
		t.Errorf("policy defaults not loaded: %+v", p)
	}
}
