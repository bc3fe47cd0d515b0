package fingerprint

import (
	"math/bits"
	"sort"
)

// Segment is a contiguous run of aligned frame positions shared by two
// fingerprints at a single relative offset. Score is the mean bit
// distance over the run (0 = identical codes, MaxScore = every bit
// differs). Segments only live for the duration of one comparison.
type Segment struct {
	PosA   int     // start frame in fingerprint A
	PosB   int     // start frame in fingerprint B
	Length int     // run length in frames
	Score  float64 // mean per-frame bit distance, lower is better
}

// Duration returns the segment length in seconds under cfg.
func (s Segment) Duration(cfg *Config) float64 {
	return float64(s.Length) * cfg.ItemDuration()
}

// MatchFingerprints aligns two code sequences at every offset within
// cfg.MaxOffset, extracts runs whose windowed bit distance stays below
// cfg.MatchThreshold, and returns the accepted segments, best score
// first. Accepted segments never overlap each other on both time axes
// at once. An empty input on either side yields no segments.
func MatchFingerprints(a, b []uint32, cfg *Config) []Segment {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}

	var candidates []Segment
	for offset := -cfg.MaxOffset; offset <= cfg.MaxOffset; offset++ {
		candidates = append(candidates, segmentsAtOffset(a, b, offset, cfg)...)
	}

	// Best score first; ties prefer the longer run, then the earlier
	// position so the result is stable.
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.Score != cj.Score {
			return ci.Score < cj.Score
		}
		if ci.Length != cj.Length {
			return ci.Length > cj.Length
		}
		if ci.PosA != cj.PosA {
			return ci.PosA < cj.PosA
		}
		return ci.PosB < cj.PosB
	})

	var accepted []Segment
	for _, cand := range candidates {
		ok := true
		for _, acc := range accepted {
			// A worse-scoring segment may not claim a time range a
			// better one already covers on both sides.
			if overlaps(cand.PosA, cand.Length, acc.PosA, acc.Length) &&
				overlaps(cand.PosB, cand.Length, acc.PosB, acc.Length) {
				ok = false
				break
			}
		}
		if ok {
			accepted = append(accepted, cand)
		}
	}
	return accepted
}

// segmentsAtOffset scores the overlap of a and b at one relative offset
// (b slid right by offset frames, negative slides left) and extracts
// maximal runs covered by windows whose mean bit distance is within the
// acceptance threshold.
func segmentsAtOffset(a, b []uint32, offset int, cfg *Config) []Segment {
	startA := 0
	if offset > 0 {
		startA = offset
	}
	startB := startA - offset
	n := len(a) - startA
	if m := len(b) - startB; m < n {
		n = m
	}
	if n <= 0 {
		return nil
	}

	dist := make([]int, n)
	prefix := make([]int, n+1)
	for i := 0; i < n; i++ {
		dist[i] = bits.OnesCount32(a[startA+i] ^ b[startB+i])
		prefix[i+1] = prefix[i] + dist[i]
	}

	w := cfg.MatchWindow
	if w > n {
		w = n
	}

	covered := make([]bool, n)
	for i := 0; i+w <= n; i++ {
		mean := float64(prefix[i+w]-prefix[i]) / float64(w)
		if mean <= cfg.MatchThreshold {
			for j := i; j < i+w; j++ {
				covered[j] = true
			}
		}
	}

	var segments []Segment
	for i := 0; i < n; {
		if !covered[i] {
			i++
			continue
		}
		j := i
		for j < n && covered[j] {
			j++
		}
		score := float64(prefix[j]-prefix[i]) / float64(j-i)
		if score < cfg.MaxScore {
			segments = append(segments, Segment{
				PosA:   startA + i,
				PosB:   startB + i,
				Length: j - i,
				Score:  score,
			})
		}
		i = j
	}
	return segments
}

func overlaps(start1, len1, start2, len2 int) bool {
	return start1 < start2+len2 && start2 < start1+len1
}

// CompareFingerprints reduces the matched segments of a and b to one
// similarity score in [0, MaxScore], 0 meaning identical. The reduction
// is duration-weighted and harmonic-style, so long well-matching
// segments dominate short poor ones:
//
//	score = MaxScore - totalDuration / sum(duration_i / (MaxScore - score_i))
//
// Segments whose score reaches MaxScore carry no alignment information
// and are excluded before the reduction. The second return value is
// false when no usable segment aligned at all ("no correlation"), which
// is a valid outcome, not an error.
func CompareFingerprints(a, b []uint32, cfg *Config) (float64, bool) {
	segments := MatchFingerprints(a, b, cfg)

	var totalDur, weight float64
	for _, s := range segments {
		if s.Score >= cfg.MaxScore {
			continue
		}
		d := s.Duration(cfg)
		totalDur += d
		weight += d / (cfg.MaxScore - s.Score)
	}
	if weight == 0 {
		return 0, false
	}

	score := cfg.MaxScore - totalDur/weight
	if score < 0 {
		score = 0
	}
	if score > cfg.MaxScore {
		score = cfg.MaxScore
	}
	return score, true
}
