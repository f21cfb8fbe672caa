package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/tally/internal/record"
)

// Matching phases. Phase 1 scans the tight window first; only sends still
// unmatched afterwards retry with the wide window. Both phases run the
// same scan, so the tie-break and consumption rules cannot diverge.
const (
	phaseOneMinOffset = 0
	phaseOneMaxOffset = 11
	phaseTwoMinOffset = 12
	phaseTwoMaxOffset = 60
)

// matchGroup holds one identity key's sends and opens. Groups share no
// state with each other, which is what makes per-group parallel matching
// safe: each group writes only its own send indices in the output slices.
type matchGroup struct {
	sendIdx []int              // indices into the full send slice, source order
	opens   []record.OpenEvent // source order within the group
	byTime  map[int64][]int    // unix second -> positions in opens, source order
}

// Match pairs each send event with the open event it most plausibly
// corresponds to, within a 60-second window.
//
// Sends and opens are grouped by identity key. Within a group, offsets are
// scanned ascending from the send timestamp; the first unconsumed open at
// an exact timestamp wins, and each open is consumed at most once. When
// several unconsumed opens share the winning timestamp, the
// earliest-inserted one (source order) is taken.
//
// INVARIANT: len(pairs) == len(sends), in send source order. Sends with no
// open after both phases yield a pair with a nil Open plus one failure
// record tagged no_open_match; failures are returned in send source order.
func Match(sends []record.SendEvent, opens []record.OpenEvent) ([]record.MatchedPair, []record.FailureRecord) {
	groups := buildGroups(sends, opens)

	pairs := make([]record.MatchedPair, len(sends))
	unmatched := make([]bool, len(sends))

	// Fan out one goroutine per identity key. Disjoint index sets mean no
	// locks are needed and output order is exactly input order.
	var wg sync.WaitGroup
	for _, g := range groups {
		wg.Add(1)
		go func(g *matchGroup) {
			defer wg.Done()
			matchOneGroup(sends, g, pairs, unmatched)
		}(g)
	}
	wg.Wait()

	var failures []record.FailureRecord
	for i, s := range sends {
		if unmatched[i] {
			failures = append(failures, record.FailureRecord{
				Stage:       record.StageMatch,
				Reason:      record.ReasonNoOpenMatch,
				IdentityKey: s.IdentityKey,
				Email:       s.Email,
				Sender:      s.Sender,
				Timestamp:   s.Timestamp,
			})
		}
	}

	slog.Debug("matching complete",
		"sends", len(sends),
		"opens", len(opens),
		"groups", len(groups),
		"matched", len(sends)-len(failures),
		"unmatched", len(failures),
	)

	return pairs, failures
}

// buildGroups indexes sends and opens by identity key, preserving source
// order within each group.
func buildGroups(sends []record.SendEvent, opens []record.OpenEvent) map[string]*matchGroup {
	groups := make(map[string]*matchGroup)
	group := func(key string) *matchGroup {
		g, ok := groups[key]
		if !ok {
			g = &matchGroup{byTime: make(map[int64][]int)}
			groups[key] = g
		}
		return g
	}

	for _, o := range opens {
		g := group(o.IdentityKey)
		pos := len(g.opens)
		g.opens = append(g.opens, o)
		g.byTime[o.Timestamp.Unix()] = append(g.byTime[o.Timestamp.Unix()], pos)
	}
	for i, s := range sends {
		group(s.IdentityKey).sendIdx = append(group(s.IdentityKey).sendIdx, i)
	}

	return groups
}

// matchOneGroup runs both phases for a single identity key group.
// The consumed set lives here and is discarded when the group completes -
// consumption never leaks across groups or across runs.
func matchOneGroup(sends []record.SendEvent, g *matchGroup, pairs []record.MatchedPair, unmatched []bool) {
	consumed := make([]bool, len(g.opens))

	var pending []int
	for _, si := range g.sendIdx {
		if pair, ok := scanWindow(sends[si], g, consumed, phaseOneMinOffset, phaseOneMaxOffset); ok {
			pairs[si] = pair
			continue
		}
		pending = append(pending, si)
	}

	for _, si := range pending {
		if pair, ok := scanWindow(sends[si], g, consumed, phaseTwoMinOffset, phaseTwoMaxOffset); ok {
			pairs[si] = pair
			continue
		}
		pairs[si] = record.MatchedPair{Send: sends[si]}
		unmatched[si] = true
	}
}

// scanWindow scans offsets minOffset..maxOffset ahead of the send
// timestamp and accepts the first unconsumed open at an exact match.
// Marking the winner consumed happens here so callers cannot forget it.
//
// Smaller offsets always win because the scan is offset-ascending and
// stops at the first hit.
func scanWindow(send record.SendEvent, g *matchGroup, consumed []bool, minOffset, maxOffset int) (record.MatchedPair, bool) {
	for offset := minOffset; offset <= maxOffset; offset++ {
		want := send.Timestamp.Add(time.Duration(offset) * time.Second).Unix()
		for _, pos := range g.byTime[want] {
			if consumed[pos] {
				continue
			}
			consumed[pos] = true
			open := g.opens[pos]
			return record.MatchedPair{Send: send, Open: &open, Offset: offset}, true
		}
	}
	return record.MatchedPair{}, false
}
