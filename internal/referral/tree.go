// Package referral builds the in-memory referral forest used by every
// multi-level bonus walk.
package referral

import (
	"sort"
	"strconv"
	"strings"

	"staking-reward-engine/internal/models"
	"staking-reward-engine/pkg/logger"
)

// DefaultMaxDepth bounds every walk when the caller does not configure one.
const DefaultMaxDepth = 20

// Tree maps each upline member to its direct downline.
type Tree struct {
	children map[uint64][]uint64
	parent   map[uint64]uint64
	members  map[uint64]struct{}
}

// Walk is the result of a breadth-first walk below a root member.
// Levels[0] holds the direct downline.
type Walk struct {
	Root      uint64
	Levels    [][]uint64
	Truncated bool
}

// BuildTree resolves every member's referred_by, first as a member ID and
// then as a referral code. Unresolvable or self references are dropped.
func BuildTree(members []models.Member) *Tree {
	t := &Tree{
		children: make(map[uint64][]uint64),
		parent:   make(map[uint64]uint64),
		members:  make(map[uint64]struct{}, len(members)),
	}

	byCode := make(map[string]uint64, len(members))
	for _, m := range members {
		t.members[m.ID] = struct{}{}
		if m.ReferralCode != "" {
			byCode[m.ReferralCode] = m.ID
		}
	}

	for _, m := range members {
		if m.ReferredBy == nil {
			continue
		}
		ref := strings.TrimSpace(*m.ReferredBy)
		if ref == "" {
			continue
		}

		upline, ok := resolve(ref, t.members, byCode)
		if !ok || upline == m.ID {
			logger.WithFields(map[string]interface{}{
				"member_id":   m.ID,
				"referred_by": ref,
			}).Debug("referral reference not resolvable, ignored")
			continue
		}

		t.children[upline] = append(t.children[upline], m.ID)
		t.parent[m.ID] = upline
	}

	for id := range t.children {
		ids := t.children[id]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	return t
}

func resolve(ref string, members map[uint64]struct{}, byCode map[string]uint64) (uint64, bool) {
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		if _, ok := members[id]; ok {
			return id, true
		}
	}
	id, ok := byCode[ref]
	return id, ok
}

// Children returns the direct downline of a member, sorted by ID.
func (t *Tree) Children(id uint64) []uint64 {
	return t.children[id]
}

// Upline returns the direct upline of a member, if any.
func (t *Tree) Upline(id uint64) (uint64, bool) {
	p, ok := t.parent[id]
	return p, ok
}

func (t *Tree) Contains(id uint64) bool {
	_, ok := t.members[id]
	return ok
}

// Levels walks the downline of root one frontier at a time. The walk
// stops at the first empty frontier or after maxDepth levels, whichever
// comes first. A member is visited at most once, so malformed cyclic data
// cannot loop.
func (t *Tree) Levels(root uint64, maxDepth int) Walk {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}

	w := Walk{Root: root}
	visited := map[uint64]struct{}{root: {}}
	frontier := []uint64{root}

	for depth := 0; ; depth++ {
		var next []uint64
		for _, id := range frontier {
			for _, child := range t.children[id] {
				if _, seen := visited[child]; seen {
					continue
				}
				visited[child] = struct{}{}
				next = append(next, child)
			}
		}
		if len(next) == 0 {
			return w
		}
		if depth >= maxDepth {
			w.Truncated = true
			logger.WithFields(map[string]interface{}{
				"member_id": root,
				"max_depth": maxDepth,
			}).Warn("referral walk truncated at depth cap")
			return w
		}
		w.Levels = append(w.Levels, next)
		frontier = next
	}
}

// Level returns the members exactly depth levels below root (0 = direct).
func (w Walk) Level(depth int) []uint64 {
	if depth < 0 || depth >= len(w.Levels) {
		return nil
	}
	return w.Levels[depth]
}

// Depth is the number of non-empty levels found.
func (w Walk) Depth() int {
	return len(w.Levels)
}
