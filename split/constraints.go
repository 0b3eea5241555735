package split

import (
	"sort"

	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/op"
)

// edge is a control transfer to an instruction offset.
type edge struct {
	from int
	to   int
}

// constraints shrinks candidate ranges so that they can be moved into a
// separate routine. Label offsets and branch edges are resolved once per
// routine.
type constraints struct {
	routine *bytecode.Routine
	regions []bytecode.ProtectedRegion

	// exits holds, in ascending order, the offsets of instructions that
	// transfer control somewhere other than the next instruction.
	exits []int
	// targets holds the offsets each exit can jump to; nil when the
	// instruction leaves the routine or its target is unknown.
	targets map[int][]int
	// edges holds every jump and switch edge sorted by target.
	edges []edge
}

func newConstraints(r *bytecode.Routine) *constraints {
	c := &constraints{routine: r, targets: map[int][]int{}}
	for i := 0; i < r.TryCatchBlockCount(); i++ {
		if region := r.RegionAt(i); region.Start < region.End {
			c.regions = append(c.regions, region)
		}
	}
	for i := 0; i < r.InstructionCount(); i++ {
		insn := r.InstructionAt(i)
		info := op.GetInfo(insn.Opcode())
		switch {
		case bytecode.IsPseudo(insn):
			continue
		case info.IsBranch():
			var offsets []int
			for _, l := range bytecode.Targets(insn) {
				to, _ := r.LabelOffset(l)
				offsets = append(offsets, to)
				c.edges = append(c.edges, edge{from: i, to: to})
			}
			c.exits = append(c.exits, i)
			if info.Flow != op.FlowSubroutine {
				c.targets[i] = offsets
			}
		case info.Flow == op.FlowReturn || info.Flow == op.FlowSubroutine:
			c.exits = append(c.exits, i)
		}
	}
	sort.Slice(c.edges, func(a, b int) bool {
		return c.edges[a].to < c.edges[b].to
	})
	return c
}

// constrain returns the largest end offset (inclusive) not after end such
// that start..end can be extracted. The result is below start when no
// such range exists.
func (c *constraints) constrain(start, end int) int {
	for end >= start {
		prev := end
		end = c.clampRegions(start, end)
		end = c.containBranches(start, end)
		end = c.excludeEntries(start, end)
		end = c.fallThroughTail(start, end)
		if end == prev {
			break
		}
	}
	return end
}

// clampRegions keeps handlers out of the range, keeps the range inside
// every protected region containing start, and keeps the start of every
// other protected region out of the range.
func (c *constraints) clampRegions(start, end int) int {
	for _, region := range c.regions {
		if region.Handler >= start {
			end = min(end, region.Handler-1)
		}
		if region.Contains(start) {
			end = min(end, region.End-1)
		} else if region.Start > start {
			end = min(end, region.Start-1)
		}
	}
	return end
}

// containBranches ends the range before the first instruction that can
// transfer control outside of it.
func (c *constraints) containBranches(start, end int) int {
	i := sort.SearchInts(c.exits, start)
	for ; i < len(c.exits) && c.exits[i] <= end; i++ {
		at := c.exits[i]
		targets, ok := c.targets[at]
		if !ok {
			return at - 1
		}
		for _, to := range targets {
			if to < start || to > end {
				return at - 1
			}
		}
	}
	return end
}

// excludeEntries ends the range before any instruction that an outside
// branch can jump to.
func (c *constraints) excludeEntries(start, end int) int {
	i := sort.Search(len(c.edges), func(i int) bool {
		return c.edges[i].to >= start
	})
	for ; i < len(c.edges) && c.edges[i].to <= end; i++ {
		e := c.edges[i]
		if e.from < start || e.from > end {
			return e.to - 1
		}
	}
	return end
}

// fallThroughTail ends the range on an instruction that continues with the
// next one.
func (c *constraints) fallThroughTail(start, end int) int {
	for ; end >= start; end-- {
		insn := c.routine.InstructionAt(end)
		if bytecode.IsPseudo(insn) || op.GetInfo(insn.Opcode()).FallsThrough() {
			break
		}
	}
	return end
}
