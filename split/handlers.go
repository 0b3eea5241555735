package split

import (
	"github.com/cretz/msplit/analysis"
	"github.com/cretz/msplit/bytecode"
	"github.com/cretz/msplit/op"
)

// slotSet is the set of local slots some code may read. all is set when
// control can reach a ret, whose continuation is unknown.
type slotSet struct {
	slots map[int]bool
	all   bool
}

func (s slotSet) has(slot int) bool {
	return s.all || s.slots[slot]
}

// handlerReads answers which locals an exception handler may observe.
// Locals written by an extracted range live in the extracted routine's own
// frame, so a handler entered by an exception from that routine sees the
// values from before the call.
type handlerReads struct {
	frames  *analysis.Result
	regions []bytecode.ProtectedRegion
	cache   map[int]slotSet
}

func newHandlerReads(frames *analysis.Result, regions []bytecode.ProtectedRegion) *handlerReads {
	return &handlerReads{frames: frames, regions: regions, cache: map[int]slotSet{}}
}

// firstObservedWrite returns the offset of the first instruction in
// start..end that writes a local read by a handler protecting start, or -1.
func (h *handlerReads) firstObservedWrite(start, end int) int {
	var watched []slotSet
	for _, region := range h.regions {
		if region.Contains(start) {
			watched = append(watched, h.reads(region.Handler))
		}
	}
	if len(watched) == 0 {
		return -1
	}
	for i := start; i <= end; i++ {
		for _, w := range h.frames.EffectAt(i).Writes {
			for slot := w.Slot; slot < w.Slot+w.Size; slot++ {
				for _, set := range watched {
					if set.has(slot) {
						return i
					}
				}
			}
		}
	}
	return -1
}

// reads walks every instruction reachable from the handler, including
// through nested handlers, and collects the slots they read.
func (h *handlerReads) reads(handler int) slotSet {
	if set, ok := h.cache[handler]; ok {
		return set
	}
	r := h.frames.Routine()
	n := r.InstructionCount()
	set := slotSet{slots: map[int]bool{}}
	seen := make([]bool, n)
	var work []int
	visit := func(i int) {
		if i >= 0 && i < n && !seen[i] {
			seen[i] = true
			work = append(work, i)
		}
	}
	visit(handler)
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		insn := r.InstructionAt(i)
		for _, a := range h.frames.EffectAt(i).Reads {
			for slot := a.Slot; slot < a.Slot+a.Size; slot++ {
				set.slots[slot] = true
			}
		}
		code := insn.Opcode()
		if code == op.Ret {
			set.all = true
		}
		pseudo := bytecode.IsPseudo(insn)
		if pseudo || op.GetInfo(code).FallsThrough() || code == op.Jsr || code == op.JsrW {
			visit(i + 1)
		}
		for _, l := range bytecode.Targets(insn) {
			to, _ := r.LabelOffset(l)
			visit(to)
		}
		if pseudo {
			continue
		}
		for _, region := range h.regions {
			if region.Contains(i) {
				visit(region.Handler)
			}
		}
	}
	h.cache[handler] = set
	return set
}
