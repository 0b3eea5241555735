// Package split moves a range of an oversized routine into a new routine.
//
// A [Splitter] searches the routine for the longest range that can be
// extracted: one that no outside branch enters, whose own branches stay
// inside it, and that does not cross a protected region boundary. The
// range is copied into a private static synthetic routine named after the
// original with a "$split" suffix. Its parameters are the stack values the
// range consumes followed by the locals it reads. It returns an Object
// array holding the stack values the range produces and then the locals it
// writes, boxed. The trimmed routine calls it in place of the range and
// unpacks the array.
//
//	res, err := split.New().Split(routine)
//	if errors.Is(err, split.ErrNoSplitPoint) {
//	    // nothing can be moved out
//	}
package split
