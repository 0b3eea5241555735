package bytecode

// copyInstructions returns a copy of the given instruction slice.
func copyInstructions(src []Instruction) []Instruction {
	if src == nil {
		return nil
	}
	dst := make([]Instruction, len(src))
	copy(dst, src)
	return dst
}

// copyTryCatchBlocks returns a copy of the given try/catch slice.
func copyTryCatchBlocks(src []TryCatchBlock) []TryCatchBlock {
	if src == nil {
		return nil
	}
	dst := make([]TryCatchBlock, len(src))
	copy(dst, src)
	return dst
}
