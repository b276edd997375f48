package relay

// WordBits is the width of one control word.
const WordBits = 8

// Word is the control byte written to one transport. A set bit releases the
// relay: the driver boards sink current, so clearing a bit energizes it.
type Word uint8

// Mask returns the bit of id within its word.
func Mask(id ID) Word { return 1 << uint(int(id)%WordBits) }

// WordIndex returns which word (and therefore which transport) holds id.
func WordIndex(id ID) int { return int(id) / WordBits }

// Encode ORs together the masks of every relay that is not enabled.
func Encode(states []State) []Word {
	words := make([]Word, (len(states)+WordBits-1)/WordBits)
	for i, s := range states {
		if !s.Enabled {
			words[WordIndex(ID(i))] |= Mask(ID(i))
		}
	}
	return words
}

// Decode turns words back into n relay states.
func Decode(words []Word, n int) []State {
	states := make([]State, n)
	for i := range states {
		w := WordIndex(ID(i))
		if w >= len(words) {
			break
		}
		states[i].Enabled = words[w]&Mask(ID(i)) == 0
	}
	return states
}
