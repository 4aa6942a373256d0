package slicerpdf

// MatchOption returns the index of the option in candidates whose normalized
// text equals the normalized requested name.
//
// When several candidates match, the first in display order wins. If no
// candidate matches exactly and fallbackSingle is set, a lone candidate is
// accepted. Otherwise the error is [ErrNoMatch] for an empty candidate list
// and [ErrNoExactMatch] for a non-empty one.
func MatchOption(requested string, candidates []string, fallbackSingle bool) (int, error) {
	want := Normalize(requested)
	if want == "" {
		return -1, ErrEmptyName
	}
	if len(candidates) == 0 {
		return -1, ErrNoMatch
	}
	for i, c := range candidates {
		if Normalize(c) == want {
			return i, nil
		}
	}
	if fallbackSingle && len(candidates) == 1 && Normalize(candidates[0]) != "" {
		return 0, nil
	}
	return -1, ErrNoExactMatch
}
