package suggest

// StubT9 перебирает все сочетания букв префикса по порядку.
type StubT9 struct{}

func (StubT9) Predict(prefix []int, max int) []string {
	if len(prefix) == 0 || max <= 0 {
		return nil
	}
	out := make([]string, 0, max)
	var walk func(pos int, acc []rune) bool
	walk = func(pos int, acc []rune) bool {
		if pos == len(prefix) {
			out = append(out, string(acc))
			return len(out) < max
		}
		for _, r := range T9Charsets[prefix[pos]] {
			if !walk(pos+1, append(acc, r)) {
				return false
			}
		}
		return true
	}
	walk(0, make([]rune, 0, len(prefix)))
	return out
}

var _ Predictor = StubT9{}
