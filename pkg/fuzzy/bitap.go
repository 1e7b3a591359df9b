package fuzzy

// Default bitap parameters: matches are expected at the start of the text and
// lose 0.01 per character of offset.
const (
	DefaultLocation = 0
	DefaultDistance = 100
)

// Bitap scores the best approximate occurrence of pattern anywhere in text.
// The score is errors/len(pattern) plus |start-Location|/Distance, clamped to 1.
// A Distance of 0 makes any match away from Location score 1.
type Bitap struct {
	Location int
	Distance int
}

// NewBitap returns a Bitap scorer with the default location and distance.
func NewBitap() Bitap {
	return Bitap{Location: DefaultLocation, Distance: DefaultDistance}
}

// Dissimilarity implements Scorer.
func (b Bitap) Dissimilarity(pattern, text string) float64 {
	p := []rune(fold(pattern))
	t := []rune(fold(text))
	m, n := len(p), len(t)
	if m == 0 || n == 0 {
		return 1
	}
	if string(p) == string(t) {
		return 0
	}

	// Semi-global edit distance: the pattern must be consumed entirely, the text
	// match may start and end anywhere. Alongside the error count each cell keeps
	// where in the text its alignment started.
	prevErr := make([]int, n+1)
	prevStart := make([]int, n+1)
	curErr := make([]int, n+1)
	curStart := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prevErr[j] = 0
		prevStart[j] = j
	}

	for i := 1; i <= m; i++ {
		curErr[0] = i
		curStart[0] = 0
		for j := 1; j <= n; j++ {
			cost := 1
			if p[i-1] == t[j-1] {
				cost = 0
			}
			e, s := prevErr[j-1]+cost, prevStart[j-1]
			if c := prevErr[j] + 1; c < e || (c == e && prevStart[j] < s) {
				e, s = c, prevStart[j]
			}
			if c := curErr[j-1] + 1; c < e || (c == e && curStart[j-1] < s) {
				e, s = c, curStart[j-1]
			}
			curErr[j], curStart[j] = e, s
		}
		prevErr, curErr = curErr, prevErr
		prevStart, curStart = curStart, prevStart
	}

	best := 1.0
	for j := 1; j <= n; j++ {
		score := float64(prevErr[j])/float64(m) + b.proximity(prevStart[j])
		if score < best {
			best = score
		}
	}
	return clamp(best)
}

func (b Bitap) proximity(start int) float64 {
	off := start - b.Location
	if off < 0 {
		off = -off
	}
	if b.Distance <= 0 {
		if off == 0 {
			return 0
		}
		return 1
	}
	return float64(off) / float64(b.Distance)
}
