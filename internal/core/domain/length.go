package domain

// Code point ranges X counts as one character. Everything else, CJK and
// emoji included, counts as two.
var lightRanges = [...][2]rune{
	{0x0000, 0x10FF},
	{0x2000, 0x200D},
	{0x2010, 0x201F},
	{0x2032, 0x2037},
}

func runeWeight(r rune) int {
	for _, rg := range lightRanges {
		if r >= rg[0] && r <= rg[1] {
			return 1
		}
	}
	return 2
}

// PostLength returns the weighted length X applies to post text. URLs are
// not shortened to the t.co length.
func PostLength(s string) int {
	n := 0
	for _, r := range s {
		n += runeWeight(r)
	}
	return n
}

// TruncateToLength cuts s to at most n weighted characters without splitting
// a rune.
func TruncateToLength(s string, n int) string {
	total := 0
	for i, r := range s {
		total += runeWeight(r)
		if total > n {
			return s[:i]
		}
	}
	return s
}
