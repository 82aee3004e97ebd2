package burst

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// sequenceSuffix matches common sequential naming: a trailing number with an
// optional dash/underscore/space separator or parentheses, e.g. IMG_0042,
// DSC-0042, photo (3), BURST20240615143022_003.
var sequenceSuffix = regexp.MustCompile(`^(.*?)[-_ ]?\(?(\d{1,6})\)?$`)

// NormalizeName lowercases a filename and strips diacritics so that export
// tools that mangle accents do not break name comparison.
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, name)
	return strings.ToLower(result)
}

// splitSequence extracts a (base, sequence-number) pair from a filename.
// Returns ok=false when the name has no trailing number.
func splitSequence(name string) (base string, seq int, ok bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = NormalizeName(stem)

	m := sequenceSuffix.FindStringSubmatch(stem)
	if m == nil || m[2] == "" {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], n, true
}

// commonPrefixLen returns the length of the shared prefix of two normalized
// filename stems.
func commonPrefixLen(a, b string) int {
	a = NormalizeName(strings.TrimSuffix(a, filepath.Ext(a)))
	b = NormalizeName(strings.TrimSuffix(b, filepath.Ext(b)))
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
