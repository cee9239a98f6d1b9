package mapper

import "strings"

const listSeparator = ","

// SplitList expands a comma-joined value into trimmed, distinct, non-empty
// codes in their original order. It never returns nil.
func SplitList(s string) []string {
	return appendDistinct(make([]string, 0), strings.Split(s, listSeparator)...)
}

// JoinList is the inverse of SplitList: codes are trimmed, de-duplicated and
// joined into the single stored value. No codes yields the empty string.
func JoinList(codes []string) string {
	return strings.Join(appendDistinct(nil, codes...), listSeparator)
}

func appendDistinct(dst []string, codes ...string) []string {
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || contains(dst, c) {
			continue
		}
		dst = append(dst, c)
	}
	return dst
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
