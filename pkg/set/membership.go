package set

// StrContains reports whether needle is a member of haystack.
func StrContains(haystack []string, needle string) bool {
	for _, item := range haystack {
		if item == needle {
			return true
		}
	}
	return false
}

// StrDifference returns the items of a that are not members of b,
// preserving the order of a.
func StrDifference(a, b []string) []string {
	if len(a) == 0 {
		return []string{}
	}
	if len(b) == 0 {
		return append([]string(nil), a...)
	}

	m := make(map[string]bool)
	c := make([]string, 0)

	for _, item := range b {
		m[item] = true
	}

	for _, item := range a {
		if _, ok := m[item]; !ok {
			c = append(c, item)
		}
	}

	return c
}

// StrDedup returns a with duplicates removed, preserving first-seen
// order.
func StrDedup(a []string) []string {
	m := make(map[string]bool)
	c := make([]string, 0, len(a))

	for _, item := range a {
		if _, ok := m[item]; ok {
			continue
		}
		m[item] = true
		c = append(c, item)
	}

	return c
}
