package syncstore

// Canonicalize keeps the first occurrence of each id in input order. Ids are
// compared exactly; callers trim input at their own boundary. The result is
// never nil.
func Canonicalize(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, id := range items {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Equal reports whether a and b hold the same ids in the same order.
func Equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Contains reports whether id is in items.
func Contains(items []string, id string) bool {
	for _, item := range items {
		if item == id {
			return true
		}
	}
	return false
}

// Without returns a copy of items minus id.
func Without(items []string, id string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item != id {
			out = append(out, item)
		}
	}
	return out
}

// With returns a copy of items with id appended when absent.
func With(items []string, id string) []string {
	out := make([]string, 0, len(items)+1)
	out = append(out, items...)
	if !Contains(items, id) {
		out = append(out, id)
	}
	return out
}
