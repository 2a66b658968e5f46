package memory

import (
	"sort"
	"strings"
)

// pushRing appends v and drops the oldest entries beyond limit.
func pushRing[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = append(s[:0:0], s[len(s)-limit:]...)
	}
	return s
}

// PushRing is pushRing for other packages mutating profiles inside a Tx.
func PushRing[T any](s []T, v T, limit int) []T {
	return pushRing(s, v, limit)
}

// appendUnique appends the trimmed value unless present (case-insensitive).
// When the list is full the oldest entry is dropped.
func appendUnique(s []string, v string, limit int) ([]string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return s, false
	}
	for _, existing := range s {
		if strings.EqualFold(existing, v) {
			return s, false
		}
	}
	return pushRing(s, v, limit), true
}

// AppendUnique is appendUnique for other packages.
func AppendUnique(s []string, v string, limit int) ([]string, bool) {
	return appendUnique(s, v, limit)
}

// removeFold deletes every entry equal to v ignoring case.
func removeFold(s []string, v string) ([]string, bool) {
	out := s[:0]
	removed := false
	for _, existing := range s {
		if strings.EqualFold(existing, v) {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	return out, removed
}

// TrimByValue keeps the limit highest-valued keys. Ties break by key so the
// result is deterministic.
func TrimByValue(m map[string]int, limit int) {
	if len(m) <= limit {
		return
	}
	for _, kv := range SortedByValue(m)[limit:] {
		delete(m, kv.Key)
	}
}

// KV is a map entry.
type KV struct {
	Key   string
	Value int
}

// SortedByValue returns entries highest value first.
func SortedByValue(m map[string]int) []KV {
	out := make([]KV, 0, len(m))
	for k, v := range m {
		out = append(out, KV{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// TopN returns up to n entries highest value first.
func TopN(m map[string]int, n int) []KV {
	all := SortedByValue(m)
	if len(all) > n {
		all = all[:n]
	}
	return all
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSlice[T any](s []T) []T {
	return append(make([]T, 0, len(s)), s...)
}
