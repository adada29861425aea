package database

import (
	"sort"

	"github.com/voidshard/galleryimport/pkg/structs"
)

// sortEntries sorts most recently created first
func sortEntries(in []*structs.RegistryEntry) {
	sort.Slice(in, func(i, j int) bool {
		if in[i].CreatedAt == in[j].CreatedAt {
			return in[i].JobID < in[j].JobID
		}
		return in[i].CreatedAt > in[j].CreatedAt
	})
}

// oldest returns the IDs of the n least recently seen entries
func oldest(in []*structs.RegistryEntry, n int) []string {
	if n <= 0 {
		return nil
	}
	cp := make([]*structs.RegistryEntry, len(in))
	copy(cp, in)
	sort.Slice(cp, func(i, j int) bool {
		if cp[i].LastSeen == cp[j].LastSeen {
			return cp[i].JobID < cp[j].JobID
		}
		return cp[i].LastSeen < cp[j].LastSeen
	})
	if n > len(cp) {
		n = len(cp)
	}
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = cp[i].JobID
	}
	return ids
}
