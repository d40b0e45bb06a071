package favorites

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint digests the membership of the list, ordered by key so that
// insertion order never changes the digest.
func Fingerprint(items []Item) string {
	keys := make([]string, 0, len(items))
	for _, item := range items {
		keys = append(keys, item.Key())
	}
	sort.Strings(keys)

	sum := sha256.Sum256([]byte(strings.Join(keys, ";")))
	return hex.EncodeToString(sum[:])
}

// Merge unions the account favorites (server) with the guest favorites
// (local) at login. The server list is the base and keeps its order and
// metadata; guest-only favorites are appended in their guest order.
func Merge(server, local []Item) []Item {
	merged := make([]Item, len(server))
	copy(merged, server)

	seen := make(map[string]struct{}, len(merged))
	for _, item := range merged {
		seen[item.Key()] = struct{}{}
	}

	for _, item := range local {
		if _, ok := seen[item.Key()]; ok {
			continue
		}
		seen[item.Key()] = struct{}{}
		merged = append(merged, item)
	}

	return merged
}

// Plan is the minimal set of writes that makes the remote list match the
// desired one.
type Plan struct {
	Inserts []Item
	Deletes []Item
}

// Empty reports whether the remote list already matches.
func (p Plan) Empty() bool {
	return len(p.Inserts) == 0 && len(p.Deletes) == 0
}

// BuildPlan diffs desired membership against remote membership. Callers
// always pass the full desired list; remote favorites it does not mention
// are deleted.
func BuildPlan(desired, remote []Item) Plan {
	remoteKeys := make(map[string]struct{}, len(remote))
	for _, item := range remote {
		remoteKeys[item.Key()] = struct{}{}
	}

	var plan Plan
	desiredKeys := make(map[string]struct{}, len(desired))
	for _, item := range desired {
		desiredKeys[item.Key()] = struct{}{}
		if _, ok := remoteKeys[item.Key()]; !ok {
			plan.Inserts = append(plan.Inserts, item)
		}
	}

	for _, item := range remote {
		if _, ok := desiredKeys[item.Key()]; !ok {
			plan.Deletes = append(plan.Deletes, item)
		}
	}

	return plan
}
