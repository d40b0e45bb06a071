package cart

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Fingerprint digests the cart's identity-relevant state: product, variant
// and quantity per line, ordered by key so that insertion order never
// changes the digest. Two carts with the same lines always produce the same
// fingerprint, which is what lets the sync loop skip no-op runs.
func Fingerprint(items []Item) string {
	tuples := make([]string, 0, len(items))
	for _, item := range items {
		tuples = append(tuples, item.ProductID+"|"+item.VariantID+"|"+strconv.Itoa(item.Quantity))
	}
	sort.Strings(tuples)

	sum := sha256.Sum256([]byte(strings.Join(tuples, ";")))
	return hex.EncodeToString(sum[:])
}
