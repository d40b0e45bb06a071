package cart

// Merge combines the account cart (server) with the guest cart (local) at
// login. The server list is the base and keeps its order. A line present on
// both sides resolves its quantity to the larger of the two. Guest lines the
// server has never seen are appended in their guest order. The merge is
// deliberately asymmetric: server metadata (name, price, image) wins for
// shared lines, so a stale guest copy never overwrites fresher account data.
func Merge(server, local []Item) []Item {
	merged := make([]Item, len(server))
	copy(merged, server)

	index := make(map[string]int, len(merged))
	for i, item := range merged {
		index[item.Key()] = i
	}

	for _, item := range local {
		if pos, ok := index[item.Key()]; ok {
			if item.Quantity > merged[pos].Quantity {
				merged[pos].Quantity = item.Quantity
			}
			continue
		}
		index[item.Key()] = len(merged)
		merged = append(merged, item)
	}

	return merged
}
