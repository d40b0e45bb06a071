package cart

import (
	"context"
	"sync"

	"go.uber.org/multierr"
)

// Plan is the minimal set of writes that makes the remote cart match the
// desired list.
type Plan struct {
	Upserts []Item
	Deletes []Item
}

// Empty reports whether the remote cart already matches.
func (p Plan) Empty() bool {
	return len(p.Upserts) == 0 && len(p.Deletes) == 0
}

// BuildPlan diffs the desired list against the remote list. Desired lines
// absent remotely are inserted; lines whose quantity differs are updated;
// equal lines are consumed untouched. Remote lines not consumed by any
// desired line are deleted, so callers must always pass the full desired
// list, never a partial one.
func BuildPlan(desired, remote []Item) Plan {
	remoteByKey := make(map[string]Item, len(remote))
	for _, item := range remote {
		remoteByKey[item.Key()] = item
	}

	var plan Plan
	consumed := make(map[string]struct{}, len(desired))
	for _, item := range desired {
		key := item.Key()
		consumed[key] = struct{}{}
		existing, ok := remoteByKey[key]
		if !ok || existing.Quantity != item.Quantity {
			plan.Upserts = append(plan.Upserts, item)
		}
	}

	for _, item := range remote {
		if _, ok := consumed[item.Key()]; !ok {
			plan.Deletes = append(plan.Deletes, item)
		}
	}

	return plan
}

const reconcileWorkers = 4

// ReconcileBatch makes the stored cart match the desired list. Writes run
// concurrently and best effort: one failing line does not stop the others,
// and there is no rollback. The combined error carries every failure so the
// caller can hold back its fingerprint and retry on the next trigger.
func (r *Repository) ReconcileBatch(ctx context.Context, profileID int64, desired []Item) error {
	remote, err := r.FetchAll(ctx, profileID)
	if err != nil {
		return err
	}

	plan := BuildPlan(desired, remote)
	if plan.Empty() {
		return nil
	}

	type op struct {
		item   Item
		delete bool
	}
	ops := make(chan op)

	var (
		mu     sync.Mutex
		merged error
		wg     sync.WaitGroup
	)

	for w := 0; w < reconcileWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for o := range ops {
				var opErr error
				if o.delete {
					opErr = r.Remove(ctx, profileID, o.item.ProductID, o.item.VariantID)
				} else {
					opErr = r.Upsert(ctx, profileID, o.item)
				}
				if opErr != nil {
					mu.Lock()
					merged = multierr.Append(merged, opErr)
					mu.Unlock()
				}
			}
		}()
	}

	for _, item := range plan.Upserts {
		ops <- op{item: item}
	}
	for _, item := range plan.Deletes {
		ops <- op{item: item, delete: true}
	}
	close(ops)
	wg.Wait()

	return merged
}
