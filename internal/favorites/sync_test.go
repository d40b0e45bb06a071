package favorites

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fav(productID string) Item {
	return Item{ProductID: productID, Name: productID, Price: decimal.NewFromInt(20)}
}

func TestMergeUnionsMembership(t *testing.T) {
	t.Parallel()

	server := []Item{fav("p1"), fav("p2")}
	local := []Item{fav("p2"), fav("p3")}

	merged := Merge(server, local)

	require.Len(t, merged, 3)
	assert.Equal(t, "p1", merged[0].ProductID)
	assert.Equal(t, "p2", merged[1].ProductID)
	assert.Equal(t, "p3", merged[2].ProductID)
}

func TestMergeKeepsServerMetadataForSharedFavorites(t *testing.T) {
	t.Parallel()

	server := []Item{{ProductID: "p1", Name: "Fresh", Price: decimal.NewFromInt(30)}}
	local := []Item{{ProductID: "p1", Name: "Stale", Price: decimal.NewFromInt(10)}}

	merged := Merge(server, local)

	require.Len(t, merged, 1)
	assert.Equal(t, "Fresh", merged[0].Name)
}

func TestFingerprintIgnoresOrderAndMetadata(t *testing.T) {
	t.Parallel()

	a := []Item{fav("p1"), fav("p2")}
	b := []Item{{ProductID: "p2", Name: "other", VariantID: "v9"}, {ProductID: "p1"}}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint([]Item{fav("p1")}))
}

func TestBuildPlanInsertsAndDeletesByMembership(t *testing.T) {
	t.Parallel()

	desired := []Item{fav("p1"), fav("p3")}
	remote := []Item{fav("p1"), fav("p2")}

	plan := BuildPlan(desired, remote)

	require.Len(t, plan.Inserts, 1)
	assert.Equal(t, "p3", plan.Inserts[0].ProductID)
	require.Len(t, plan.Deletes, 1)
	assert.Equal(t, "p2", plan.Deletes[0].ProductID)

	assert.True(t, BuildPlan(desired, desired).Empty())
}
