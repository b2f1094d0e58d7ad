package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCart() Cart {
	return Cart{
		"v1": {
			VendorName: "Thrift Corner",
			Products: map[string]LineItem{
				"v1-p1-M-Red": {ID: "p1", Name: "Denim jacket", Quantity: 1, SelectedSize: "M", SelectedColor: "Red", Price: 25},
				"v1-p2":       {ProductID: "p2", Name: "Wool scarf", Quantity: 3, Price: 8},
			},
		},
		"v2": {
			VendorName: "Second Spin",
			Products: map[string]LineItem{
				"v2-p9-L": {ProductID: "p9", Name: "Linen shirt", Quantity: 2, SelectedSize: "L", Price: 12},
			},
		},
	}
}

func TestMerge_IdenticalCartsDoubleQuantities(t *testing.T) {
	a := sampleCart()

	res := Merge(a, a.Clone())

	require.Len(t, res.Merged, len(a))
	for vid, vc := range a {
		for k, it := range vc.Products {
			got, ok := res.Merged[vid].Products[k]
			require.True(t, ok, "missing %s/%s", vid, k)
			assert.Equal(t, 2*it.Quantity, got.Quantity, "%s/%s", vid, k)
		}
	}
	assert.Len(t, res.Conflicts, a.ItemCount())
	for _, c := range res.Conflicts {
		assert.Equal(t, ConflictQuantitySummed, c.How)
	}
}

func TestMerge_DisjointCartsKeepEveryLine(t *testing.T) {
	remote := sampleCart()
	local := Cart{
		"v1": {
			VendorName: "Thrift Corner",
			Products: map[string]LineItem{
				"v1-p3": {ProductID: "p3", Name: "Canvas tote", Quantity: 4},
			},
		},
		"v3": {
			VendorName: "Retro Lane",
			Products: map[string]LineItem{
				"v3-p7-S": {ID: "p7", Name: "Cord skirt", Quantity: 1, SelectedSize: "S"},
				"v3-p8":   {ID: "p8", Name: "Beret", Quantity: 2},
			},
		},
	}

	res := Merge(remote, local)

	assert.Equal(t, remote.ItemCount()+local.ItemCount(), res.Merged.ItemCount())
	assert.Empty(t, res.Conflicts)
	for _, src := range []Cart{remote, local} {
		for vid, vc := range src {
			for k, it := range vc.Products {
				got, ok := res.Merged[vid].Products[k]
				require.True(t, ok, "missing %s/%s", vid, k)
				assert.Equal(t, it.Quantity, got.Quantity)
			}
		}
	}
	assert.ElementsMatch(t, []string{"Cord skirt", "Beret"}, res.AddedByVendor["v3"])
	assert.Equal(t, "Retro Lane", res.Merged["v3"].VendorName)
}

func TestMerge_SumsQuantityOnSameVariant(t *testing.T) {
	remote := Cart{"v1": {Products: map[string]LineItem{
		"v1-p1-M-Red": {ID: "p1", Quantity: 1, SelectedSize: "M", SelectedColor: "Red"},
	}}}
	local := Cart{"v1": {Products: map[string]LineItem{
		"v1-p1-M-Red": {ID: "p1", Quantity: 2, SelectedSize: "M", SelectedColor: "Red"},
	}}}

	res := Merge(remote, local)

	assert.Equal(t, 3, res.Merged["v1"].Products["v1-p1-M-Red"].Quantity)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, ConflictQuantitySummed, res.Conflicts[0].How)
	assert.Equal(t, "v1", res.Conflicts[0].VendorID)
}

func TestMerge_IdentityMatchesAcrossDifferentKeys(t *testing.T) {
	remote := Cart{"v1": {Products: map[string]LineItem{
		"legacy-key": {ProductID: "p1", Quantity: 2, SelectedColor: "Blue"},
	}}}
	local := Cart{"v1": {Products: map[string]LineItem{
		"v1-p1-Blue": {ID: "p1", Quantity: 1, SelectedColor: "Blue"},
	}}}

	res := Merge(remote, local)

	require.Len(t, res.Merged["v1"].Products, 1)
	assert.Equal(t, 3, res.Merged["v1"].Products["legacy-key"].Quantity)
}

func TestMerge_KeyCollisionWithDifferentVariantGetsSuffix(t *testing.T) {
	remote := Cart{"v1": {Products: map[string]LineItem{
		"v1-p1": {ProductID: "p1", Name: "Blazer", Quantity: 1, SelectedSize: "S"},
	}}}
	local := Cart{"v1": {Products: map[string]LineItem{
		"v1-p1": {ProductID: "p1", Name: "Blazer", Quantity: 1, SelectedSize: "L"},
	}}}

	res := Merge(remote, local)

	products := res.Merged["v1"].Products
	require.Len(t, products, 2)
	assert.Equal(t, "S", products["v1-p1"].SelectedSize)
	assert.Equal(t, "L", products["v1-p1-2"].SelectedSize)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, ConflictReplacedKey, res.Conflicts[0].How)
	assert.Equal(t, "v1-p1-2", res.Conflicts[0].Key)
}

func TestMerge_DropsItemsWithoutProductReference(t *testing.T) {
	remote := Cart{}
	local := Cart{"v1": {VendorName: "Thrift Corner", Products: map[string]LineItem{
		"broken": {Name: "Mystery box", Quantity: 1},
		"v1-p2":  {ProductID: "p2", Name: "Wool scarf", Quantity: 1},
	}}}

	res := Merge(remote, local)

	require.Len(t, res.Dropped, 1)
	assert.Equal(t, "broken", res.Dropped[0].Key)
	assert.Equal(t, ReasonMissingProductID, res.Dropped[0].Reason)
	_, kept := res.Merged["v1"].Products["broken"]
	assert.False(t, kept)
	assert.Equal(t, []string{"Wool scarf"}, res.AddedByVendor["v1"])
}

func TestMerge_SummedQuantityNeverBelowOne(t *testing.T) {
	remote := Cart{"v1": {Products: map[string]LineItem{
		"k": {ProductID: "p1", Quantity: -4},
	}}}
	local := Cart{"v1": {Products: map[string]LineItem{
		"k": {ProductID: "p1", Quantity: 1},
	}}}

	res := Merge(remote, local)

	assert.Equal(t, 1, res.Merged["v1"].Products["k"].Quantity)
}

func TestMerge_ZeroLocalQuantityAddsNothing(t *testing.T) {
	remote := Cart{"v1": {Products: map[string]LineItem{
		"k": {ID: "p1", Quantity: 2},
	}}}
	local := Cart{"v1": {Products: map[string]LineItem{
		"k": {ID: "p1", Quantity: 0},
	}}}

	res := Merge(remote, local)

	assert.Equal(t, 2, res.Merged["v1"].Products["k"].Quantity)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, ConflictQuantitySummed, res.Conflicts[0].How)
}

func TestClassify_KeepsStoredQuantity(t *testing.T) {
	got, ok := Classify("v1", "k", LineItem{ID: "p1", Quantity: -2}).(ValidLineItem)
	require.True(t, ok)
	assert.Equal(t, 1, got.Item.Quantity)
	assert.Equal(t, -2, got.RawQuantity)
}

func TestMerge_VendorNamePrefersSideWithProducts(t *testing.T) {
	remote := Cart{"v1": {VendorName: "", Products: map[string]LineItem{}}}
	local := Cart{"v1": {VendorName: "Thrift Corner", Products: map[string]LineItem{
		"v1-p1": {ProductID: "p1", Quantity: 1},
	}}}

	res := Merge(remote, local)
	assert.Equal(t, "Thrift Corner", res.Merged["v1"].VendorName)

	remote = Cart{"v1": {VendorName: "Thrift Corner (remote)", Products: map[string]LineItem{
		"v1-p9": {ProductID: "p9", Quantity: 1},
	}}}
	res = Merge(remote, local)
	assert.Equal(t, "Thrift Corner (remote)", res.Merged["v1"].VendorName)
}

func TestMerge_OmitsVendorsLeftEmpty(t *testing.T) {
	remote := Cart{"v1": {VendorName: "Empty", Products: map[string]LineItem{}}}
	local := Cart{"v2": {Products: map[string]LineItem{"x": {Name: "no id", Quantity: 1}}}}

	res := Merge(remote, local)

	assert.Empty(t, res.Merged)
}

func TestAddLine(t *testing.T) {
	c := Cart{}
	item := LineItem{ProductID: "p1", Name: "Blazer", Quantity: 1, SelectedSize: "M"}

	c, key, err := AddLine(c, "v1", "Thrift Corner", item)
	require.NoError(t, err)
	assert.Equal(t, "v1-p1-M", key)

	c, key, err = AddLine(c, "v1", "Thrift Corner", item)
	require.NoError(t, err)
	assert.Equal(t, "v1-p1-M", key)
	assert.Equal(t, 2, c["v1"].Products[key].Quantity)
	assert.Equal(t, "v1", c["v1"].Products[key].VendorID)

	c, _, err = AddLine(c, "v1", "", LineItem{ProductID: "p1", SelectedSize: "M"})
	require.NoError(t, err)
	assert.Equal(t, 3, c["v1"].Products[key].Quantity, "an add without quantity adds one")

	_, _, err = AddLine(c, "v1", "", LineItem{Name: "no id"})
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestCartValidate(t *testing.T) {
	assert.NoError(t, sampleCart().Validate())

	dup := Cart{"v1": {Products: map[string]LineItem{
		"a": {ProductID: "p1", Quantity: 1},
		"b": {ID: "p1", Quantity: 1},
	}}}
	assert.ErrorIs(t, dup.Validate(), ErrInvalidCart)

	zero := Cart{"v1": {Products: map[string]LineItem{"a": {ProductID: "p1"}}}}
	assert.ErrorIs(t, zero.Validate(), ErrInvalidItem)
}

func TestCartNormalize(t *testing.T) {
	in := Cart{
		"v1": {Products: map[string]LineItem{
			"a":   {ProductID: " p1 ", Quantity: 0},
			"bad": {Name: "no id"},
		}},
		"v2": {Products: map[string]LineItem{}},
	}

	out, dropped := in.Normalize()

	require.Len(t, out, 1)
	assert.Equal(t, "p1", out["v1"].Products["a"].ProductID)
	assert.Equal(t, 1, out["v1"].Products["a"].Quantity)
	assert.Equal(t, "v1", out["v1"].Products["a"].VendorID)
	require.Len(t, dropped, 1)
	assert.Equal(t, "bad", dropped[0].Key)
}
