package firestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartdom "thriftmall/internal/domain/cart"
)

func TestCartFromData_ToleratesLooseTypes(t *testing.T) {
	raw := map[string]any{
		"cart": map[string]any{
			"v1": map[string]any{
				"vendorName": "Thrift Corner",
				"products": map[string]any{
					"v1-p1-M": map[string]any{
						"id":           " p1 ",
						"name":         "Blazer",
						"price":        "19.5",
						"quantity":     float64(2),
						"selectedSize": "M",
					},
					"junk": "not a map",
				},
			},
			"v2": "not a map",
		},
	}

	c := cartFromData(raw)

	require.Len(t, c, 1)
	it := c["v1"].Products["v1-p1-M"]
	assert.Equal(t, "p1", it.ID)
	assert.Equal(t, 19.5, it.Price)
	assert.Equal(t, 2, it.Quantity)
	assert.Len(t, c["v1"].Products, 1)
}

func TestCartDocFromDomain(t *testing.T) {
	c := cartdom.Cart{"v1": {VendorName: "Thrift Corner", Products: map[string]cartdom.LineItem{
		"k": {ProductID: "p1", Quantity: 3, Variation: "vintage"},
	}}}

	doc := cartDocFromDomain(c)

	assert.True(t, doc.UpdatedAt.IsZero())
	assert.Equal(t, "Thrift Corner", doc.Cart["v1"].VendorName)
	assert.Equal(t, 3, doc.Cart["v1"].Products["k"].Quantity)
	assert.Equal(t, "vintage", doc.Cart["v1"].Products["k"].Variation)
}

func TestAsInt(t *testing.T) {
	assert.Equal(t, 4, asInt(int64(4)))
	assert.Equal(t, 4, asInt(4.9))
	assert.Equal(t, 7, asInt(" 7 "))
	assert.Equal(t, 0, asInt("x"))
	assert.Equal(t, 0, asInt(nil))
}
