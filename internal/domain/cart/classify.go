package cart

import "strings"

// ParsedLineItem is the result of checking a raw line item at the boundary.
// It is either a ValidLineItem or a MalformedLineItem.
type ParsedLineItem interface {
	isParsedLineItem()
}

// ValidLineItem is an item that can take part in a merge.
// Item.Quantity is at least 1; RawQuantity is the quantity as stored.
type ValidLineItem struct {
	VendorID    string
	Key         string
	Item        LineItem
	Identity    Identity
	RawQuantity int
}

// MalformedLineItem is an item that was dropped, with the reason.
type MalformedLineItem struct {
	VendorID string `json:"vendorId"`
	Key      string `json:"key"`
	Name     string `json:"name,omitempty"`
	Reason   string `json:"reason"`
}

func (ValidLineItem) isParsedLineItem()     {}
func (MalformedLineItem) isParsedLineItem() {}

const (
	ReasonMissingProductID = "missing id and productId"
	ReasonEmptyKey         = "empty product key"
)

// Classify validates one raw line item of vendorID stored under key.
// Quantities below 1 are raised to 1 when the item is placed on its own.
func Classify(vendorID, key string, it LineItem) ParsedLineItem {
	vid := strings.TrimSpace(vendorID)
	k := strings.TrimSpace(key)
	if it.ProductRef() == "" {
		return MalformedLineItem{VendorID: vid, Key: k, Name: it.Name, Reason: ReasonMissingProductID}
	}
	if k == "" {
		return MalformedLineItem{VendorID: vid, Key: k, Name: it.Name, Reason: ReasonEmptyKey}
	}

	it.ID = strings.TrimSpace(it.ID)
	it.ProductID = strings.TrimSpace(it.ProductID)
	if strings.TrimSpace(it.VendorID) == "" {
		it.VendorID = vid
	}
	raw := it.Quantity
	if it.Quantity < 1 {
		it.Quantity = 1
	}
	return ValidLineItem{VendorID: vid, Key: k, Item: it, Identity: it.Identity(), RawQuantity: raw}
}
