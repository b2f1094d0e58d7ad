package cart

import (
	"sort"
	"strconv"
	"strings"
)

// Conflict kinds reported by Merge.
const (
	ConflictQuantitySummed = "quantity-summed"
	ConflictReplacedKey    = "replaced-key"
)

// Conflict describes a local item that did not land verbatim.
type Conflict struct {
	VendorID string `json:"vendorId"`
	Name     string `json:"name"`
	How      string `json:"how"`
	Key      string `json:"key"`
}

// MergeResult is the merged cart plus what changed.
type MergeResult struct {
	Merged        Cart                `json:"merged"`
	AddedByVendor map[string][]string `json:"addedByVendor"`
	Conflicts     []Conflict          `json:"conflicts"`
	Dropped       []MalformedLineItem `json:"dropped"`
}

// Merge replays local on top of remote.
//
// Remote is the base so items synced from other devices survive. A local
// item whose identity already exists has its quantity summed into the
// remote line; any other local item is inserted under its own key, or under
// a suffixed key when that key is held by a different variant. Items
// without id and productId are dropped and reported.
func Merge(remote, local Cart) MergeResult {
	res := MergeResult{
		Merged:        Cart{},
		AddedByVendor: map[string][]string{},
		Conflicts:     []Conflict{},
		Dropped:       []MalformedLineItem{},
	}

	for _, vid := range unionVendorIDs(remote, local) {
		rv, hasRemote := remote[vid]
		lv := local[vid]

		out := make(map[string]LineItem, len(rv.Products)+len(lv.Products))
		for k, it := range rv.Products {
			out[k] = it
		}

		index := map[Identity]string{}
		for _, k := range sortedKeys(out) {
			id := out[k].Identity()
			if _, ok := index[id]; !ok {
				index[id] = k
			}
		}

		for _, lk := range sortedKeys(lv.Products) {
			parsed := Classify(vid, lk, lv.Products[lk])
			bad, malformed := parsed.(MalformedLineItem)
			if malformed {
				res.Dropped = append(res.Dropped, bad)
				continue
			}
			item := parsed.(ValidLineItem)

			if existingKey, ok := index[item.Identity]; ok {
				existing := out[existingKey]
				existing.Quantity = max(1, existing.Quantity+item.RawQuantity)
				out[existingKey] = existing
				res.Conflicts = append(res.Conflicts, Conflict{
					VendorID: vid,
					Name:     displayName(existing, item.Item),
					How:      ConflictQuantitySummed,
					Key:      existingKey,
				})
			} else {
				key := item.Key
				if _, taken := out[key]; taken {
					key = freeKey(out, key)
					res.Conflicts = append(res.Conflicts, Conflict{
						VendorID: vid,
						Name:     item.Item.Name,
						How:      ConflictReplacedKey,
						Key:      key,
					})
				}
				out[key] = item.Item
				index[item.Identity] = key
			}
			res.AddedByVendor[vid] = append(res.AddedByVendor[vid], item.Item.Name)
		}

		if len(out) == 0 {
			continue
		}

		name := rv.VendorName
		if !(hasRemote && len(rv.Products) > 0 && strings.TrimSpace(rv.VendorName) != "") &&
			strings.TrimSpace(lv.VendorName) != "" {
			name = lv.VendorName
		}
		res.Merged[vid] = VendorCart{VendorName: name, Products: out}
	}

	return res
}

// AddLine applies a single item to c with the same identity rule as Merge.
// It returns the key the item ended up under.
func AddLine(c Cart, vendorID, vendorName string, it LineItem) (Cart, string, error) {
	vid := strings.TrimSpace(vendorID)
	if vid == "" {
		return c, "", ErrInvalidItem
	}
	if it.Quantity < 1 {
		it.Quantity = 1
	}
	local := Cart{vid: VendorCart{
		VendorName: vendorName,
		Products:   map[string]LineItem{DefaultKey(vid, it): it},
	}}
	res := Merge(c, local)
	if len(res.Dropped) > 0 {
		return c, "", ErrInvalidItem
	}
	key := DefaultKey(vid, it)
	if len(res.Conflicts) > 0 {
		key = res.Conflicts[0].Key
	}
	return res.Merged, key, nil
}

func unionVendorIDs(a, b Cart) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for vid := range a {
		seen[vid] = struct{}{}
	}
	for vid := range b {
		seen[vid] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for vid := range seen {
		if strings.TrimSpace(vid) == "" {
			continue
		}
		out = append(out, vid)
	}
	sort.Strings(out)
	return out
}

func freeKey(products map[string]LineItem, base string) string {
	for n := 2; ; n++ {
		k := base + "-" + strconv.Itoa(n)
		if _, taken := products[k]; !taken {
			return k
		}
	}
}

func displayName(existing, incoming LineItem) string {
	if strings.TrimSpace(existing.Name) != "" {
		return existing.Name
	}
	return incoming.Name
}
