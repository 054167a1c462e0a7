package domain

// Merge rules for reconciling a locally cached line item with its remote
// counterpart. These are the business rules most at risk of drifting, so
// they live here as named functions instead of inline conditionals.

// MergeImageURL applies the sticky-image rule: once a line item carries an
// image URL, an empty value from a newer source never clears it.
func MergeImageURL(local, incoming string) string {
	if incoming == "" {
		return local
	}
	return incoming
}

// MergeRemoteLine folds a remote line item into the local row for the same
// productId. The server wins on quantity and unit price, the local image
// sticks, and the name falls back to whichever side knows it. The local
// surrogate id and owner tag are preserved. The result is marked synced.
func MergeRemoteLine(local *CartLineItem, remote CartLineItem) CartLineItem {
	merged := remote
	if local != nil {
		merged.ID = local.ID
		merged.UserID = local.UserID
		merged.ImageURL = MergeImageURL(local.ImageURL, remote.ImageURL)
		if merged.Name == "" {
			merged.Name = local.Name
		}
		if merged.UnitPriceCents == 0 {
			merged.UnitPriceCents = local.UnitPriceCents
		}
	}
	merged.Synced = true
	merged.Touch()
	return merged
}
