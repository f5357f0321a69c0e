package backinstock

import (
	"context"
	"errors"
)

// ErrVariantNotFound is returned by CatalogClient when an inventory item does
// not resolve to a variant. Expected for untracked items; treated as a no-op.
var ErrVariantNotFound = errors.New("no variant found for inventory item")

// CatalogClient resolves commerce-platform identifiers to the product
// metadata needed for messaging. Implementations live in infra/catalog/.
type CatalogClient interface {
	// ResolveVariantByInventoryItem resolves an inventory item ID to its
	// variant and product. Returns ErrVariantNotFound when the item is
	// unknown or untracked.
	ResolveVariantByInventoryItem(ctx context.Context, shop, inventoryItemID string) (*ResolvedRestock, error)

	// GetShopProfile returns the shop's display name and primary storefront
	// domain, used for the shop_name and product_url template variables.
	GetShopProfile(ctx context.Context, shop string) (name, domain string, err error)
}
