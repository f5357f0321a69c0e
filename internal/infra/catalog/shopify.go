package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"restockly/internal/domain/backinstock"
)

var _ backinstock.CatalogClient = (*ShopifyCatalog)(nil)

const (
	inventoryItemGIDPrefix = "gid://shopify/InventoryItem/"
	productGIDPrefix       = "gid://shopify/Product/"
	variantGIDPrefix       = "gid://shopify/ProductVariant/"
)

const variantByInventoryItemQuery = `
query getVariantByInventoryItem($id: ID!) {
  inventoryItem(id: $id) {
    id
    variant {
      id
      product {
        id
        title
        handle
        featuredImage {
          url
        }
      }
    }
  }
}`

const shopProfileQuery = `
query getShop {
  shop {
    name
    primaryDomain {
      host
    }
  }
}`

// ShopifyCatalog resolves inventory items and shop metadata through the
// Shopify Admin GraphQL API.
type ShopifyCatalog struct {
	accessToken string
	apiVersion  string
	httpClient  *http.Client
}

// NewShopifyCatalog creates a new Shopify Admin API catalog client.
func NewShopifyCatalog(accessToken, apiVersion string) *ShopifyCatalog {
	if apiVersion == "" {
		apiVersion = "2024-10"
	}
	return &ShopifyCatalog{
		accessToken: accessToken,
		apiVersion:  apiVersion,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ResolveVariantByInventoryItem resolves an inventory item ID to its variant
// and product metadata.
func (c *ShopifyCatalog) ResolveVariantByInventoryItem(ctx context.Context, shop, inventoryItemID string) (*backinstock.ResolvedRestock, error) {
	var result struct {
		InventoryItem *struct {
			ID      string `json:"id"`
			Variant *struct {
				ID      string `json:"id"`
				Product *struct {
					ID            string `json:"id"`
					Title         string `json:"title"`
					Handle        string `json:"handle"`
					FeaturedImage *struct {
						URL string `json:"url"`
					} `json:"featuredImage"`
				} `json:"product"`
			} `json:"variant"`
		} `json:"inventoryItem"`
	}

	err := c.graphql(ctx, shop, variantByInventoryItemQuery, map[string]any{
		"id": inventoryItemGIDPrefix + inventoryItemID,
	}, &result)
	if err != nil {
		return nil, err
	}

	item := result.InventoryItem
	if item == nil || item.Variant == nil || item.Variant.Product == nil {
		return nil, backinstock.ErrVariantNotFound
	}

	restock := &backinstock.ResolvedRestock{
		Shop:          shop,
		ProductID:     strings.TrimPrefix(item.Variant.Product.ID, productGIDPrefix),
		VariantID:     strings.TrimPrefix(item.Variant.ID, variantGIDPrefix),
		ProductTitle:  item.Variant.Product.Title,
		ProductHandle: item.Variant.Product.Handle,
	}
	if img := item.Variant.Product.FeaturedImage; img != nil {
		restock.ProductImageURL = img.URL
	}
	return restock, nil
}

// GetShopProfile returns the shop's display name and primary storefront domain.
func (c *ShopifyCatalog) GetShopProfile(ctx context.Context, shop string) (string, string, error) {
	var result struct {
		Shop *struct {
			Name          string `json:"name"`
			PrimaryDomain *struct {
				Host string `json:"host"`
			} `json:"primaryDomain"`
		} `json:"shop"`
	}

	if err := c.graphql(ctx, shop, shopProfileQuery, nil, &result); err != nil {
		return "", "", err
	}
	if result.Shop == nil {
		return "", "", fmt.Errorf("shop profile missing in response")
	}

	name := result.Shop.Name
	domain := shop
	if result.Shop.PrimaryDomain != nil && result.Shop.PrimaryDomain.Host != "" {
		domain = result.Shop.PrimaryDomain.Host
	}
	if name == "" {
		name = shop
	}
	return name, domain, nil
}

// graphql executes one Admin API query against the shop and decodes the
// data envelope into out.
func (c *ShopifyCatalog) graphql(ctx context.Context, shop, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("marshaling graphql request: %w", err)
	}

	url := fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shop, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("shopify admin API: status %d", resp.StatusCode)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("parsing graphql response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("shopify graphql: %s", envelope.Errors[0].Message)
	}
	if envelope.Data == nil {
		return fmt.Errorf("shopify graphql: empty data")
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("parsing graphql data: %w", err)
	}
	return nil
}
