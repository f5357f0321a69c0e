package backinstock

import (
	"fmt"
	"html"
	"sort"
	"strings"
)

// Render substitutes {{name}} placeholders in a merchant-authored template.
// Replacement is literal, global and case-sensitive; placeholders without a
// matching variable are left verbatim, since templates may contain stray
// braces. Pure and deterministic: variables are applied in sorted name order.
func Render(template string, vars map[string]string) string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	out := template
	for _, name := range names {
		out = strings.ReplaceAll(out, "{{"+name+"}}", vars[name])
	}
	return out
}

// TemplateVars builds the variable set available to merchant templates.
func TemplateVars(restock *ResolvedRestock, recipientEmail string) map[string]string {
	return map[string]string{
		"product_title":  restock.ProductTitle,
		"product_url":    ProductURL(restock),
		"shop_name":      restock.ShopName,
		"customer_email": recipientEmail,
	}
}

// ProductURL derives the storefront product page URL.
func ProductURL(restock *ResolvedRestock) string {
	return fmt.Sprintf("https://%s/products/%s", restock.ShopDomain, restock.ProductHandle)
}

// BuildHTMLBody wraps the rendered plain-text body in the branded email
// shell: heading, optional product image, and the subscription footer.
func BuildHTMLBody(restock *ResolvedRestock, body string) string {
	var b strings.Builder

	b.WriteString(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">`)
	fmt.Fprintf(&b, `<h2 style="color: #333;">Good news from %s!</h2>`, html.EscapeString(restock.ShopName))

	if restock.ProductImageURL != "" {
		fmt.Fprintf(&b, `<img src="%s" alt="%s" style="max-width: 200px; height: auto; margin: 20px 0;">`,
			html.EscapeString(restock.ProductImageURL), html.EscapeString(restock.ProductTitle))
	}

	fmt.Fprintf(&b, `<div style="line-height: 1.6; color: #555;">%s</div>`,
		strings.ReplaceAll(html.EscapeString(body), "\n", "<br>"))

	fmt.Fprintf(&b, `<div style="margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; color: #888; font-size: 12px;">`+
		`<p>You received this email because you subscribed to back-in-stock notifications for %s.</p></div>`,
		html.EscapeString(restock.ProductTitle))

	b.WriteString(`</div>`)
	return b.String()
}
