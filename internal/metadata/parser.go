package metadata

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
)

type extracted struct {
	title string
	image string
	price *decimal.Decimal
}

// extract walks the parsed document once, collecting JSON-LD product
// blocks, open graph tags and the plain <title> fallback. Structured
// data wins over meta tags, meta tags win over <title>.
func extract(doc *html.Node, base *url.URL) extracted {
	var out extracted
	var metaTitle, metaImage, plainTitle string
	var ldBlocks []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script":
				if attrValue(n, "type") == "application/ld+json" && n.FirstChild != nil {
					ldBlocks = append(ldBlocks, n.FirstChild.Data)
				}
			case "meta":
				key := attrValue(n, "property")
				if key == "" {
					key = attrValue(n, "name")
				}
				content := strings.TrimSpace(attrValue(n, "content"))
				if content != "" {
					switch key {
					case "og:title", "twitter:title":
						if metaTitle == "" {
							metaTitle = content
						}
					case "og:image", "twitter:image":
						if metaImage == "" {
							metaImage = content
						}
					}
				}
			case "title":
				if plainTitle == "" && n.FirstChild != nil {
					plainTitle = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, raw := range ldBlocks {
		applyStructuredData(&out, raw)
	}

	// Open graph tags win over JSON-LD; sites keep them fresher.
	if metaTitle != "" {
		out.title = metaTitle
	}
	if out.title == "" {
		out.title = plainTitle
	}
	out.title = cleanTitle(out.title)

	if metaImage != "" {
		out.image = metaImage
	}
	out.image = normalizeImageURL(out.image, base)
	return out
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

// applyStructuredData pulls name, image and price out of a Schema.org
// Product, Offer or AggregateOffer block. Sites ship malformed JSON-LD
// all the time so parse failures are silently skipped.
func applyStructuredData(out *extracted, raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return
	}
	switch v := data.(type) {
	case map[string]any:
		applyProductObject(out, v)
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				applyProductObject(out, obj)
			}
		}
	}
}

func applyProductObject(out *extracted, obj map[string]any) {
	if !isProductType(obj) {
		return
	}
	if out.title == "" {
		if name, ok := obj["name"].(string); ok {
			out.title = strings.TrimSpace(name)
		}
	}
	if out.image == "" {
		out.image = imageFromValue(obj["image"])
	}
	if out.price == nil {
		out.price = priceFromOffers(obj)
	}
}

func isProductType(obj map[string]any) bool {
	accepted := func(s string) bool {
		return s == "Product" || s == "Offer" || s == "AggregateOffer"
	}
	switch t := obj["@type"].(type) {
	case string:
		return accepted(t)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && accepted(s) {
				return true
			}
		}
	}
	return false
}

// imageFromValue handles the three shapes sites use: a bare URL string,
// an ImageObject with a url field, or a list of either.
func imageFromValue(v any) string {
	switch img := v.(type) {
	case string:
		return img
	case map[string]any:
		if u, ok := img["url"].(string); ok {
			return u
		}
	case []any:
		if len(img) > 0 {
			return imageFromValue(img[0])
		}
	}
	return ""
}

func priceFromOffers(obj map[string]any) *decimal.Decimal {
	var candidates []map[string]any
	switch offers := obj["offers"].(type) {
	case map[string]any:
		candidates = append(candidates, offers)
	case []any:
		for _, o := range offers {
			if m, ok := o.(map[string]any); ok {
				candidates = append(candidates, m)
			}
		}
	}
	// A top-level Offer carries price directly.
	candidates = append(candidates, obj)

	for _, offer := range candidates {
		raw := offer["price"]
		if raw == nil {
			raw = offer["lowPrice"]
		}
		if price := parsePrice(raw); price != nil {
			return price
		}
	}
	return nil
}

// parsePrice accepts JSON numbers and localized strings such as
// "12 499,00".
func parsePrice(v any) *decimal.Decimal {
	switch p := v.(type) {
	case float64:
		d := decimal.NewFromFloat(p)
		return &d
	case string:
		cleaned := strings.NewReplacer(" ", "", " ", "", ",", ".").Replace(p)
		if cleaned == "" {
			return nil
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return nil
		}
		return &d
	}
	return nil
}

// cleanTitle drops the "| Shop Name" style suffix sites append.
func cleanTitle(title string) string {
	for _, sep := range []string{" | ", " — ", " - "} {
		if idx := strings.Index(title, sep); idx >= 0 {
			title = title[:idx]
			break
		}
	}
	return strings.Trim(title, "  -–—")
}

// normalizeImageURL makes protocol-relative and relative image paths
// absolute against the final page URL.
func normalizeImageURL(image string, base *url.URL) string {
	if image == "" {
		return ""
	}
	if strings.HasPrefix(image, "//") {
		return "https:" + image
	}
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}
	if base == nil {
		return image
	}
	ref, err := url.Parse(image)
	if err != nil {
		return image
	}
	return base.ResolveReference(ref).String()
}
