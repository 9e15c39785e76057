package collect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/listing-comb/app/model"
)

var priceNumber = regexp.MustCompile(`\d[\d,\s]*(?:\.\d+)?`)

// HTMLProductParser extracts product data from a product page. JSON-LD Product
// blocks win over OpenGraph meta tags, which win over schema.org itemprop markup.
type HTMLProductParser struct{}

func NewHTMLProductParser() *HTMLProductParser {
	return &HTMLProductParser{}
}

func (p *HTMLProductParser) Parse(body []byte, src *model.Source) (*RawRecord, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty document", model.ErrParse)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read HTML: %v", model.ErrParse, err)
	}

	raw := &RawRecord{Extra: map[string]string{}}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		product := findJSONLDProduct([]byte(s.Text()))
		if product == nil {
			return true
		}
		applyJSONLDProduct(raw, product)
		return false
	})

	raw.Title = firstNonEmpty(raw.Title,
		metaContent(doc, `meta[property="og:title"]`),
		strings.TrimSpace(doc.Find(`[itemprop="name"]`).First().Text()),
		strings.TrimSpace(doc.Find("h1").First().Text()),
		strings.TrimSpace(doc.Find("title").First().Text()))

	if raw.Description == "" {
		if html, err := doc.Find(`[itemprop="description"]`).First().Html(); err == nil && strings.TrimSpace(html) != "" {
			raw.Description = strings.TrimSpace(html)
		}
	}
	raw.Description = firstNonEmpty(raw.Description,
		metaContent(doc, `meta[property="og:description"]`),
		metaContent(doc, `meta[name="description"]`))

	if raw.Price == 0 {
		priceText := firstNonEmpty(
			metaContent(doc, `meta[property="product:price:amount"]`),
			metaContent(doc, `meta[property="og:price:amount"]`),
			attrOrText(doc.Find(`[itemprop="price"]`).First()))
		if v, ok := parsePrice(priceText); ok {
			raw.Price = v
		}
	}

	raw.Currency = firstNonEmpty(raw.Currency,
		metaContent(doc, `meta[property="product:price:currency"]`),
		metaContent(doc, `meta[property="og:price:currency"]`),
		attrOrText(doc.Find(`[itemprop="priceCurrency"]`).First()))

	if len(raw.Images) == 0 {
		doc.Find(`meta[property="og:image"], [itemprop="image"]`).Each(func(_ int, s *goquery.Selection) {
			if v := firstNonEmpty(attr(s, "content"), attr(s, "src"), attr(s, "href")); v != "" {
				raw.Images = append(raw.Images, v)
			}
		})
	}

	if keywords := metaContent(doc, `meta[name="keywords"]`); keywords != "" && len(raw.Tags) == 0 {
		for _, k := range strings.Split(keywords, ",") {
			if k = strings.TrimSpace(k); k != "" {
				raw.Tags = append(raw.Tags, k)
			}
		}
	}

	if canonical, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		raw.URL = strings.TrimSpace(canonical)
	}

	if raw.Title == "" && raw.Price == 0 {
		return nil, fmt.Errorf("%w: no product markup found", model.ErrParse)
	}
	if len(raw.Extra) == 0 {
		raw.Extra = nil
	}

	return raw, nil
}

// findJSONLDProduct returns the first object typed Product in a JSON-LD block,
// looking through top-level arrays and @graph containers.
func findJSONLDProduct(data []byte) map[string]any {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}

	var walk func(v any) map[string]any
	walk = func(v any) map[string]any {
		switch node := v.(type) {
		case []any:
			for _, item := range node {
				if found := walk(item); found != nil {
					return found
				}
			}
		case map[string]any:
			if hasType(node["@type"], "Product") {
				return node
			}
			if graph, ok := node["@graph"]; ok {
				return walk(graph)
			}
		}
		return nil
	}

	return walk(doc)
}

func applyJSONLDProduct(raw *RawRecord, product map[string]any) {
	raw.Title = jsonString(product["name"])
	raw.Description = jsonString(product["description"])
	raw.Category = jsonString(product["category"])
	raw.ExternalID = firstNonEmpty(jsonString(product["sku"]), jsonString(product["productID"]))
	raw.Images = jsonImages(product["image"])

	if brand, ok := product["brand"].(map[string]any); ok {
		raw.Extra["brand"] = jsonString(brand["name"])
	} else if b := jsonString(product["brand"]); b != "" {
		raw.Extra["brand"] = b
	}

	var offers []map[string]any
	switch o := product["offers"].(type) {
	case map[string]any:
		offers = append(offers, o)
	case []any:
		for _, item := range o {
			if m, ok := item.(map[string]any); ok {
				offers = append(offers, m)
			}
		}
	}

	for i, offer := range offers {
		price, ok := jsonNumber(offer["price"])
		if !ok {
			price, ok = jsonNumber(offer["lowPrice"])
		}
		if i == 0 {
			if ok {
				raw.Price = price
			}
			raw.Currency = jsonString(offer["priceCurrency"])
			if high, ok := jsonNumber(offer["highPrice"]); ok && high > raw.Price {
				raw.OriginalPrice = high
			}
			if level, ok := offer["inventoryLevel"].(map[string]any); ok {
				if v, ok := jsonNumber(level["value"]); ok {
					raw.Stock = int(v)
				}
			}
			if availability := jsonString(offer["availability"]); availability != "" {
				raw.Extra["availability"] = availability
			}
		}
		if len(offers) > 1 && ok {
			raw.Variants = append(raw.Variants, model.Variant{
				SKU:   jsonString(offer["sku"]),
				Name:  firstNonEmpty(jsonString(offer["name"]), jsonString(offer["sku"]), strconv.Itoa(i+1)),
				Price: price,
			})
		}
	}
}

func hasType(v any, want string) bool {
	switch t := v.(type) {
	case string:
		return t == want
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func jsonString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func jsonNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		return parsePrice(t)
	}
	return 0, false
}

func jsonImages(v any) []string {
	var images []string
	switch t := v.(type) {
	case string:
		images = append(images, t)
	case map[string]any:
		if u := jsonString(t["url"]); u != "" {
			images = append(images, u)
		}
	case []any:
		for _, item := range t {
			images = append(images, jsonImages(item)...)
		}
	}
	return images
}

// parsePrice reads the first number out of a display price such as "¥1,299.00" or
// "12,50 €".
func parsePrice(text string) (float64, bool) {
	match := strings.TrimSpace(priceNumber.FindString(text))
	if match == "" {
		return 0, false
	}

	match = strings.ReplaceAll(match, " ", "")
	if !strings.Contains(match, ".") {
		if i := strings.LastIndex(match, ","); i >= 0 && len(match)-i-1 == 2 {
			match = match[:i] + "." + match[i+1:]
		}
	}
	match = strings.ReplaceAll(match, ",", "")

	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func metaContent(doc *goquery.Document, selector string) string {
	return attr(doc.Find(selector).First(), "content")
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

func attrOrText(s *goquery.Selection) string {
	if v := attr(s, "content"); v != "" {
		return v
	}
	return strings.TrimSpace(s.Text())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
