package collect

import (
	"errors"
	"strings"
	"testing"

	"github.com/lysyi3m/listing-comb/app/model"
)

var productSource = &model.Source{ID: "example", Kind: model.SourceKindProduct}
var newsSource = &model.Source{ID: "bbc", Kind: model.SourceKindNews}

const jsonLDProductPage = `<html><head>
<title>Store page</title>
<link rel="canonical" href="/item/42.html">
<meta name="keywords" content="dress, summer, ">
<script type="application/ld+json">
{"@context":"https://schema.org","@graph":[
  {"@type":"BreadcrumbList"},
  {"@type":"Product","name":"Linen Dress","description":"Breathable linen","sku":"LD-42",
   "category":"apparel","image":["https://img.example.com/a.jpg",{"url":"https://img.example.com/b.jpg"}],
   "brand":{"@type":"Brand","name":"Acme"},
   "offers":{"@type":"Offer","price":"129.90","priceCurrency":"CNY","availability":"https://schema.org/InStock",
             "inventoryLevel":{"value":35}}}
]}
</script></head><body><h1>Ignored heading</h1></body></html>`

const openGraphProductPage = `<html><head>
<meta property="og:title" content="Ceramic Mug">
<meta property="og:description" content="Hand glazed">
<meta property="og:image" content="/img/mug.jpg">
<meta property="product:price:amount" content="¥1,299.00">
<meta property="product:price:currency" content="cny">
</head><body></body></html>`

const itempropProductPage = `<html><body>
<div itemscope itemtype="https://schema.org/Product">
  <span itemprop="name">Bamboo Tray</span>
  <div itemprop="description"><p>Solid <b>bamboo</b></p></div>
  <span itemprop="price" content="45.5">45,50 €</span>
  <meta itemprop="priceCurrency" content="EUR">
  <img itemprop="image" src="https://img.example.com/tray.jpg">
</div></body></html>`

func TestHTMLProductParser_JSONLD(t *testing.T) {
	raw, err := NewHTMLProductParser().Parse([]byte(jsonLDProductPage), productSource)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if raw.Title != "Linen Dress" {
		t.Errorf("Expected JSON-LD title, got '%s'", raw.Title)
	}
	if raw.Price != 129.90 || raw.Currency != "CNY" {
		t.Errorf("Unexpected price %v %s", raw.Price, raw.Currency)
	}
	if raw.Stock != 35 {
		t.Errorf("Expected stock 35, got %d", raw.Stock)
	}
	if raw.ExternalID != "LD-42" || raw.Category != "apparel" {
		t.Errorf("Unexpected id/category %s/%s", raw.ExternalID, raw.Category)
	}
	if len(raw.Images) != 2 || raw.Images[1] != "https://img.example.com/b.jpg" {
		t.Errorf("Unexpected images %v", raw.Images)
	}
	if raw.Extra["brand"] != "Acme" {
		t.Errorf("Expected brand in extra, got %v", raw.Extra)
	}
	if raw.URL != "/item/42.html" {
		t.Errorf("Expected canonical link, got '%s'", raw.URL)
	}
	if len(raw.Tags) != 2 {
		t.Errorf("Expected 2 keyword tags, got %v", raw.Tags)
	}
}

func TestHTMLProductParser_OpenGraph(t *testing.T) {
	raw, err := NewHTMLProductParser().Parse([]byte(openGraphProductPage), productSource)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if raw.Title != "Ceramic Mug" || raw.Description != "Hand glazed" {
		t.Errorf("Unexpected title/description '%s'/'%s'", raw.Title, raw.Description)
	}
	if raw.Price != 1299 {
		t.Errorf("Expected price 1299, got %v", raw.Price)
	}
	if raw.Currency != "cny" {
		t.Errorf("Expected raw currency, got '%s'", raw.Currency)
	}
	if len(raw.Images) != 1 || raw.Images[0] != "/img/mug.jpg" {
		t.Errorf("Unexpected images %v", raw.Images)
	}
}

func TestHTMLProductParser_Itemprop(t *testing.T) {
	raw, err := NewHTMLProductParser().Parse([]byte(itempropProductPage), productSource)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if raw.Title != "Bamboo Tray" {
		t.Errorf("Unexpected title '%s'", raw.Title)
	}
	if !strings.Contains(raw.Description, "<b>bamboo</b>") {
		t.Errorf("Expected description markup, got '%s'", raw.Description)
	}
	if raw.Price != 45.5 || raw.Currency != "EUR" {
		t.Errorf("Unexpected price %v %s", raw.Price, raw.Currency)
	}
	if len(raw.Images) != 1 {
		t.Errorf("Expected 1 image, got %v", raw.Images)
	}
}

func TestHTMLProductParser_NoMarkup(t *testing.T) {
	_, err := NewHTMLProductParser().Parse([]byte("<html><body><div></div></body></html>"), productSource)
	if !errors.Is(err, model.ErrParse) {
		t.Errorf("Expected parse error, got %v", err)
	}

	_, err = NewHTMLProductParser().Parse(nil, productSource)
	if !errors.Is(err, model.ErrParse) {
		t.Errorf("Expected parse error for empty body, got %v", err)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"¥1,299.00", 1299, true},
		{"12,50 €", 12.5, true},
		{"US $7.99", 7.99, true},
		{"1 299", 1299, true},
		{"free", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parsePrice(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parsePrice(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFeedParser(t *testing.T) {
	rss := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>World</title>
<item><title>Markets rally</title><link>https://news.example.com/markets-rally</link>
<guid>markets-1</guid><description>Stocks rose &lt;b&gt;sharply&lt;/b&gt;</description>
<category>business</category>
<enclosure url="https://img.example.com/m.jpg" type="image/jpeg" length="100"/>
</item>
<item><title>Older</title><link>https://news.example.com/older</link></item>
</channel></rss>`

	raw, err := NewFeedParser().Parse([]byte(rss), &model.Source{ID: "rss", Kind: model.SourceKindNews})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if raw.Title != "Markets rally" || raw.ExternalID != "markets-1" {
		t.Errorf("Unexpected title/id %s/%s", raw.Title, raw.ExternalID)
	}
	if raw.URL != "https://news.example.com/markets-rally" {
		t.Errorf("Unexpected URL '%s'", raw.URL)
	}
	if len(raw.Tags) != 1 || raw.Tags[0] != "business" {
		t.Errorf("Unexpected tags %v", raw.Tags)
	}
	if len(raw.Images) != 1 {
		t.Errorf("Expected enclosure image, got %v", raw.Images)
	}
	if raw.Extra["feedTitle"] != "World" {
		t.Errorf("Expected feed title in extra, got %v", raw.Extra)
	}
}

func TestFeedParser_Errors(t *testing.T) {
	parser := NewFeedParser()

	if _, err := parser.Parse([]byte("not a feed"), nil); !errors.Is(err, model.ErrParse) {
		t.Errorf("Expected parse error, got %v", err)
	}

	empty := `<?xml version="1.0"?><rss version="2.0"><channel><title>x</title></channel></rss>`
	if _, err := parser.Parse([]byte(empty), nil); !errors.Is(err, model.ErrParse) {
		t.Errorf("Expected parse error for empty feed, got %v", err)
	}
}

func TestArticleParser(t *testing.T) {
	page := `<html><head><title>Rates held steady</title></head><body>
<nav>Home | World | Business</nav>
<article>
<h1>Rates held steady</h1>
<p>The central bank kept interest rates unchanged on Thursday, citing a stable labour market and inflation that has eased towards its target over recent months.</p>
<p>Economists had widely expected the decision, although several noted that the tone of the statement suggested cuts could arrive earlier than markets had priced in.</p>
<p>Officials said they would continue to watch incoming data closely before committing to any change in policy, and reiterated that decisions would be taken meeting by meeting.</p>
</article>
<footer>Copyright</footer>
</body></html>`

	raw, err := NewArticleParser().Parse([]byte(page), newsSource)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !strings.Contains(raw.Title, "Rates held steady") {
		t.Errorf("Unexpected title '%s'", raw.Title)
	}
	if !strings.Contains(raw.Description, "central bank") {
		t.Errorf("Expected article body, got '%s'", raw.Description)
	}

	if _, err := NewArticleParser().Parse(nil, newsSource); !errors.Is(err, model.ErrParse) {
		t.Errorf("Expected parse error for empty body, got %v", err)
	}
}

func TestParsers_For(t *testing.T) {
	parsers := NewParsers()

	tests := []struct {
		name string
		src  *model.Source
		resp *FetchResponse
		want string
	}{
		{"product source", productSource, &FetchResponse{ContentType: "text/html"}, "product"},
		{"news source", newsSource, &FetchResponse{ContentType: "text/html"}, "article"},
		{"rss source", &model.Source{ID: "rss", Kind: model.SourceKindNews}, &FetchResponse{}, "feed"},
		{"feed content type", newsSource, &FetchResponse{ContentType: "application/rss+xml"}, "feed"},
		{"xml sniffed", newsSource, &FetchResponse{ContentType: "text/xml", Body: []byte(`<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom">`)}, "feed"},
		{"plain xml", productSource, &FetchResponse{ContentType: "application/xml", Body: []byte(`<catalog/>`)}, "product"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, name := parsers.For(tt.src, tt.resp); name != tt.want {
				t.Errorf("Expected %s parser, got %s", tt.want, name)
			}
		})
	}
}
