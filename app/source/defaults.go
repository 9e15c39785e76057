package source

import "github.com/lysyi3m/listing-comb/app/model"

// WildcardHost matches any host. Wildcard patterns only ever produce structural
// matches, never host-only ones.
const WildcardHost = "*"

// Defaults is the built-in source table. Order matters: the generic feed source
// must stay last so outlet-specific entries win.
func Defaults() []model.Source {
	return []model.Source{
		{
			ID: "1688", Name: "1688", Kind: model.SourceKindProduct, RateLimit: 30, Enabled: true,
			Patterns: []model.SourcePattern{
				{Host: "1688.com", Path: `^/offer/(\d+)\.html$`},
			},
		},
		{
			ID: "taobao", Name: "Taobao", Kind: model.SourceKindProduct, RateLimit: 20, Enabled: true,
			Patterns: []model.SourcePattern{
				{Host: "taobao.com", Path: `^/item\.htm$`, IDParam: "id"},
			},
		},
		{
			ID: "tmall", Name: "Tmall", Kind: model.SourceKindProduct, RateLimit: 20, Enabled: true,
			Patterns: []model.SourcePattern{
				{Host: "tmall.com", Path: `^/item\.htm$`, IDParam: "id"},
			},
		},
		{
			ID: "jd", Name: "JD.com", Kind: model.SourceKindProduct, RateLimit: 30, Enabled: true,
			Patterns: []model.SourcePattern{
				{Host: "jd.com", Path: `^/(\d+)\.html$`},
			},
		},
		{
			ID: "pinduoduo", Name: "Pinduoduo", Kind: model.SourceKindProduct, RateLimit: 15, Enabled: true,
			Patterns: []model.SourcePattern{
				{Host: "yangkeduo.com", Path: `^/goods\d*\.html$`, IDParam: "goods_id"},
				{Host: "pinduoduo.com", Path: `^/goods\d*\.html$`, IDParam: "goods_id"},
			},
		},
		{
			ID: "aliexpress", Name: "AliExpress", Kind: model.SourceKindProduct, RateLimit: 30, Enabled: true,
			Patterns: []model.SourcePattern{
				{Host: "aliexpress.com", Path: `^/item/(\d+)\.html$`},
				{Host: "aliexpress.ru", Path: `^/item/(\d+)\.html$`},
			},
		},
		{
			ID: "amazon", Name: "Amazon", Kind: model.SourceKindProduct, RateLimit: 20, Enabled: true,
			Patterns: []model.SourcePattern{
				{Host: "amazon.com", Path: `/(?:dp|gp/product)/([A-Z0-9]{10})`},
				{Host: "amazon.co.uk", Path: `/(?:dp|gp/product)/([A-Z0-9]{10})`},
				{Host: "amazon.de", Path: `/(?:dp|gp/product)/([A-Z0-9]{10})`},
			},
		},
		{
			ID: "ebay", Name: "eBay", Kind: model.SourceKindProduct, RateLimit: 30, Enabled: true,
			Patterns: []model.SourcePattern{
				{Host: "ebay.com", Path: `^/itm/(?:[^/]+/)?(\d+)`},
			},
		},
		{
			ID: "bbc", Name: "BBC News", Kind: model.SourceKindNews, RateLimit: 60, Enabled: true,
			Patterns: []model.SourcePattern{
				{Host: "bbc.co.uk", Path: `^/news/(?:articles/)?([\w-]+)$`},
				{Host: "bbc.com", Path: `^/news/(?:articles/)?([\w-]+)$`},
			},
		},
		{
			ID: "reuters", Name: "Reuters", Kind: model.SourceKindNews, RateLimit: 60, Enabled: true,
			Patterns: []model.SourcePattern{
				{Host: "reuters.com", Path: `^/(?:[\w-]+/)+([\w-]+-\d{4}-\d{2}-\d{2})/?$`},
			},
		},
		{
			ID: "rss", Name: "RSS/Atom feed", Kind: model.SourceKindNews, RateLimit: 60, Enabled: true,
			Patterns: []model.SourcePattern{
				{Host: WildcardHost, Path: `(?i)(?:/feed|/rss|/atom|\.rss|\.xml)/?$`},
			},
		},
	}
}
