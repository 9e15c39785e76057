package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lysyi3m/listing-comb/app/model"
)

func newDefaultRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewRegistry(Defaults())
	if err != nil {
		t.Fatal(err)
	}
	return registry
}

func TestDetect_StructuralMatches(t *testing.T) {
	registry := newDefaultRegistry(t)

	tests := []struct {
		url        string
		sourceID   string
		externalID string
	}{
		{"https://detail.1688.com/offer/612345678901.html", "1688", "612345678901"},
		{"https://item.taobao.com/item.htm?id=5566778899&spm=a1z10", "taobao", "5566778899"},
		{"https://detail.tmall.com/item.htm?id=42", "tmall", "42"},
		{"https://item.jd.com/100012043978.html", "jd", "100012043978"},
		{"https://mobile.yangkeduo.com/goods.html?goods_id=123456", "pinduoduo", "123456"},
		{"https://www.aliexpress.com/item/1005001234567890.html", "aliexpress", "1005001234567890"},
		{"https://www.amazon.com/Some-Product/dp/B08N5WRWNW/ref=sr_1_1", "amazon", "B08N5WRWNW"},
		{"https://www.ebay.com/itm/vintage-lamp/314159265358", "ebay", "314159265358"},
		{"https://www.bbc.co.uk/news/articles/c4gl8z0pe8no", "bbc", "c4gl8z0pe8no"},
		{"https://www.reuters.com/world/europe/markets-rally-2024-05-01/", "reuters", "markets-rally-2024-05-01"},
		{"https://blog.example.org/feed", "rss", "/feed"},
	}

	for _, tt := range tests {
		t.Run(tt.sourceID, func(t *testing.T) {
			detection := registry.Detect(tt.url)

			if detection.Source == nil {
				t.Fatalf("Expected source %s for %s, got none", tt.sourceID, tt.url)
			}
			if detection.Source.ID != tt.sourceID {
				t.Errorf("Expected source %s, got %s", tt.sourceID, detection.Source.ID)
			}
			if detection.Confidence != ConfidenceExact {
				t.Errorf("Expected confidence 1.0, got %v", detection.Confidence)
			}
			if detection.ExternalID != tt.externalID {
				t.Errorf("Expected external id '%s', got '%s'", tt.externalID, detection.ExternalID)
			}
			if !detection.IsValid {
				t.Error("Expected detection to be valid")
			}
		})
	}
}

func TestDetect_HostOnlyMatch(t *testing.T) {
	registry := newDefaultRegistry(t)

	detection := registry.Detect("https://shop.1688.com/page/creditdetail.htm")

	if detection.Source == nil || detection.Source.ID != "1688" {
		t.Fatalf("Expected 1688 host-only match, got %+v", detection)
	}
	if detection.Confidence != ConfidenceHostOnly {
		t.Errorf("Expected confidence 0.5, got %v", detection.Confidence)
	}
	if detection.ExternalID != "" {
		t.Errorf("Expected no external id, got '%s'", detection.ExternalID)
	}
}

func TestDetect_QueryParamMissingIsHostOnly(t *testing.T) {
	registry := newDefaultRegistry(t)

	detection := registry.Detect("https://item.taobao.com/item.htm")

	if detection.Confidence != ConfidenceHostOnly {
		t.Errorf("Expected confidence 0.5 without id parameter, got %v", detection.Confidence)
	}
}

func TestDetect_NoMatch(t *testing.T) {
	registry := newDefaultRegistry(t)

	inputs := []string{
		"",
		"not a url",
		"ftp://1688.com/offer/1.html",
		"https://example.com/products/42",
		"http://",
		"mailto:sales@1688.com",
	}

	for _, input := range inputs {
		detection := registry.Detect(input)
		if detection.Source != nil {
			t.Errorf("Expected no source for %q, got %s", input, detection.Source.ID)
		}
		if detection.Confidence != 0 {
			t.Errorf("Expected zero confidence for %q, got %v", input, detection.Confidence)
		}
		if detection.IsValid {
			t.Errorf("Expected %q to be invalid", input)
		}
	}
}

func TestDetect_HostSuffixDoesNotMatchLookalike(t *testing.T) {
	registry := newDefaultRegistry(t)

	detection := registry.Detect("https://notjd.com/100012043978.html")
	if detection.Source != nil {
		t.Errorf("Expected lookalike host to be rejected, got %s", detection.Source.ID)
	}
}

func TestDetect_MoreSpecificPatternWins(t *testing.T) {
	registry, err := NewRegistry([]model.Source{
		{
			ID: "shop", Name: "Shop", Kind: model.SourceKindProduct, Enabled: true,
			Patterns: []model.SourcePattern{
				{Host: "shop.test", Path: `^/p/(\w+)`},
				{Host: "shop.test", Path: `^/p/(\w+)/variant/(\d+)$`},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	detection := registry.Detect("https://shop.test/p/abc/variant/7")
	if detection.ExternalID != "abc" {
		t.Errorf("Expected id from the longer pattern's first group 'abc', got '%s'", detection.ExternalID)
	}
	if detection.Confidence != ConfidenceExact {
		t.Errorf("Expected confidence 1.0, got %v", detection.Confidence)
	}
}

func TestDetect_DisabledSourceIsSkipped(t *testing.T) {
	sources := Defaults()
	for i := range sources {
		if sources[i].ID == "jd" {
			sources[i].Enabled = false
		}
	}
	registry, err := NewRegistry(sources)
	if err != nil {
		t.Fatal(err)
	}

	detection := registry.Detect("https://item.jd.com/100012043978.html")
	if detection.Source != nil {
		t.Errorf("Expected disabled source to be skipped, got %s", detection.Source.ID)
	}
}

func TestRegistry_RejectsInvalidSource(t *testing.T) {
	_, err := NewRegistry([]model.Source{
		{ID: "bad", Kind: model.SourceKindProduct, Patterns: []model.SourcePattern{{Host: "bad.test", Path: "("}}},
	})
	if err == nil {
		t.Fatal("Expected error for invalid path pattern")
	}

	_, err = NewRegistry([]model.Source{
		{ID: "wild", Kind: model.SourceKindNews, Patterns: []model.SourcePattern{{Host: WildcardHost}}},
	})
	if err == nil {
		t.Fatal("Expected error for wildcard pattern without path")
	}
}

func TestRegistry_NewSourceInsertedBeforeWildcard(t *testing.T) {
	registry := newDefaultRegistry(t)

	err := registry.Register(model.Source{
		ID: "myfeeds", Name: "My feeds", Kind: model.SourceKindNews, Enabled: true,
		Patterns: []model.SourcePattern{{Host: "news.example.com", Path: `^/(rss)$`}},
	})
	if err != nil {
		t.Fatal(err)
	}

	detection := registry.Detect("https://news.example.com/rss")
	if detection.Source == nil || detection.Source.ID != "myfeeds" {
		t.Fatalf("Expected myfeeds to win over generic rss, got %+v", detection.Source)
	}
}

func TestLoader_OverridesBuiltInSource(t *testing.T) {
	tempDir := t.TempDir()

	content := `
rate_limit: 5
enabled: false
`
	if err := os.WriteFile(filepath.Join(tempDir, "taobao.yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	newSource := `
id: "weidian"
name: "Weidian"
kind: "product"
rate_limit: 10
patterns:
  - host: "weidian.com"
    path: "^/item\\.html$"
    id_param: "itemID"
`
	if err := os.WriteFile(filepath.Join(tempDir, "weidian.yaml"), []byte(newSource), 0644); err != nil {
		t.Fatal(err)
	}

	registry := newDefaultRegistry(t)
	count, err := NewLoader(tempDir).Run(registry)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("Expected 2 files loaded, got %d", count)
	}

	taobao, err := registry.Get("taobao")
	if err != nil {
		t.Fatal(err)
	}
	if taobao.RateLimit != 5 {
		t.Errorf("Expected rate limit 5, got %d", taobao.RateLimit)
	}
	if taobao.Enabled {
		t.Error("Expected taobao to be disabled")
	}
	if len(taobao.Patterns) == 0 {
		t.Error("Expected built-in patterns to be kept")
	}

	detection := registry.Detect("https://weidian.com/item.html?itemID=998")
	if detection.Source == nil || detection.Source.ID != "weidian" {
		t.Fatalf("Expected weidian detection, got %+v", detection)
	}
	if detection.ExternalID != "998" {
		t.Errorf("Expected external id 998, got %s", detection.ExternalID)
	}
}

func TestLoader_MissingDirectory(t *testing.T) {
	registry := newDefaultRegistry(t)

	count, err := NewLoader(filepath.Join(t.TempDir(), "missing")).Run(registry)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Expected 0 files, got %d", count)
	}
}

func TestLoader_InvalidYAML(t *testing.T) {
	tempDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tempDir, "broken.yml"), []byte("patterns: [::"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewLoader(tempDir).Run(newDefaultRegistry(t))
	if err == nil {
		t.Error("Expected error for invalid YAML")
	}
}
