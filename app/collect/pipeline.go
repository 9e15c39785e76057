package collect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/lysyi3m/listing-comb/app/model"
	"github.com/lysyi3m/listing-comb/app/source"
)

// Pipeline runs fetch, parse, normalize and filter for every URL of a task and
// reports each outcome to a Sink. It never touches task counters itself.
type Pipeline struct {
	registry   *source.Registry
	fetcher    Fetcher
	parsers    *Parsers
	normalizer *Normalizer
	limiters   *Limiters
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewPipeline(registry *source.Registry, fetcher Fetcher, parsers *Parsers, normalizer *Normalizer, limiters *Limiters) *Pipeline {
	return &Pipeline{
		registry:   registry,
		fetcher:    fetcher,
		parsers:    parsers,
		normalizer: normalizer,
		limiters:   limiters,
		sleep:      sleepContext,
	}
}

// Run dispatches the task's URLs in order with at most Settings.Concurrency in
// flight and Settings.Delay between dispatches. The sink is asked before each
// dispatch whether to continue; fetches already started are allowed to finish.
func (p *Pipeline) Run(ctx context.Context, task *model.CollectionTask, sink Sink) error {
	registered, err := p.registry.Get(task.SourceID)
	if err != nil {
		return err
	}
	src := &registered

	limiter := p.limiters.For(src)
	concurrency := max(task.Settings.Concurrency, 1)
	delay := task.Settings.GetDelay()

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

dispatch:
	for i, pageURL := range task.URLs {
		if i > 0 && delay > 0 {
			if err := p.sleep(ctx, delay); err != nil {
				break
			}
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}

		if ctx.Err() != nil || !sink.Active() {
			<-sem
			slog.Debug("Dispatch stopped", "task_id", task.ID, "remaining", len(task.URLs)-i)
			break
		}

		wg.Add(1)
		go func(pageURL string) {
			defer wg.Done()
			defer func() { <-sem }()
			sink.Deliver(p.collect(ctx, task, src, limiter, pageURL))
		}(pageURL)
	}

	wg.Wait()
	return nil
}

func (p *Pipeline) collect(ctx context.Context, task *model.CollectionTask, src *model.Source, limiter *rate.Limiter, pageURL string) ItemResult {
	result := ItemResult{URL: pageURL}

	detection := p.registry.Detect(pageURL)
	if detection.Source == nil || detection.Source.ID != src.ID {
		detection = source.Detection{}
	}

	resp, attempts, err := p.fetch(ctx, task, limiter, pageURL)
	result.Attempts = attempts
	if err != nil {
		result.Err = err
		return result
	}

	parser, parserName := p.parsers.For(src, resp)
	raw, err := parser.Parse(resp.Body, src)
	if err != nil {
		result.Err = err
		return result
	}

	record, err := p.normalizer.Normalize(raw, task, src, pageURL, detection)
	if err != nil {
		result.Err = err
		return result
	}

	slog.Debug("Item collected", "task_id", task.ID, "url", pageURL, "parser", parserName, "attempts", attempts)

	result.Record = record
	return result
}

// fetch retries retryable fetch errors up to Settings.RetryCount times, waiting
// Settings.Delay between attempts. Every attempt draws from the source's limiter.
func (p *Pipeline) fetch(ctx context.Context, task *model.CollectionTask, limiter *rate.Limiter, pageURL string) (*FetchResponse, int, error) {
	maxAttempts := max(task.Settings.RetryCount, 0) + 1
	opts := FetchOptions{Timeout: task.Settings.GetTimeout()}

	for attempt := 1; ; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, attempt - 1, &model.FetchError{URL: pageURL, Err: err}
		}

		resp, err := p.fetcher.Fetch(ctx, pageURL, opts)
		if err == nil {
			return resp, attempt, nil
		}

		var fetchErr *model.FetchError
		if !errors.As(err, &fetchErr) || !fetchErr.Retryable() || attempt >= maxAttempts || ctx.Err() != nil {
			return nil, attempt, err
		}

		slog.Debug("Fetch failed, retrying", "url", pageURL, "attempt", attempt, "max_attempts", maxAttempts, "error", err)

		if err := p.sleep(ctx, task.Settings.GetDelay()); err != nil {
			return nil, attempt, err
		}
	}
}

// Discover expands the shop pages of a shop task into product URLs of the same
// source, in page order, without duplicates and capped at Settings.MaxItems.
func (p *Pipeline) Discover(ctx context.Context, task *model.CollectionTask) ([]string, error) {
	registered, err := p.registry.Get(task.SourceID)
	if err != nil {
		return nil, err
	}
	src := &registered
	limiter := p.limiters.For(src)

	seen := map[string]bool{}
	var found []string

	for _, shopURL := range task.URLs {
		resp, _, err := p.fetch(ctx, task, limiter, shopURL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch shop page: %w", err)
		}

		links, err := extractLinks(resp.Body, shopURL)
		if err != nil {
			return nil, err
		}

		for _, link := range links {
			detection := p.registry.Detect(link)
			if !detection.IsValid || detection.Source.ID != src.ID || detection.Confidence < source.ConfidenceExact {
				continue
			}
			if seen[link] {
				continue
			}
			seen[link] = true
			found = append(found, link)

			if task.Settings.MaxItems > 0 && len(found) >= task.Settings.MaxItems {
				return found, nil
			}
		}
	}

	slog.Debug("Shop pages expanded", "task_id", task.ID, "pages", len(task.URLs), "products", len(found))

	return found, nil
}

func extractLinks(body []byte, pageURL string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid shop URL %s", model.ErrValidation, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read shop page: %v", model.ErrParse, err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(attr(s, "href"))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		links = append(links, abs.String())
	})

	return links, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
