// Package directory answers "which metric names does this user know about",
// combining recorded samples and existing rules.
package directory

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/qiniu/alertdash/internal/alerting/metrics"
)

// SampleScanLimit bounds how many sample rows are scanned for names.
const SampleScanLimit = 5000

type SampleNames interface {
	// SampleMetricNames returns the distinct names among at most scanLimit of the
	// user's sample rows, and how many rows were scanned.
	SampleMetricNames(ctx context.Context, userID string, scanLimit int) (names []string, scanned int, err error)
}

type RuleNames interface {
	ListMetricNames(ctx context.Context, userID string) ([]string, error)
}

// Cache holds a user's full, unfiltered name set, plus the number of sample
// rows still missing from the scan window when the set was built.
type Cache interface {
	Get(ctx context.Context, userID string) (names []string, ok bool, err error)
	Set(ctx context.Context, userID string, names []string, room int) error
	// Add inserts a rule name only when a set is already cached for the user.
	Add(ctx context.Context, userID, name string) error
	// AddSample takes one row of room and inserts name while room remains, so
	// the cached set never reaches past the sample scan window.
	AddSample(ctx context.Context, userID, name string) error
	Invalidate(ctx context.Context, userID string) error
}

type Directory struct {
	samples SampleNames
	rules   RuleNames
	cache   Cache
}

func New(samples SampleNames, rules RuleNames, cache Cache) *Directory {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Directory{samples: samples, rules: rules, cache: cache}
}

// ListNames returns the user's distinct metric names sorted ascending,
// keeping those that contain search ignoring case.
func (d *Directory) ListNames(ctx context.Context, userID, search string) ([]string, error) {
	names, err := d.all(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Filter(names, search), nil
}

func (d *Directory) all(ctx context.Context, userID string) ([]string, error) {
	names, ok, err := d.cache.Get(ctx, userID)
	switch {
	case err != nil:
		metrics.NameCacheLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("user_id", userID).Msg("metric name cache read failed")
	case ok:
		metrics.NameCacheLookups.WithLabelValues("hit").Inc()
		return Merge(names), nil
	default:
		metrics.NameCacheLookups.WithLabelValues("miss").Inc()
	}

	fromSamples, scanned, err := d.samples.SampleMetricNames(ctx, userID, SampleScanLimit)
	if err != nil {
		return nil, err
	}
	fromRules, err := d.rules.ListMetricNames(ctx, userID)
	if err != nil {
		return nil, err
	}
	names = Merge(fromSamples, fromRules)
	if err := d.cache.Set(ctx, userID, names, max(SampleScanLimit-scanned, 0)); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("metric name cache write failed")
	}
	return names, nil
}

// NameAdded records the name of a new or renamed rule.
func (d *Directory) NameAdded(ctx context.Context, userID, name string) {
	if err := d.cache.Add(ctx, userID, name); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("metric name cache add failed")
	}
}

// SampleNameAdded records the name of a newly ingested sample.
func (d *Directory) SampleNameAdded(ctx context.Context, userID, name string) {
	if err := d.cache.AddSample(ctx, userID, name); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("metric name cache add failed")
	}
}

// NamesChanged drops the cached set after a rule rename or delete.
func (d *Directory) NamesChanged(ctx context.Context, userID string) {
	if err := d.cache.Invalidate(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("metric name cache invalidate failed")
	}
}

// Merge unions the lists, dropping empty names and exact duplicates, sorted ascending.
// Names differing only in case are kept apart.
func Merge(lists ...[]string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, l := range lists {
		for _, n := range l {
			if n == "" {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Filter keeps names containing the trimmed search term, ignoring case.
func Filter(names []string, search string) []string {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return names
	}
	out := []string{}
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), search) {
			out = append(out, n)
		}
	}
	return out
}

// NoopCache never holds anything.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) ([]string, bool, error) { return nil, false, nil }
func (NoopCache) Set(context.Context, string, []string, int) error     { return nil }
func (NoopCache) Add(context.Context, string, string) error            { return nil }
func (NoopCache) AddSample(context.Context, string, string) error      { return nil }
func (NoopCache) Invalidate(context.Context, string) error             { return nil }
