package cart

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 5 * time.Second
)

// ReportCache holds recent reports so repeated quantity-stepper requests
// skip the database. Entries only live for a few seconds.
type ReportCache interface {
	Get(key string) (Report, bool)
	Add(key string, report Report)
	Purge()
}

type lruReportCache struct {
	lru *expirable.LRU[string, Report]
}

// NewLRUReportCache builds a bounded cache whose entries expire after ttl.
func NewLRUReportCache(size int, ttl time.Duration) ReportCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &lruReportCache{lru: expirable.NewLRU[string, Report](size, nil, ttl)}
}

func (c *lruReportCache) Get(key string) (Report, bool) {
	report, ok := c.lru.Get(key)
	if !ok {
		return Report{}, false
	}
	return report.clone(), true
}

func (c *lruReportCache) Add(key string, report Report) {
	c.lru.Add(key, report.clone())
}

func (c *lruReportCache) Purge() {
	c.lru.Purge()
}

// clone detaches the slices so cached reports and handed-out reports never
// share backing arrays.
func (r Report) clone() Report {
	r.ProducerValidations = slices.Clone(r.ProducerValidations)
	r.Errors = slices.Clone(r.Errors)
	return r
}

// noopCache is used when no cache is injected.
type noopCache struct{}

func (noopCache) Get(string) (Report, bool) { return Report{}, false }
func (noopCache) Add(string, Report)        {}
func (noopCache) Purge()                    {}

// Fingerprint hashes the sorted line:quantity pairs of a cart.
func Fingerprint(lines []Line) string {
	pairs := make([]string, 0, len(lines))
	for _, line := range lines {
		pairs = append(pairs, line.key()+":"+strconv.Itoa(line.Quantity))
	}
	sort.Strings(pairs)
	sum := sha256.Sum256([]byte(strings.Join(pairs, "|")))
	return hex.EncodeToString(sum[:])
}

// CacheKey scopes a cart fingerprint to its owner.
func CacheKey(customerID uuid.UUID, lines []Line) string {
	return customerID.String() + ":" + Fingerprint(lines)
}
