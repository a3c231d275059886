package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coocood/freecache"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/edupage-sync/internal/models"
	"github.com/noah-isme/edupage-sync/internal/upstream"
	"github.com/noah-isme/edupage-sync/pkg/config"
)

var (
	menuContainerKeys = []string{"menu", "dishes", "items", "data", "result"}
	menuListKeys      = []string{"dishes", "items", "data", "result"}
	menuTextKeys      = []string{"text", "description", "name", "title"}
)

// MenuCache memoises per-day menu lookups in a freecache segment.
type MenuCache struct {
	cache *freecache.Cache
	ttl   time.Duration
}

// NewMenuCache wraps cache with the given entry lifetime. A nil cache or a
// non-positive ttl disables memoisation.
func NewMenuCache(cache *freecache.Cache, ttl time.Duration) *MenuCache {
	return &MenuCache{cache: cache, ttl: ttl}
}

func (c *MenuCache) key(school string, date time.Time) []byte {
	return []byte("menu:" + school + ":" + formatDay(date))
}

// Get returns the cached dish for the day and whether an entry existed.
func (c *MenuCache) Get(school string, date time.Time) (*string, bool) {
	if c == nil || c.cache == nil || c.ttl <= 0 {
		return nil, false
	}
	value, err := c.cache.Get(c.key(school, date))
	if err != nil || len(value) == 0 {
		return nil, false
	}
	if value[0] == '0' {
		return nil, true
	}
	dish := string(value[1:])
	return &dish, true
}

// Set stores the lookup outcome for the day; a nil dish records "no menu".
func (c *MenuCache) Set(school string, date time.Time, dish *string) {
	if c == nil || c.cache == nil || c.ttl <= 0 {
		return
	}
	value := []byte("0")
	if dish != nil {
		value = append([]byte("1"), *dish...)
	}
	_ = c.cache.Set(c.key(school, date), value, int(c.ttl.Seconds()))
}

// MenuServiceConfig tunes the menu lookup.
type MenuServiceConfig struct {
	School       string
	URLTemplates []string
}

// MenuService resolves the cafeteria main dish by probing the known endpoint
// variants in order.
type MenuService struct {
	transport upstream.Transport
	cache     *MenuCache
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       MenuServiceConfig
}

// NewMenuService constructs a MenuService.
func NewMenuService(transport upstream.Transport, cache *MenuCache, metrics *MetricsService, cfg MenuServiceConfig, logger *zap.Logger) *MenuService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.URLTemplates) == 0 {
		cfg.URLTemplates = config.DefaultMenuURLTemplates
	}
	return &MenuService{transport: transport, cache: cache, metrics: metrics, logger: logger, cfg: cfg}
}

// FetchDayMenu returns the main dish for date or nil when no variant yields a
// menu. It never fails: an absent menu is an expected outcome.
func (s *MenuService) FetchDayMenu(ctx context.Context, date time.Time) *string {
	if dish, ok := s.cache.Get(s.cfg.School, date); ok {
		return dish
	}

	day := formatDay(date)
	payload := map[string]string{"date_from": day, "date_to": day}
	for i, template := range s.cfg.URLTemplates {
		url := template
		if strings.Contains(template, "%s") {
			url = fmt.Sprintf(template, s.cfg.School)
		}
		body, err := s.transport.PostJSON(ctx, url, payload)
		if err != nil {
			s.logger.Debug("menu variant failed", zap.Int("variant", i+1), zap.String("date", day), zap.Error(err))
			continue
		}
		var doc interface{}
		if err := json.Unmarshal(body, &doc); err != nil || !hasMenuContainer(doc) {
			s.logger.Debug("menu variant returned unrecognised shape", zap.Int("variant", i+1), zap.String("date", day))
			continue
		}
		dish := ExtractMainDish(doc)
		s.cache.Set(s.cfg.School, date, dish)
		s.metrics.RecordMenuLookup(strconv.Itoa(i + 1))
		return dish
	}

	s.metrics.RecordMenuLookup("none")
	s.logger.Debug("no menu available", zap.String("date", day))
	return nil
}

// FetchWeekMenu looks up each day concurrently. A day without data yields an
// entry with a nil dish and never affects the other days.
func (s *MenuService) FetchWeekMenu(ctx context.Context, days []time.Time) []models.MenuEntry {
	entries := make([]models.MenuEntry, len(days))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range days {
		i, d := i, d
		g.Go(func() error {
			entries[i] = models.MenuEntry{Date: formatDay(d), MainDish: s.FetchDayMenu(gctx, d)}
			return nil
		})
	}
	_ = g.Wait()
	return entries
}

func hasMenuContainer(doc interface{}) bool {
	switch v := doc.(type) {
	case []interface{}:
		return true
	case map[string]interface{}:
		for _, key := range menuContainerKeys {
			if _, ok := v[key]; ok {
				return true
			}
		}
	}
	return false
}

// ExtractMainDish pulls the first usable dish text out of a menu response. It
// returns nil when nothing matches.
func ExtractMainDish(doc interface{}) *string {
	if list, ok := doc.([]interface{}); ok {
		if len(list) == 0 {
			return nil
		}
		return elementText(list[0])
	}
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil
	}

	for _, key := range menuListKeys {
		if text := firstElementText(obj[key]); text != nil {
			return text
		}
	}
	if menu, ok := obj["menu"].(map[string]interface{}); ok {
		if menuA, ok := menu["menuA"].(map[string]interface{}); ok {
			if name := stringField(menuA, "name"); name != nil {
				return name
			}
		}
		for _, key := range []string{"dishes", "items"} {
			if text := firstElementText(menu[key]); text != nil {
				return text
			}
		}
		if name := stringField(menu, "name"); name != nil {
			return name
		}
	}
	for _, key := range []string{"text", "description", "name"} {
		if text := stringField(obj, key); text != nil {
			return text
		}
	}
	return nil
}

func firstElementText(v interface{}) *string {
	list, ok := v.([]interface{})
	if !ok || len(list) == 0 {
		return nil
	}
	return elementText(list[0])
}

func elementText(v interface{}) *string {
	switch elem := v.(type) {
	case string:
		return nonBlank(elem)
	case map[string]interface{}:
		for _, key := range menuTextKeys {
			if text := stringField(elem, key); text != nil {
				return text
			}
		}
	}
	return nil
}

func stringField(obj map[string]interface{}, key string) *string {
	s, ok := obj[key].(string)
	if !ok {
		return nil
	}
	return nonBlank(s)
}

func nonBlank(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
