package intercept

import (
	"net/http"
	"path"
	"strings"
)

// Strategy is how the interception layer serves a request
type Strategy string

const (
	StrategyQueueOnFailure       Strategy = "queue-on-failure"
	StrategyNetworkFirst         Strategy = "network-first"
	StrategyCacheFirst           Strategy = "cache-first"
	StrategyStaleWhileRevalidate Strategy = "stale-while-revalidate"
	StrategyPassthrough          Strategy = "passthrough"
)

// Defaults used when the config leaves them empty
var (
	DefaultAPIPrefix       = "/api/v1/"
	DefaultAssetPrefixes   = []string{"/assets/", "/static/"}
	DefaultAssetExtensions = []string{".js", ".css", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".woff", ".woff2", ".webp"}
)

// ClassifierConfig describes the url space of the application
type ClassifierConfig struct {
	APIPrefix       string
	EntityTypes     []string
	AssetPrefixes   []string
	AssetExtensions []string
	PagePrefixes    []string
}

// Route is the outcome of classification
type Route struct {
	Strategy   Strategy
	EntityType string // только для API запросов к сущностям
	EntityID   string // пусто для коллекции
}

// Classifier maps a request to a strategy. Earlier rules win.
type Classifier struct {
	entities        map[string]struct{}
	apiPrefix       string
	assetPrefixes   []string
	assetExtensions map[string]struct{}
	pagePrefixes    []string
}

// NewClassifier builds a classifier, filling defaults
func NewClassifier(cfg ClassifierConfig) *Classifier {
	c := &Classifier{
		entities:        make(map[string]struct{}, len(cfg.EntityTypes)),
		apiPrefix:       cfg.APIPrefix,
		assetPrefixes:   cfg.AssetPrefixes,
		assetExtensions: make(map[string]struct{}),
		pagePrefixes:    cfg.PagePrefixes,
	}
	if c.apiPrefix == "" {
		c.apiPrefix = DefaultAPIPrefix
	}
	if !strings.HasSuffix(c.apiPrefix, "/") {
		c.apiPrefix += "/"
	}
	if c.assetPrefixes == nil {
		c.assetPrefixes = DefaultAssetPrefixes
	}

	exts := cfg.AssetExtensions
	if exts == nil {
		exts = DefaultAssetExtensions
	}
	for _, ext := range exts {
		c.assetExtensions[strings.ToLower(ext)] = struct{}{}
	}
	for _, t := range cfg.EntityTypes {
		c.entities[t] = struct{}{}
	}
	return c
}

// Classify returns the strategy for r
func (c *Classifier) Classify(r *http.Request) Route {
	p := r.URL.Path
	read := r.Method == http.MethodGet || r.Method == http.MethodHead

	if strings.HasPrefix(p, c.apiPrefix) {
		if !read {
			if route, ok := c.mutation(r.Method, strings.TrimPrefix(p, c.apiPrefix)); ok {
				return route
			}
			return Route{Strategy: StrategyPassthrough}
		}
		return Route{Strategy: StrategyNetworkFirst}
	}

	if !read {
		return Route{Strategy: StrategyPassthrough}
	}

	if c.isAsset(p) {
		return Route{Strategy: StrategyCacheFirst}
	}
	if c.isPage(r) {
		return Route{Strategy: StrategyStaleWhileRevalidate}
	}
	return Route{Strategy: StrategyPassthrough}
}

// mutation matches {entityType} for POST and {entityType}/{id} for
// PUT, PATCH and DELETE
func (c *Classifier) mutation(method, rest string) (Route, bool) {
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if _, ok := c.entities[parts[0]]; !ok {
		return Route{}, false
	}

	route := Route{Strategy: StrategyQueueOnFailure, EntityType: parts[0]}
	switch {
	case len(parts) == 1 && method == http.MethodPost:
		return route, true
	case len(parts) == 2 && parts[1] != "":
		switch method {
		case http.MethodPut, http.MethodPatch, http.MethodDelete:
			route.EntityID = parts[1]
			return route, true
		}
	}
	return Route{}, false
}

func (c *Classifier) isAsset(p string) bool {
	for _, prefix := range c.assetPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	_, ok := c.assetExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

func (c *Classifier) isPage(r *http.Request) bool {
	for _, prefix := range c.pagePrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
