// Package source fetches biography text from local files, web pages and S3.
package source

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Kind identifies where a text comes from.
type Kind string

const (
	KindFile Kind = "file"
	KindWeb  Kind = "web"
	KindS3   Kind = "s3"
)

// Loader returns the text at a location.
type Loader interface {
	Load(ctx context.Context, location string) (string, error)
}

// KindOf classifies a location: http(s) URLs are web pages, s3:// URLs are
// objects, anything else is a local path.
func KindOf(location string) Kind {
	lower := strings.ToLower(location)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return KindWeb
	case strings.HasPrefix(lower, "s3://"):
		return KindS3
	}
	return KindFile
}

// Router dispatches to a Loader by location kind. Kinds without a loader
// fail.
type Router struct {
	loaders map[Kind]Loader
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{loaders: make(map[Kind]Loader)}
}

// Handle registers l for kind and returns the router for chaining.
func (r *Router) Handle(kind Kind, l Loader) *Router {
	r.loaders[kind] = l
	return r
}

// Load implements Loader.
func (r *Router) Load(ctx context.Context, location string) (string, error) {
	kind := KindOf(location)
	l, ok := r.loaders[kind]
	if !ok {
		return "", fmt.Errorf("no %s source configured for %s", kind, location)
	}
	return l.Load(ctx, location)
}

// cache memoizes successful loads and collapses concurrent loads of the
// same key into one fetch.
type cache struct {
	mu    sync.RWMutex
	items map[string]string
	group singleflight.Group
}

func newCache() *cache {
	return &cache{items: make(map[string]string)}
}

func (c *cache) get(key string, fetch func() (string, error)) (string, error) {
	c.mu.RLock()
	if cached, ok := c.items[key]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		if cached, ok := c.items[key]; ok {
			c.mu.RUnlock()
			return cached, nil
		}
		c.mu.RUnlock()

		text, err := fetch()
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		c.items[key] = text
		c.mu.Unlock()
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
