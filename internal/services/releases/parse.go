// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package releases

import (
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/moistari/rls"
)

// ReleaseCache provides cached rls parsing to avoid re-parsing the same indexer titles
// across repeated searches.
type ReleaseCache struct {
	cache *ttlcache.Cache[string, rls.Release]
}

// NewReleaseCache creates a new release cache with 5 minute expiration
func NewReleaseCache() *ReleaseCache {
	cache := ttlcache.New(ttlcache.Options[string, rls.Release]{}.
		SetDefaultTTL(5 * time.Minute))

	return &ReleaseCache{
		cache: cache,
	}
}

// Parse parses a release name using rls, with caching
func (rc *ReleaseCache) Parse(name string) rls.Release {
	if cached, found := rc.cache.Get(name); found {
		return cached
	}

	release := rls.ParseString(name)
	rc.cache.Set(name, release, ttlcache.DefaultTTL)

	return release
}
