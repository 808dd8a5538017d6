// Lremty, August 2026
// License AGPL3

package main

import (
	"context"
	"mime"
	"path/filepath"
	"strings"

	"github.com/knadh/stuffbin"

	"github.com/lremty/lremty/internal/cache"
)

// assetFetcher resolves cache resources from their origin: local paths come
// from the stuffbin filesystem, absolute URLs from the network.
type assetFetcher struct {
	fs   stuffbin.FileSystem
	http *cache.HTTPFetcher
}

// Fetch reads a resource from the embedded filesystem or the network.
func (f *assetFetcher) Fetch(ctx context.Context, url string) (cache.Entry, error) {
	if !strings.HasPrefix(url, "/") {
		return f.http.Fetch(ctx, url)
	}

	b, err := f.fs.Read(url)
	if err != nil {
		return cache.Entry{}, err
	}
	return cache.Entry{
		Body:        b,
		ContentType: mime.TypeByExtension(filepath.Ext(url)),
	}, nil
}
