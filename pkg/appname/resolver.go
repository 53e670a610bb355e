// Package appname resolves human-readable application names and
// categories for package names. Lookups can fail for uninstalled or
// restricted packages; the resolver always degrades to a name derived
// from the package itself and never surfaces the failure.
package appname

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCategory = "Uncategorized"

// Lookup resolves a package name to a display name and category.
// Implementations may shell out (adb) or consult a local table; a
// failed lookup returns ok=false and the resolver falls back.
type Lookup func(pkg string) (name, category string, ok bool)

type entry struct {
	name     string
	category string
}

// Resolver caches resolved names so each package is looked up once.
type Resolver struct {
	lookup Lookup
	cache  *lru.Cache[string, entry]
}

// New creates a resolver with the given lookup and cache size. lookup
// may be nil, in which case every name is derived from the package.
func New(lookup Lookup, cacheSize int) (*Resolver, error) {
	cache, err := lru.New[string, entry](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{lookup: lookup, cache: cache}, nil
}

// Resolve returns the display name and category for a package.
func (r *Resolver) Resolve(pkg string) (string, string) {
	if e, ok := r.cache.Get(pkg); ok {
		return e.name, e.category
	}

	e := entry{name: Derive(pkg), category: DefaultCategory}
	if r.lookup != nil {
		if name, category, ok := r.lookup(pkg); ok {
			if name != "" {
				e.name = name
			}
			if category != "" {
				e.category = category
			}
		}
	}

	r.cache.Add(pkg, e)
	return e.name, e.category
}

// Derive builds a readable fallback name from a package name:
// "com.example.photo_viewer" becomes "Photo Viewer".
func Derive(pkg string) string {
	if pkg == "" {
		return "Unknown"
	}

	last := pkg
	if i := strings.LastIndex(pkg, "."); i >= 0 && i < len(pkg)-1 {
		last = pkg[i+1:]
	}

	words := strings.FieldsFunc(last, func(r rune) bool {
		return r == '_' || r == '-'
	})
	if len(words) == 0 {
		return pkg
	}

	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
