package generate

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// ProjectContext summarizes a project directory for the agent preamble.
type ProjectContext struct {
	Path      string
	Structure string
	// Manifests holds "label: summary" lines for recognized manifest files.
	Manifests []string
}

const (
	defaultStructureTTL   = 10 * time.Minute
	defaultStructureLimit = 20

	structureJustCreated = "Empty project directory (just created)"
	structureEmpty       = "Empty project directory"
	structureUnreadable  = "Could not read project structure"
)

var errStructureLimit = errors.New("structure limit reached")

// ProjectCache is a TTL cache of ProjectContext entries keyed by absolute path.
type ProjectCache struct {
	cache  *ttlcache.Cache[string, *ProjectContext]
	group  singleflight.Group
	ignore []glob.Glob
	limit  int
}

// NewProjectCache creates a cache. Entries expire after ttl; at most limit
// structure lines are kept per project. Names matching an ignore pattern are
// skipped along with their contents.
func NewProjectCache(ttl time.Duration, limit int, ignore []string) *ProjectCache {
	if ttl <= 0 {
		ttl = defaultStructureTTL
	}
	if limit <= 0 {
		limit = defaultStructureLimit
	}

	globs := make([]glob.Glob, 0, len(ignore))
	for _, p := range ignore {
		g, err := glob.Compile(p)
		if err != nil {
			slog.Warn("invalid ignore pattern", "pattern", p, "error", err)
			continue
		}
		globs = append(globs, g)
	}

	// No expiration goroutine: ttlcache hides expired items from Get and
	// Keys, and Get evicts them.
	c := ttlcache.New[string, *ProjectContext](
		ttlcache.WithTTL[string, *ProjectContext](ttl),
		ttlcache.WithDisableTouchOnHit[string, *ProjectContext](),
	)
	return &ProjectCache{cache: c, ignore: globs, limit: limit}
}

// Close drops every cached entry.
func (pc *ProjectCache) Close() {
	pc.cache.DeleteAll()
}

// Get returns the context for dir, gathering it on a miss. Concurrent
// misses for the same dir share one gather.
func (pc *ProjectCache) Get(dir string) *ProjectContext {
	key := filepath.Clean(dir)
	pc.cache.DeleteExpired()
	if item := pc.cache.Get(key); item != nil {
		return item.Value()
	}

	v, _, _ := pc.group.Do(key, func() (any, error) {
		pctx := pc.gather(key)
		pc.cache.Set(key, pctx, ttlcache.DefaultTTL)
		return pctx, nil
	})
	return v.(*ProjectContext)
}

// Invalidate drops the cached entry for dir.
func (pc *ProjectCache) Invalidate(dir string) {
	pc.cache.Delete(filepath.Clean(dir))
}

// InvalidatePath drops every cached entry whose directory is path or
// contains it.
func (pc *ProjectCache) InvalidatePath(path string) {
	path = filepath.Clean(path)
	for _, key := range pc.cache.Keys() {
		if path == key || strings.HasPrefix(path, strings.TrimSuffix(key, string(filepath.Separator))+string(filepath.Separator)) {
			pc.cache.Delete(key)
		}
	}
}

// Cached reports the directories with a live cache entry.
func (pc *ProjectCache) Cached() []string {
	keys := pc.cache.Keys()
	sort.Strings(keys)
	return keys
}

func (pc *ProjectCache) ignored(name string) bool {
	for _, g := range pc.ignore {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// gather walks dir in lexical order and collects its structure and manifests.
func (pc *ProjectCache) gather(dir string) *ProjectContext {
	pctx := &ProjectContext{Path: dir}

	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("failed to create project directory", "path", dir, "error", err)
			pctx.Structure = structureUnreadable
			return pctx
		}
		pctx.Structure = structureJustCreated
		return pctx
	}
	if err != nil || !info.IsDir() {
		pctx.Structure = structureUnreadable
		return pctx
	}

	var lines []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		if pc.ignored(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if len(lines) >= pc.limit {
			return errStructureLimit
		}
		rel, _ := filepath.Rel(dir, path)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			lines = append(lines, "📁 "+rel+"/")
		} else {
			lines = append(lines, "📄 "+rel)
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStructureLimit) {
		slog.Error("error getting project structure", "path", dir, "error", err)
		pctx.Structure = structureUnreadable
		return pctx
	}

	if len(lines) == 0 {
		pctx.Structure = structureEmpty
	} else {
		pctx.Structure = strings.Join(lines, "\n")
	}
	pctx.Manifests = gatherManifests(dir)

	slog.Debug("gathered project context", "path", dir, "entries", len(lines))
	return pctx
}
