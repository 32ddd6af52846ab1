package generate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/anupsingh-ai/justcopy-ai-ide/index"
)

// Store is the retrieval side of the context store.
type Store interface {
	Query(ctx context.Context, text string, k int) index.Result
	Index(ctx context.Context, text string) (string, error)
}

// Info holds gathered context for a chat request.
type Info struct {
	Intent    Intent
	Retrieved index.Result
	Project   *ProjectContext
}

// Gatherer collects context for requests.
type Gatherer struct {
	store      Store
	projects   *ProjectCache
	classifier Classifier
	maxResults int
}

// NewGatherer creates a gatherer. classifier may be nil for the keyword
// classifier.
func NewGatherer(store Store, projects *ProjectCache, classifier Classifier, maxResults int) *Gatherer {
	if classifier == nil {
		classifier = KeywordClassifier{}
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Gatherer{
		store:      store,
		projects:   projects,
		classifier: classifier,
		maxResults: maxResults,
	}
}

// Retrieve returns up to maxResults stored documents relevant to query.
func (g *Gatherer) Retrieve(ctx context.Context, query string) index.Result {
	res := g.store.Query(ctx, query, g.maxResults)
	if res.Degraded {
		slog.Warn("context retrieval degraded", "error", res.Err)
	}
	return res
}

// Gather classifies the message, retrieves stored context and summarizes
// the project directory concurrently.
func (g *Gatherer) Gather(ctx context.Context, message, projectDir string) *Info {
	info := &Info{}

	var wg sync.WaitGroup
	wg.Go(func() {
		info.Retrieved = g.Retrieve(ctx, message)
	})
	wg.Go(func() {
		info.Project = g.projects.Get(projectDir)
	})
	info.Intent = g.classifier.Classify(message)
	wg.Wait()

	return info
}
