package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/featurize"
	"github.com/poiesic/imgfeat/storage"
)

// Searcher looks up stored artifacts by visual similarity or object label.
type Searcher struct {
	repository storage.ArtifactRepository
	featurizer featurize.Featurizer
	logger     *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher. featurizer must produce embeddings
// comparable with those stored in repository. The caller keeps ownership of
// both.
func NewSearcher(repository storage.ArtifactRepository, featurizer featurize.Featurizer, opts ...Option) (*Searcher, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if featurizer == nil {
		return nil, ErrFeaturizerRequired
	}

	s := &Searcher{
		repository: repository,
		featurizer: featurizer,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// FindSimilar featurizes the image at ref and returns up to limit stored
// artifacts scoring at least minSimilarity, best first. The query image
// itself is left out of the results if it has been stored.
func (s *Searcher) FindSimilar(ctx context.Context, ref core.Reference, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return s.FindSimilarWithMonitor(ctx, ref, minSimilarity, limit, nil)
}

// FindSimilarWithMonitor is FindSimilar with callbacks at each stage.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, ref core.Reference, minSimilarity float32, limit int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	if err := core.ValidateReference(ref); err != nil {
		return nil, err
	}

	monitor.Start(ref)

	payload, err := s.featurizer.Imread(ctx, ref)
	if err != nil {
		s.logger.Error("error loading query image", "reference", ref, "err", err)
		return nil, fmt.Errorf("loading %s: %w", ref, err)
	}

	query := core.NewArtifact(ref, s.featurizer.Name())
	if err := s.featurizer.Featurize(ctx, query, payload); err != nil {
		s.logger.Error("error featurizing query image", "reference", ref, "err", err)
		return nil, fmt.Errorf("featurizing %s: %w", ref, err)
	}

	vector := query.Embedding()
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: backend %s", ErrNoEmbedding, s.featurizer.Name())
	}
	monitor.AfterFeaturize(vector)

	// One extra in case the query image is among the matches.
	matches, err := s.repository.FindSimilar(ctx, s.featurizer.Name(), core.NormalizeVector(vector), minSimilarity, limit+1)
	if err != nil {
		s.logger.Error("error querying for similar artifacts", "err", err)
		return nil, err
	}
	monitor.AfterSimilaritySearch(matches)

	results := make([]*core.SearchResult, 0, len(matches))
	for _, match := range matches {
		if match.Artifact.Id == query.Id {
			continue
		}
		results = append(results, match)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	monitor.Finish(results)

	s.logger.Debug("similarity search complete", "reference", ref, "results", len(results))
	return results, nil
}

// FindByLabel returns up to limit artifacts from backend with an object
// label matching words in query. An empty backend searches all of them.
// Each result scores the fraction of query words matched times the
// detection confidence, keeping the best label per artifact.
func (s *Searcher) FindByLabel(ctx context.Context, backend, query string, limit int) ([]*core.SearchResult, error) {
	return s.FindByLabelWithMonitor(ctx, backend, query, limit, nil)
}

// FindByLabelWithMonitor is FindByLabel with callbacks at each stage.
func (s *Searcher) FindByLabelWithMonitor(ctx context.Context, backend, query string, limit int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	words := tokenizeAndFilter(query)
	if len(words) == 0 {
		return []*core.SearchResult{}, nil
	}

	var results []*core.SearchResult
	err := s.repository.ForEachArtifact(ctx, 256, func(batch []*core.Artifact) error {
		for _, artifact := range batch {
			if backend != "" && artifact.Backend != backend {
				continue
			}
			var best float32
			var bestLabel string
			for _, f := range artifact.FeaturesOfKind(core.FeatureKindObject) {
				hits := labelMatches(f.Label, words)
				if hits == 0 {
					continue
				}
				score := float32(hits) / float32(len(words)) * f.Confidence
				if score > best {
					best, bestLabel = score, f.Label
				}
			}
			if bestLabel != "" {
				monitor.LabelHit(artifact, bestLabel)
				results = append(results, &core.SearchResult{Artifact: artifact, Score: best})
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("error scanning artifacts", "err", err)
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	monitor.Finish(results)

	return results, nil
}
