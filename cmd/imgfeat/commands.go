package main

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/imgfeat"
	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/ingestion"
	"github.com/poiesic/imgfeat/storage"
	redisstore "github.com/poiesic/imgfeat/storage/redis"
)

// sinks holds the artifact sinks opened for a command and how to close them.
type sinks struct {
	sink    storage.ArtifactSink
	closers []func() error
}

func (s *sinks) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Error("error closing sink", "err", err)
		}
	}
}

// openSinks opens the sinks selected by settings. With no database or Redis
// configured, artifacts go to stdout as JSON lines.
func openSinks(c *cli.Context, s *settings) (*sinks, error) {
	out := &sinks{}
	var all []storage.ArtifactSink

	if s.DB != "" {
		db, err := imgfeat.NewDatabase(s.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		out.closers = append(out.closers, db.Close)
		all = append(all, db.ArtifactRepository())
	}

	if s.Redis.Addr != "" {
		store, err := redisstore.New(c.Context, s.Redis)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		out.closers = append(out.closers, store.Close)
		all = append(all, store)
	}

	if len(all) == 0 || c.Bool("stdout") {
		all = append(all, storage.NewWriterSink(os.Stdout))
	}

	if len(all) == 1 {
		out.sink = all[0]
		return out, nil
	}
	tee, err := storage.NewTeeSink(all...)
	if err != nil {
		out.Close()
		return nil, err
	}
	out.sink = tee
	return out, nil
}

func newPipeline(s *settings, sink storage.ArtifactSink) (*ingestion.Pipeline, error) {
	featurizer, err := imgfeat.NewFeaturizer(&s.Featurize)
	if err != nil {
		return nil, fmt.Errorf("failed to create featurizer: %w", err)
	}

	pipeline, err := ingestion.NewPipeline(featurizer, sink,
		ingestion.WithConfig(&s.Ingestion),
		ingestion.WithProgressWriter(os.Stderr))
	if err != nil {
		featurizer.Close()
		return nil, err
	}
	return pipeline, nil
}

func runCommand(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}

	out, err := openSinks(c, s)
	if err != nil {
		return err
	}
	defer out.Close()

	pipeline, err := newPipeline(s, out.sink)
	if err != nil {
		return err
	}

	if _, err := pipeline.Run(c.Context, os.Stdin); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}

func batchCommand(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}

	var readers []io.Reader
	for _, path := range c.Args().Slice() {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open reference list: %w", err)
		}
		defer f.Close()
		readers = append(readers, f)
	}
	if len(readers) == 0 {
		readers = append(readers, os.Stdin)
	}

	out, err := openSinks(c, s)
	if err != nil {
		return err
	}
	defer out.Close()

	pipeline, err := newPipeline(s, out.sink)
	if err != nil {
		return err
	}

	if _, err := pipeline.RunBatch(c.Context, references(readers...)); err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}
	return nil
}

// references yields the non-blank lines of each reader in turn.
func references(readers ...io.Reader) iter.Seq[core.Reference] {
	return func(yield func(core.Reference) bool) {
		for _, r := range readers {
			scanner := bufio.NewScanner(r)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if !yield(core.Reference(line)) {
					return
				}
			}
			if err := scanner.Err(); err != nil {
				slog.Error("error reading references", "err", err)
			}
		}
	}
}

func refeaturizeCommand(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}

	db, err := imgfeat.NewDatabase(s.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	// Other backends may hold results for the same image.
	var refs []core.Reference
	seen := make(map[core.Reference]bool)
	err = db.ArtifactRepository().ForEachArtifact(c.Context, 1000, func(batch []*core.Artifact) error {
		for _, a := range batch {
			if !seen[a.Reference] {
				seen[a.Reference] = true
				refs = append(refs, a.Reference)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list stored images: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", s.DB)
	fmt.Fprintf(os.Stderr, "Backend: %s\n", s.Featurize.Backend)
	fmt.Fprintf(os.Stderr, "Images: %d\n", len(refs))
	fmt.Fprintln(os.Stderr)

	pipeline, err := newPipeline(s, db.ArtifactRepository())
	if err != nil {
		return err
	}

	if _, err := pipeline.RunBatch(c.Context, slices.Values(refs)); err != nil {
		return fmt.Errorf("refeaturize failed: %w", err)
	}
	return nil
}

func similarCommand(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}

	db, err := imgfeat.NewDatabase(s.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	featurizer, err := imgfeat.NewFeaturizer(&s.Featurize)
	if err != nil {
		return fmt.Errorf("failed to create featurizer: %w", err)
	}
	defer featurizer.Close()

	searcher, err := db.NewSearcher(featurizer)
	if err != nil {
		return err
	}

	results, err := searcher.FindSimilar(c.Context, core.Reference(c.String("image")),
		float32(c.Float64("min-similarity")), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	printResults(os.Stdout, results)
	return nil
}

func labelsCommand(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}

	db, err := imgfeat.NewDatabase(s.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	featurizer, err := imgfeat.NewFeaturizer(nil)
	if err != nil {
		return err
	}
	defer featurizer.Close()

	searcher, err := db.NewSearcher(featurizer)
	if err != nil {
		return err
	}

	results, err := searcher.FindByLabel(c.Context, c.String("backend"), c.String("query"), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	printResults(os.Stdout, results)
	return nil
}

func printResults(w io.Writer, results []*core.SearchResult) {
	for _, r := range results {
		fmt.Fprintf(w, "%.4f\t%s\n", r.Score, r.Artifact.Reference)
	}
}
