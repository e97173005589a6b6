// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package imgfeat

import (
	"log/slog"

	"github.com/poiesic/imgfeat/featurize"
	"github.com/poiesic/imgfeat/ingestion"
	"github.com/poiesic/imgfeat/search"
	"github.com/poiesic/imgfeat/storage"
	"github.com/poiesic/imgfeat/storage/badger"
)

// Database bundles a badger backend with the artifact repository stored in it.
type Database struct {
	backend      *badger.Backend
	artifactRepo *badger.ArtifactRepository
	logger       *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	inMemory bool
	logger   *slog.Logger
}

// InMemory keeps the database in memory. The path is ignored.
func InMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithDatabaseLogger sets a custom logger.
func WithDatabaseLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewDatabase opens (creating if needed) the database at filePath.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	artifactRepo, err := badger.NewArtifactRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:      backend,
		artifactRepo: artifactRepo,
		logger:       options.logger,
	}, nil
}

func (db *Database) Close() error {
	if err := db.artifactRepo.Close(); err != nil {
		db.logger.Error("error closing artifact repository", "err", err)
		return err
	}

	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) ArtifactRepository() storage.ArtifactRepository {
	return db.artifactRepo
}

// NewPipeline creates an ingestion pipeline that stores artifacts in this database.
func (db *Database) NewPipeline(featurizer featurize.Featurizer, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(featurizer, db.artifactRepo, opts...)
}

// NewSearcher creates a searcher over this database.
func (db *Database) NewSearcher(featurizer featurize.Featurizer, opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.artifactRepo, featurizer, opts...)
}
