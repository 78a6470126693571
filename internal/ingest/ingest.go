// Package ingest walks a SharePoint document library and turns each file
// into embedded, permission-tagged units in the search store.
package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/boovboyz/azurerag/internal/extract"
	"github.com/boovboyz/azurerag/internal/graph"
	"github.com/boovboyz/azurerag/internal/search"
)

// Source lists and downloads the files of a document library folder.
// *graph.Client satisfies it.
type Source interface {
	ListFiles(ctx context.Context) ([]graph.DriveItem, error)
	Download(ctx context.Context, itemID, name string) (string, error)
}

// Tagger resolves the principals allowed to read a drive item. It never
// fails open: on error it returns the empty set.
type Tagger interface {
	Fetch(ctx context.Context, itemID string) []string
}

// Embedder turns chunk texts into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline ingests a document library into a search store.
type Pipeline struct {
	source   Source
	tagger   Tagger
	embedder Embedder
	store    search.Store

	chunkSize    int
	chunkOverlap int
	workers      int

	indexOnce sync.Once
	indexErr  error
}

// PipelineOption customises Pipeline construction.
type PipelineOption func(*Pipeline)

// WithWorkers bounds how many documents are processed concurrently.
func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewPipeline wires the ingestion stages together.
func NewPipeline(source Source, tagger Tagger, embedder Embedder, store search.Store, chunkSize, chunkOverlap int, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		source:       source,
		tagger:       tagger,
		embedder:     embedder,
		store:        store,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		workers:      4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Summary reports what an ingestion run accomplished.
type Summary struct {
	Documents int
	Units     int
	Skipped   int
	Failed    int
}

// Run ingests every file in the source folder. Per-document failures are
// logged and counted, not fatal: one unreadable file must not abort the
// rest of the library.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	items, err := p.source.ListFiles(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list document library: %w", err)
	}

	var (
		mu      sync.Mutex
		summary Summary
		wg      sync.WaitGroup
		sem     = make(chan struct{}, p.workers)
	)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(item graph.DriveItem) {
			defer wg.Done()
			defer func() { <-sem }()

			units, err := p.ingestOne(ctx, item)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				log.Printf("ERROR: ingest %s: %v", item.Name, err)
				summary.Failed++
			case units == 0:
				summary.Skipped++
			default:
				summary.Documents++
				summary.Units += units
			}
		}(item)
	}
	wg.Wait()

	return summary, ctx.Err()
}

// ingestOne processes a single drive item and returns how many units it
// stored. Zero units means the file had no extractable text.
func (p *Pipeline) ingestOne(ctx context.Context, item graph.DriveItem) (int, error) {
	path, err := p.source.Download(ctx, item.ID, item.Name)
	if err != nil {
		return 0, fmt.Errorf("download: %w", err)
	}
	defer os.Remove(path)

	text, err := extract.Text(path)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}
	chunks := Chunk(text, p.chunkSize, p.chunkOverlap)
	if len(chunks) == 0 {
		log.Printf("skipping %s: no extractable text", item.Name)
		return 0, nil
	}

	// One permission fetch per document. Every chunk of the document
	// carries the identical principal set.
	principals := p.tagger.Fetch(ctx, item.ID)

	vectors, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	if err := p.ensureIndex(ctx, len(vectors[0])); err != nil {
		return 0, err
	}

	units := make([]search.Unit, len(chunks))
	for i, chunk := range chunks {
		units[i] = search.Unit{
			ID:                uuid.NewString(),
			Text:              chunk,
			DocumentID:        item.ID,
			Source:            item.Name,
			AllowedPrincipals: principals,
			Vector:            vectors[i],
		}
	}

	if err := p.store.ReplaceDocument(ctx, item.ID, units); err != nil {
		return 0, fmt.Errorf("store units: %w", err)
	}
	log.Printf("ingested %s: %d units, %d principals", item.Name, len(units), len(principals))
	return len(units), nil
}

// ensureIndex creates the index on first use, once the embedding
// dimensionality is known.
func (p *Pipeline) ensureIndex(ctx context.Context, dims int) error {
	p.indexOnce.Do(func() {
		p.indexErr = p.store.EnsureIndex(ctx, dims)
	})
	return p.indexErr
}
