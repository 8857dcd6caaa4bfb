package kb

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/Sisicca/EditorialAgents/internal/llm"
)

const rrfK = 60 // reciprocal-rank-fusion constant

// Hit is one knowledge-base search result.
type Hit struct {
	Content string
	Source  string
	Page    int
	Title   string
	Score   float64
}

type Options struct {
	Path         string
	ChunkSize    int
	ChunkOverlap int
	TopK         int // candidates per retrieval arm
	TopN         int // fused results returned
	EmbedBatch   int
}

type embedVec struct {
	id  string
	vec []float32
}

// Index holds a mem-only BM25 index alongside in-memory embedding vectors.
// Queries run both arms and fuse them with reciprocal-rank fusion. When the
// embedder is unavailable the index degrades to BM25 only.
type Index struct {
	bleve   bleve.Index
	meta    map[string]Chunk
	vectors []embedVec
	opts    Options
	embed   llm.Provider
	logger  *log.Logger
	mu      sync.RWMutex
}

// Open loads, chunks, indexes and embeds every document under opts.Path.
// embedder may be nil to skip the vector arm entirely.
func Open(ctx context.Context, opts Options, embedder llm.Provider, logger *log.Logger) (*Index, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[KB] ", log.LstdFlags)
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.TopN <= 0 {
		opts.TopN = 5
	}
	if opts.EmbedBatch <= 0 {
		opts.EmbedBatch = 32
	}
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	ix := &Index{
		bleve:  index,
		meta:   make(map[string]Chunk),
		opts:   opts,
		embed:  embedder,
		logger: logger,
	}
	chunks, err := loadDir(opts.Path, opts.ChunkSize, opts.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		if err := ix.add(c); err != nil {
			return nil, err
		}
	}
	logger.Printf("indexed %d chunks from %s", len(chunks), opts.Path)
	if embedder != nil {
		ix.embedAll(ctx, chunks)
	}
	return ix, nil
}

func (ix *Index) add(c Chunk) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.meta[c.ID] = c
	return ix.bleve.Index(c.ID, c)
}

func (ix *Index) embedAll(ctx context.Context, chunks []Chunk) {
	for start := 0; start < len(chunks); start += ix.opts.EmbedBatch {
		end := start + ix.opts.EmbedBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := ix.embed.Embed(ctx, texts)
		if err != nil {
			ix.logger.Printf("embedding batch failed, falling back to BM25 only: %v", err)
			ix.mu.Lock()
			ix.vectors = nil
			ix.mu.Unlock()
			return
		}
		ix.mu.Lock()
		for i, v := range vecs {
			if len(v) > 0 {
				ix.vectors = append(ix.vectors, embedVec{id: batch[i].ID, vec: v})
			}
		}
		ix.mu.Unlock()
	}
}

// Size returns the number of indexed chunks.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.meta)
}

type rankedHit struct {
	id    string
	score float64
	rank  int
}

// Search fuses the BM25 and vector arms and returns the TopN hits.
func (ix *Index) Search(ctx context.Context, query string) ([]Hit, error) {
	bm25, err := ix.bm25Search(query, ix.opts.TopK)
	if err != nil {
		return nil, err
	}
	var vector []rankedHit
	if ix.embed != nil && ix.vectorCount() > 0 {
		qvecs, err := ix.embed.Embed(ctx, []string{query})
		if err != nil || len(qvecs) == 0 {
			ix.logger.Printf("query embedding failed, using BM25 only: %v", err)
		} else {
			vector = ix.vectorSearch(qvecs[0], ix.opts.TopK)
		}
	}
	fused := fuseRRF(bm25, vector, ix.opts.TopN)

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Hit, 0, len(fused))
	for _, h := range fused {
		c, ok := ix.meta[h.id]
		if !ok {
			continue
		}
		out = append(out, Hit{
			Content: c.Text,
			Source:  c.Source,
			Page:    c.Page,
			Title:   c.Title,
			Score:   h.score,
		})
	}
	return out, nil
}

func (ix *Index) vectorCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

func (ix *Index) bm25Search(q string, k int) ([]rankedHit, error) {
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	res, err := ix.bleve.Search(req)
	if err != nil {
		return nil, err
	}
	var out []rankedHit
	for i, hit := range res.Hits {
		out = append(out, rankedHit{id: hit.ID, score: hit.Score, rank: i + 1})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func (ix *Index) vectorSearch(q []float32, k int) []rankedHit {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	type scored struct {
		id    string
		score float64
	}
	scoreds := make([]scored, 0, len(ix.vectors))
	for _, v := range ix.vectors {
		scoreds = append(scoreds, scored{id: v.id, score: cosine(q, v.vec)})
	}
	sort.Slice(scoreds, func(i, j int) bool { return scoreds[i].score > scoreds[j].score })
	var out []rankedHit
	for i, sc := range scoreds {
		out = append(out, rankedHit{id: sc.id, score: sc.score, rank: i + 1})
		if len(out) >= k {
			break
		}
	}
	return out
}

func fuseRRF(a, b []rankedHit, k int) []rankedHit {
	type agg struct {
		id    string
		score float64
	}
	m := map[string]*agg{}
	add := func(list []rankedHit) {
		for _, h := range list {
			x, ok := m[h.id]
			if !ok {
				x = &agg{id: h.id}
				m[h.id] = x
			}
			x.score += 1.0 / float64(rrfK+h.rank)
		}
	}
	add(a)
	add(b)
	items := make([]agg, 0, len(m))
	for _, v := range m {
		items = append(items, *v)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].score > items[j].score })
	if k > len(items) {
		k = len(items)
	}
	out := make([]rankedHit, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, rankedHit{id: items[i].id, score: items[i].score, rank: i + 1})
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
