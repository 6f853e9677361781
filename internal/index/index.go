package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/maypok86/otter"
	bolterrors "go.etcd.io/bbolt/errors"
	"go.uber.org/zap"

	"github.com/mvp-joe/nb/internal/logging"
)

var (
	// ErrQuerySyntax is returned by Query for malformed query text.
	ErrQuerySyntax = errors.New("query syntax error")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("index is closed")

	// ErrInvalidOperation is returned by CommitBatch for an operation with
	// no path or an unknown kind. Nothing from the batch is applied.
	ErrInvalidOperation = errors.New("invalid index operation")

	// ErrLocked is returned by Open when another process holds the index.
	ErrLocked = errors.New("index is in use by another process")
)

// generationKey is the internal (non-document) key holding the commit
// generation. It is written in the same batch as the documents.
var generationKey = []byte("nb:generation")

const (
	defaultMaxResults = 10
	defaultCacheSize  = 256
	defaultLockWait   = time.Second
)

// Options configures an Index.
type Options struct {
	// MaxResults bounds every query. Zero means 10.
	MaxResults int
	// CacheSize is the number of query results kept per generation.
	// Zero means 256, negative disables the cache.
	CacheSize int
	// HighlightStyle is the bleve highlighter ("html" or "ansi").
	// Empty means "html".
	HighlightStyle string
	// LockTimeout bounds how long Open waits for another process to
	// release the index. Zero means one second.
	LockTimeout time.Duration

	Logger *zap.Logger
}

// Index is the document index backed by a bleve scorch index.
// Queries share a read lock; CommitBatch and Reload hold the write lock.
//
// bleve makes a batch searchable as soon as it is committed, so queries
// see committed documents right away. Reload publishes the committed
// generation number; Generation reports the last published one.
type Index struct {
	mu sync.RWMutex

	bi     bleve.Index
	opts   Options
	logger *zap.Logger
	cache  *otter.Cache[string, []Document]

	// committed is the generation stored by the last successful batch and
	// keys the query cache. visible is the generation published by the
	// last Reload.
	committed uint64
	visible   uint64
	closed    bool
}

// Open opens the index stored at dir, creating it when missing. An index
// held open by another process yields ErrLocked once LockTimeout passes.
func Open(dir string, opts Options) (*Index, error) {
	wait := opts.LockTimeout
	if wait <= 0 {
		wait = defaultLockWait
	}
	bi, err := bleve.OpenUsing(dir, map[string]interface{}{
		"bolt_timeout": wait.String(),
	})
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		bi, err = bleve.New(dir, buildMapping())
	}
	if errors.Is(err, bolterrors.ErrTimeout) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index at %s: %w", dir, err)
	}
	return newIndex(bi, opts)
}

// OpenMem builds an index that lives only in memory.
func OpenMem(opts Options) (*Index, error) {
	bi, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory index: %w", err)
	}
	return newIndex(bi, opts)
}

func newIndex(bi bleve.Index, opts Options) (*Index, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.HighlightStyle == "" {
		opts.HighlightStyle = "html"
	}

	ix := &Index{
		bi:     bi,
		opts:   opts,
		logger: logging.OrNop(opts.Logger),
	}

	gen, err := readGeneration(bi)
	if err != nil {
		bi.Close()
		return nil, err
	}
	ix.committed = gen
	ix.visible = gen

	if opts.CacheSize > 0 {
		cache, err := otter.MustBuilder[string, []Document](opts.CacheSize).Build()
		if err != nil {
			bi.Close()
			return nil, fmt.Errorf("failed to build query cache: %w", err)
		}
		ix.cache = &cache
	}
	return ix, nil
}

func readGeneration(bi bleve.Index) (uint64, error) {
	raw, err := bi.GetInternal(generationKey)
	if err != nil {
		return 0, fmt.Errorf("failed to read index generation: %w", err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("corrupt index generation: %d bytes", len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

// CommitBatch applies ops as one atomic batch and returns the new
// generation. Each upsert deletes the path before adding it, so readers
// never observe two documents for one path. On error nothing is applied
// and the generation is unchanged.
func (ix *Index) CommitBatch(ops []Operation) (uint64, error) {
	for _, op := range ops {
		if err := op.validate(); err != nil {
			return 0, err
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return 0, ErrClosed
	}

	batch := ix.bi.NewBatch()
	for _, step := range Expand(ops) {
		switch step.Kind {
		case StepDelete:
			batch.Delete(step.Path)
		case StepAdd:
			if err := batch.Index(step.Path, toDocument(step.Path, step.Fields)); err != nil {
				return 0, fmt.Errorf("failed to add %s to batch: %w", step.Path, err)
			}
		}
	}

	next := ix.committed + 1
	var encoded [8]byte
	binary.BigEndian.PutUint64(encoded[:], next)
	batch.SetInternal(generationKey, encoded[:])

	if err := ix.bi.Batch(batch); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	ix.committed = next
	if ix.cache != nil {
		ix.cache.Clear()
	}

	ix.logger.Debug("index batch committed",
		zap.Uint64("generation", next),
		zap.Int("ops", len(ops)))
	return next, nil
}

// Clear deletes every document in one batch and returns the new
// generation.
func (ix *Index) Clear() (uint64, error) {
	ix.mu.RLock()
	if ix.closed {
		ix.mu.RUnlock()
		return 0, ErrClosed
	}
	ids, err := ix.allIDs()
	ix.mu.RUnlock()
	if err != nil {
		return 0, err
	}

	ops := make([]Operation, 0, len(ids))
	for _, id := range ids {
		ops = append(ops, Delete(id))
	}
	return ix.CommitBatch(ops)
}

func (ix *Index) allIDs() ([]string, error) {
	count, err := ix.bi.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	res, err := ix.bi.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Upsert replaces the document stored under path in a one-op batch.
func (ix *Index) Upsert(path string, fields Fields) (uint64, error) {
	return ix.CommitBatch([]Operation{Upsert(path, fields)})
}

// Delete removes path in a one-op batch. Deleting an absent path succeeds.
func (ix *Index) Delete(path string) (uint64, error) {
	return ix.CommitBatch([]Operation{Delete(path)})
}

// Reload publishes the committed generation and drops cached query
// results.
func (ix *Index) Reload() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return ErrClosed
	}

	gen, err := readGeneration(ix.bi)
	if err != nil {
		return err
	}
	ix.committed = gen
	ix.visible = gen
	if ix.cache != nil {
		ix.cache.Clear()
	}
	return nil
}

// Query runs text using bleve's query string syntax over title, body and
// section, returning at most MaxResults documents by descending score.
func (ix *Index) Query(text string) ([]Document, error) {
	return ix.QueryN(text, ix.opts.MaxResults)
}

// QueryN is Query with an explicit limit, capped at MaxResults. The
// returned documents belong to the caller.
func (ix *Index) QueryN(text string, limit int) ([]Document, error) {
	if limit <= 0 || limit > ix.opts.MaxResults {
		limit = ix.opts.MaxResults
	}
	text = strings.TrimSpace(text)

	q := bleve.NewQueryStringQuery(text)
	if _, err := q.Parse(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuerySyntax, err)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return nil, ErrClosed
	}
	if text == "" {
		return []Document{}, nil
	}

	key := fmt.Sprintf("%d\x00%d\x00%s", ix.committed, limit, text)
	if ix.cache != nil {
		if docs, ok := ix.cache.Get(key); ok {
			return cloneDocuments(docs), nil
		}
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = allFields()
	req.Highlight = bleve.NewHighlightWithStyle(ix.opts.HighlightStyle)
	req.Highlight.Fields = []string{FieldBody.Name(), FieldTitle.Name(), FieldSection.Name()}

	res, err := ix.bi.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	docs := make([]Document, 0, len(res.Hits))
	for _, hit := range res.Hits {
		doc := Document{
			Path:  hit.ID,
			Score: hit.Score,
		}
		if v, ok := hit.Fields[FieldTitle.Name()].(string); ok {
			doc.Title = v
		}
		if v, ok := hit.Fields[FieldBody.Name()].(string); ok {
			doc.Body = v
		}
		doc.Sections = stringsField(hit.Fields[FieldSection.Name()])
		for _, field := range []Field{FieldBody, FieldTitle, FieldSection} {
			doc.Highlights = append(doc.Highlights, hit.Fragments[field.Name()]...)
		}
		docs = append(docs, doc)
	}

	if ix.cache != nil {
		ix.cache.Set(key, cloneDocuments(docs))
	}
	return docs, nil
}

func cloneDocuments(docs []Document) []Document {
	out := make([]Document, len(docs))
	for i, d := range docs {
		d.Sections = append([]string(nil), d.Sections...)
		d.Highlights = append([]string(nil), d.Highlights...)
		out[i] = d
	}
	return out
}

// Contains reports whether a document is stored under path.
func (ix *Index) Contains(path string) (bool, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return false, ErrClosed
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{path}), 0, 0, false)
	res, err := ix.bi.Search(req)
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", path, err)
	}
	return res.Total > 0, nil
}

// Count returns the number of stored documents.
func (ix *Index) Count() (uint64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return 0, ErrClosed
	}
	n, err := ix.bi.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Generation returns the generation published by the last Reload.
func (ix *Index) Generation() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.visible
}

// CommittedGeneration returns the generation of the last committed batch,
// which may be ahead of Generation until Reload is called.
func (ix *Index) CommittedGeneration() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.committed
}

// Close releases the index. It is safe to call more than once.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return nil
	}
	ix.closed = true
	if ix.cache != nil {
		ix.cache.Close()
	}
	if err := ix.bi.Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	return nil
}
