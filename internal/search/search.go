// Package search keeps a bleve full-text index of songs.
//
// The index is derived data: [Index.Rebuild] loads it from the song store and
// [Index.HandleChange] keeps it current from the change feed. Documents are keyed
// by song ID, so replaying an event is harmless.
package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
)

// DefaultLimit caps results when the caller passes no limit.
const DefaultLimit = 50

// batchSize bounds the documents per bleve batch.
const batchSize = 500

// fields searched by plain queries, with their boosts.
var fields = []struct {
	name  string
	boost float64
}{
	{"title", 3},
	{"singer", 2},
	{"composer", 2},
	{"beat", 1.5},
	{"genre", 1},
	{"theme", 1},
	{"event", 1},
	{"season", 1},
	{"key", 1},
	{"hasidut", 1},
	{"lyrics", 0.5},
}

// document is the indexed shape of a song.
type document struct {
	Title    string   `json:"title"`
	Singer   string   `json:"singer"`
	Composer string   `json:"composer"`
	Key      string   `json:"key"`
	Hasidut  string   `json:"hasidut"`
	Beat     []string `json:"beat"`
	Theme    []string `json:"theme"`
	Genre    []string `json:"genre"`
	Event    []string `json:"event"`
	Season   []string `json:"season"`
	Lyrics   string   `json:"lyrics"`
}

func newDocument(s *models.Song) document {
	return document{
		Title:    s.Title,
		Singer:   s.Singer,
		Composer: s.Composer,
		Key:      s.Key,
		Hasidut:  s.Hasidut,
		Beat:     s.Beat,
		Theme:    s.Theme,
		Genre:    s.Genre,
		Event:    s.Event,
		Season:   s.Season,
		Lyrics:   s.Lyrics,
	}
}

// Index is a full-text song index.
type Index struct {
	index  bleve.Index
	logger *log.Logger
}

// Open opens the index at path, creating it when missing. An empty path keeps
// the index in memory.
func Open(path string, logger *log.Logger) (*Index, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	if path == "" {
		idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create search index: %w", err)
		}
		return &Index{index: idx, logger: logger}, nil
	}

	var (
		idx bleve.Index
		err error
	)
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		idx, err = bleve.New(path, bleve.NewIndexMapping())
	} else {
		idx, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open search index %s: %w", path, err)
	}
	return &Index{index: idx, logger: logger}, nil
}

// Close closes the index.
func (x *Index) Close() error {
	return x.index.Close()
}

// Count returns the number of indexed songs.
func (x *Index) Count() (uint64, error) {
	return x.index.DocCount()
}

// Put indexes or replaces one song.
func (x *Index) Put(s *models.Song) error {
	if err := x.index.Index(s.ID, newDocument(s)); err != nil {
		return fmt.Errorf("failed to index song %s: %w", s.ID, err)
	}
	return nil
}

// Delete drops a song. Deleting an unknown ID is a no-op.
func (x *Index) Delete(id string) error {
	if err := x.index.Delete(id); err != nil {
		return fmt.Errorf("failed to delete song %s from index: %w", id, err)
	}
	return nil
}

// HandleChange applies a change feed event.
func (x *Index) HandleChange(ctx context.Context, ev models.ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.After == nil {
		return x.Delete(ev.SongID)
	}
	after := ev.After
	if after.ID == "" {
		after = after.Clone()
		after.ID = ev.SongID
	}
	return x.Put(after)
}

// Rebuild replaces the index contents with songs.
func (x *Index) Rebuild(ctx context.Context, songs []*models.Song) error {
	ids, err := x.allIDs()
	if err != nil {
		return err
	}

	keep := make(map[string]struct{}, len(songs))
	batch := x.index.NewBatch()
	flush := func() error {
		if batch.Size() == 0 {
			return nil
		}
		if err := x.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to write search batch: %w", err)
		}
		batch.Reset()
		return nil
	}

	for _, s := range songs {
		if err := ctx.Err(); err != nil {
			return err
		}
		keep[s.ID] = struct{}{}
		if err := batch.Index(s.ID, newDocument(s)); err != nil {
			return fmt.Errorf("failed to index song %s: %w", s.ID, err)
		}
		if batch.Size() >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	removed := 0
	for _, id := range ids {
		if _, ok := keep[id]; !ok {
			batch.Delete(id)
			removed++
		}
	}
	if err := flush(); err != nil {
		return err
	}

	x.logger.Info("search index rebuilt", "songs", len(songs), "removed", removed)
	return nil
}

func (x *Index) allIDs() ([]string, error) {
	count, err := x.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	req.Fields = []string{}
	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// buildQuery turns input into a bleve query. Input containing a field scope
// ("singer:alice") or an operator is passed to the query string parser; plain
// text matches every field, with a prefix and a fuzzy match on the title.
func buildQuery(input string) bleveQuery.Query {
	if strings.ContainsAny(input, ":+\"") {
		return bleve.NewQueryStringQuery(input)
	}

	q := bleve.NewDisjunctionQuery()
	for _, f := range fields {
		mq := bleve.NewMatchQuery(input)
		mq.SetField(f.name)
		mq.SetBoost(f.boost)
		q.AddQuery(mq)
	}

	lower := strings.ToLower(input)
	if !strings.Contains(lower, " ") {
		pq := bleve.NewPrefixQuery(lower)
		pq.SetField("title")
		q.AddQuery(pq)
	}
	if utf8.RuneCountInString(input) > 3 {
		fq := bleve.NewFuzzyQuery(lower)
		fq.SetField("title")
		fq.SetFuzziness(1)
		q.AddQuery(fq)
	}
	return q
}

// ErrQueryTooShort is returned for queries of one character or fewer.
var ErrQueryTooShort = errors.New("search query too short")

// Search returns the IDs of songs matching input, best first.
func (x *Index) Search(ctx context.Context, input string, limit int) ([]string, error) {
	input = strings.TrimSpace(input)
	if utf8.RuneCountInString(input) <= 1 {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, ErrQueryTooShort)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	req := bleve.NewSearchRequestOptions(buildQuery(input), limit, 0, false)
	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}
