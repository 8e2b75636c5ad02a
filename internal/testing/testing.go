// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"os"
	"slices"
	"sync"
	"testing"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/repositories"
)

// SampleSongs returns a small repertoire covering every category field.
func SampleSongs() []*models.Song {
	return []*models.Song{
		{ID: "s1", Title: "Hava Nagila", Key: "Dm", Singer: "Alice", Composer: "Traditional", Beat: []string{"Hora"}, Genre: []string{"Folk"}, Event: []string{"Dancing"}},
		{ID: "s2", Title: "Erev Shel Shoshanim", Key: "Am", Singer: "Bob", Composer: "Yosef Hadar", Beat: []string{"Ballad"}, Theme: []string{"Love"}, Event: []string{"Chuppah"}},
		{ID: "s3", Title: "Od Yishama", Key: "C", Singer: "Alice", Beat: []string{"Rhythm Changes, Swing"}, Genre: []string{"Simcha", "Pop"}, Event: []string{"Reception"}},
		{ID: "s4", Title: "Shalom Aleichem", Key: "G", Hasidut: "Chabad", Season: []string{"Shabbat"}, Theme: []string{"Shabbat"}},
	}
}

// NewTestStore returns a migrated in-memory SQLite store closed at test cleanup.
func NewTestStore(t *testing.T) *repositories.Store {
	t.Helper()

	s, err := repositories.NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return s
}

// SeedSongs creates songs in s, failing the test on error.
func SeedSongs(t *testing.T, s *repositories.Store, songs []*models.Song) {
	t.Helper()
	for _, song := range songs {
		if err := s.CreateSong(context.Background(), song); err != nil {
			t.Fatalf("failed to seed song %q: %v", song.Title, err)
		}
	}
}

// MemorySink collects exported blobs in memory.
type MemorySink struct {
	mu    sync.Mutex
	Blobs map[string][]byte
	Err   error
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{Blobs: map[string][]byte{}}
}

func (m *MemorySink) Put(ctx context.Context, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.Blobs[name] = slices.Clone(data)
	return "mem://" + name, nil
}

// Names returns the stored blob names, sorted.
func (m *MemorySink) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.Blobs))
	for name := range m.Blobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
