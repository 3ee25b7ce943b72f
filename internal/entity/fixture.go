package entity

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Fixture is the YAML layout accepted by LoadFixture.
type Fixture struct {
	Labels    []fixtureLabel    `yaml:"labels"`
	Folders   []fixtureFolder   `yaml:"folders"`
	Bookmarks []fixtureBookmark `yaml:"bookmarks"`
	Bins      []fixtureBin      `yaml:"bins"`
	Articles  []fixtureArticle  `yaml:"articles"`
}

type fixtureLabel struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

type fixtureFolder struct {
	ID        int64   `yaml:"id"`
	Name      string  `yaml:"name"`
	Folders   []int64 `yaml:"folders"`
	Bookmarks []int64 `yaml:"bookmarks"`
	Bins      []int64 `yaml:"bins"`
}

type fixtureBookmark struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	FeedLink string `yaml:"feed_link"`
}

type fixtureBin struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

type fixtureAttachment struct {
	Type string `yaml:"type"`
	Link string `yaml:"link"`
}

type fixtureArticle struct {
	ID          int64               `yaml:"id"`
	Title       string              `yaml:"title"`
	Description string              `yaml:"description"`
	Authors     []string            `yaml:"authors"`
	Categories  []string            `yaml:"categories"`
	Attachments []fixtureAttachment `yaml:"attachments"`
	Labels      []int64             `yaml:"labels"`
	State       string              `yaml:"state"`
	Flagged     bool                `yaml:"flagged"`
	FeedLink    string              `yaml:"feed_link"`
	Bin         int64               `yaml:"bin"`
	Published   time.Time           `yaml:"published"`
	Received    time.Time           `yaml:"received"`
}

// ParseFixture decodes YAML fixture data.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &f, nil
}

// LoadFixture reads a YAML fixture file into a new MemoryStore.
func LoadFixture(ctx context.Context, path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return nil, err
	}
	s := NewMemoryStore()
	if err := f.Apply(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply writes the fixture into s. Containers go first so article events
// observe a complete location graph.
func (f *Fixture) Apply(ctx context.Context, s *MemoryStore) error {
	for _, l := range f.Labels {
		if err := s.PutLabel(ctx, Label{ID: l.ID, Name: l.Name}); err != nil {
			return err
		}
	}
	for _, b := range f.Bins {
		if err := s.PutBin(ctx, Bin{ID: b.ID, Name: b.Name}); err != nil {
			return err
		}
	}
	for _, b := range f.Bookmarks {
		if err := s.PutBookmark(ctx, Bookmark{ID: b.ID, Name: b.Name, FeedLink: b.FeedLink}); err != nil {
			return err
		}
	}
	for _, fo := range f.Folders {
		if err := s.PutFolder(ctx, Folder{ID: fo.ID, Name: fo.Name, Folders: fo.Folders, Bookmarks: fo.Bookmarks, Bins: fo.Bins}); err != nil {
			return err
		}
	}
	for _, a := range f.Articles {
		state := StateUnread
		if a.State != "" {
			var err error
			if state, err = ParseState(a.State); err != nil {
				return fmt.Errorf("article %d: %w", a.ID, err)
			}
		}
		atts := make([]Attachment, 0, len(a.Attachments))
		for _, at := range a.Attachments {
			atts = append(atts, Attachment(at))
		}
		art := &Article{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Authors:     a.Authors,
			Categories:  a.Categories,
			Attachments: atts,
			Labels:      a.Labels,
			State:       state,
			Flagged:     a.Flagged,
			FeedLink:    a.FeedLink,
			BinID:       a.Bin,
			PublishDate: a.Published,
			ReceiveDate: a.Received,
		}
		if err := s.PutArticle(ctx, art); err != nil {
			return err
		}
	}
	return nil
}
