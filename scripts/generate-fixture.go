//go:build ignore

// Package main generates a synthetic feed fixture for benchmarking the CLI.
// Usage: go run scripts/generate-fixture.go -articles 10000 -output testdata/bench.yaml
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	numArticles = flag.Int("articles", 1000, "Number of articles to generate")
	numFeeds    = flag.Int("feeds", 20, "Number of feeds (one bookmark each)")
	outputPath  = flag.String("output", "testdata/bench.yaml", "Output file")
	seed        = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var (
	words = []string{
		"release", "security", "performance", "compiler", "runtime", "generics",
		"database", "network", "kernel", "browser", "privacy", "cloud",
		"storage", "protocol", "parser", "scheduler", "memory", "benchmark",
	}
	authors    = []string{"Ada", "Grace", "Ken", "Rob", "Barbara", "Dennis", "Margaret", "Linus"}
	categories = []string{"news", "release", "tutorial", "opinion", "security"}
	states     = []string{"new", "unread", "read", "updated", "hidden"}
)

type label struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

type folder struct {
	ID        int64   `yaml:"id"`
	Name      string  `yaml:"name"`
	Bookmarks []int64 `yaml:"bookmarks"`
}

type bookmark struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	FeedLink string `yaml:"feed_link"`
}

type article struct {
	ID          int64     `yaml:"id"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Authors     []string  `yaml:"authors"`
	Categories  []string  `yaml:"categories"`
	Labels      []int64   `yaml:"labels,omitempty"`
	State       string    `yaml:"state"`
	Flagged     bool      `yaml:"flagged"`
	FeedLink    string    `yaml:"feed_link"`
	Published   time.Time `yaml:"published"`
}

type fixture struct {
	Labels    []label    `yaml:"labels"`
	Folders   []folder   `yaml:"folders"`
	Bookmarks []bookmark `yaml:"bookmarks"`
	Articles  []article  `yaml:"articles"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))
	now := time.Now().UTC().Truncate(time.Minute)

	f := fixture{
		Labels: []label{{ID: 1, Name: "Important"}, {ID: 2, Name: "Later"}},
	}

	// Two top-level folders split the feeds between them.
	f.Folders = []folder{{ID: 1, Name: "Tech"}, {ID: 2, Name: "Other"}}
	for i := 1; i <= *numFeeds; i++ {
		id := int64(100 + i)
		f.Bookmarks = append(f.Bookmarks, bookmark{
			ID:       id,
			Name:     fmt.Sprintf("Feed %d", i),
			FeedLink: fmt.Sprintf("https://feed%d.example.com/rss", i),
		})
		f.Folders[i%2].Bookmarks = append(f.Folders[i%2].Bookmarks, id)
	}

	pick := func(list []string) string { return list[rng.Intn(len(list))] }
	sentence := func(n int) string {
		s := pick(words)
		for i := 1; i < n; i++ {
			s += " " + pick(words)
		}
		return s
	}

	for i := 1; i <= *numArticles; i++ {
		a := article{
			ID:          int64(i),
			Title:       sentence(3 + rng.Intn(4)),
			Description: sentence(10 + rng.Intn(20)),
			Authors:     []string{pick(authors)},
			Categories:  []string{pick(categories)},
			State:       pick(states),
			Flagged:     rng.Intn(10) == 0,
			FeedLink:    f.Bookmarks[rng.Intn(len(f.Bookmarks))].FeedLink,
			Published:   now.Add(-time.Duration(rng.Intn(60*24*30)) * time.Minute),
		}
		if rng.Intn(5) == 0 {
			a.Labels = []int64{int64(1 + rng.Intn(2))}
		}
		f.Articles = append(f.Articles, a)
	}

	out, err := os.Create(*outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", *outputPath, err)
		os.Exit(1)
	}
	defer out.Close()

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
	if err := enc.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %d articles across %d feeds in %s\n", *numArticles, *numFeeds, *outputPath)
}
