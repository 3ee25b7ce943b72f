package store

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

const (
	// TextAnalyzerName splits on unicode word boundaries and lowercases.
	// No stop words or stemming: "the" is as searchable as any other word.
	TextAnalyzerName = "article_text"

	// ExactAnalyzerName keeps the whole value as one lowercased token.
	ExactAnalyzerName = "article_exact"
)

// createIndexMapping builds the article mapping. Only the fields listed
// here are indexed; unknown keys are ignored.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	if err := indexMapping.AddCustomAnalyzer(TextAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("failed to add text analyzer: %w", err)
	}
	if err := indexMapping.AddCustomAnalyzer(ExactAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("failed to add exact analyzer: %w", err)
	}

	doc := bleve.NewDocumentStaticMapping()

	for _, name := range AnalyzedFields {
		text := bleve.NewTextFieldMapping()
		text.Analyzer = TextAnalyzerName
		text.Store = false
		text.IncludeInAll = false
		text.IncludeTermVectors = true
		doc.AddFieldMappingsAt(name, text)

		exact := bleve.NewTextFieldMapping()
		exact.Analyzer = ExactAnalyzerName
		exact.Store = false
		exact.IncludeInAll = false
		exact.IncludeTermVectors = false
		doc.AddFieldMappingsAt(Exact(name), exact)
	}

	for _, name := range []string{FieldState, FieldLocation} {
		kw := bleve.NewKeywordFieldMapping()
		kw.Analyzer = keyword.Name
		kw.Store = false
		kw.IncludeInAll = false
		kw.IncludeTermVectors = false
		doc.AddFieldMappingsAt(name, kw)
	}

	for _, name := range []string{FieldFlagged, FieldHasAttachments} {
		b := bleve.NewBooleanFieldMapping()
		b.Store = false
		b.IncludeInAll = false
		doc.AddFieldMappingsAt(name, b)
	}

	age := bleve.NewNumericFieldMapping()
	age.Store = false
	age.IncludeInAll = false
	doc.AddFieldMappingsAt(FieldAge, age)

	indexMapping.DefaultMapping = doc
	indexMapping.DefaultAnalyzer = TextAnalyzerName
	return indexMapping, nil
}
