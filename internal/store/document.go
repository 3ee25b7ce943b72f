package store

// Index field names. Analyzed fields are tokenized and lowercased; the
// matching *_exact fields keep each value as one lowercased token.
const (
	FieldTitle          = "title"
	FieldDescription    = "description"
	FieldAuthor         = "author"
	FieldCategories     = "categories"
	FieldAttachments    = "attachments"
	FieldLabel          = "label"
	FieldFeed           = "feed"
	FieldState          = "state"
	FieldFlagged        = "flagged"
	FieldHasAttachments = "has_attachments"
	FieldLocation       = "location"
	FieldAge            = "age"

	ExactSuffix = "_exact"
)

// AnalyzedFields lists the text fields that also carry an exact twin.
var AnalyzedFields = []string{
	FieldTitle,
	FieldDescription,
	FieldAuthor,
	FieldCategories,
	FieldAttachments,
	FieldLabel,
	FieldFeed,
}

// Exact returns the keyword twin of an analyzed field.
func Exact(field string) string {
	return field + ExactSuffix
}

// ArticleDocument is the denormalized record indexed for one article.
type ArticleDocument struct {
	ID          string
	Title       string
	Description string
	Authors     []string
	Categories  []string
	// Attachments holds type and link of every attachment.
	Attachments []string
	Labels      []string
	Feed        string
	State       string
	Flagged     bool
	// Locations are prefixed leaf container ids ("b:12", "n:3").
	Locations []string
	// Age is the publish (or receive) time in unix milliseconds.
	Age float64
}

// fields returns the document as the field map handed to bleve.
func (d *ArticleDocument) fields() map[string]any {
	m := map[string]any{
		FieldState:          d.State,
		FieldFlagged:        d.Flagged,
		FieldHasAttachments: len(d.Attachments) > 0,
		FieldAge:            d.Age,
	}
	if len(d.Locations) > 0 {
		m[FieldLocation] = d.Locations
	}

	text := map[string][]string{
		FieldTitle:       nonEmpty(d.Title),
		FieldDescription: nonEmpty(d.Description),
		FieldAuthor:      d.Authors,
		FieldCategories:  d.Categories,
		FieldAttachments: d.Attachments,
		FieldLabel:       d.Labels,
		FieldFeed:        nonEmpty(d.Feed),
	}
	for name, values := range text {
		if len(values) == 0 {
			continue
		}
		m[name] = values
		m[Exact(name)] = values
	}
	return m
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
