package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// FieldKind describes how a catalog field may be compared
type FieldKind string

const (
	KindText   FieldKind = "text"
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "bool"
	KindID     FieldKind = "id"
)

// Table names known to the catalog
const (
	TableProducts     = "products"
	TableInstitutions = "institutions"
)

// Field is a queryable column of the catalog.
// Column and FilterColumn are trusted SQL expressions owned by this package.
// WeakKeywords are ordinary words ("rate", "term") that only name the field
// when the message is already about finance.
type Field struct {
	Name         string
	Label        string
	Column       string
	FilterColumn string
	Kind         FieldKind
	Keywords     []string
	WeakKeywords []string
}

// FilterExpr returns the expression used in WHERE clauses
func (f Field) FilterExpr() string {
	if f.FilterColumn != "" {
		return f.FilterColumn
	}
	return f.Column
}

// Table is a read-only view over the catalog
type Table struct {
	Name              string
	From              string
	BaseWhere         string
	Fields            []Field
	DefaultProjection []string
}

// Field looks up a field by its logical name
func (t *Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Category maps a phrase users say to the term matched against category/type names
type Category struct {
	Phrase string
	Term   string
}

// Institution is a named financial institution present in the catalog.
// Weak is set on matches made through a one-word short name such as "people's".
type Institution struct {
	Name string
	Weak bool
	stem string
}

// SchemaDescriptor is the immutable description of the product data model.
// It is built once at start-up and shared read-only between requests.
type SchemaDescriptor struct {
	tables       map[string]*Table
	tableOrder   []string
	categories   []Category
	institutions []Institution
	domainTerms  []string
}

// NewDescriptor builds the descriptor for the FinVerse catalog with the given institution names
func NewDescriptor(institutionNames []string) *SchemaDescriptor {
	d := &SchemaDescriptor{
		tables:      make(map[string]*Table),
		categories:  defaultCategories(),
		domainTerms: defaultDomainTerms(),
	}

	for _, t := range defaultTables() {
		table := t
		d.tables[table.Name] = &table
		d.tableOrder = append(d.tableOrder, table.Name)
	}

	seen := make(map[string]bool)
	for _, name := range institutionNames {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		d.institutions = append(d.institutions, Institution{Name: name, stem: institutionStem(key)})
	}

	// longest phrases first so "personal loan" wins over "loan"
	sort.SliceStable(d.categories, func(i, j int) bool {
		return len(d.categories[i].Phrase) > len(d.categories[j].Phrase)
	})
	sort.SliceStable(d.institutions, func(i, j int) bool {
		return len(d.institutions[i].Name) > len(d.institutions[j].Name)
	})

	return d
}

// Table returns the table with the given name
func (d *SchemaDescriptor) Table(name string) (*Table, bool) {
	t, ok := d.tables[name]
	return t, ok
}

// HasField reports whether table.field exists
func (d *SchemaDescriptor) HasField(table, field string) bool {
	t, ok := d.tables[table]
	if !ok {
		return false
	}
	_, ok = t.Field(field)
	return ok
}

// Institutions returns the known institution names
func (d *SchemaDescriptor) Institutions() []string {
	names := make([]string, len(d.institutions))
	for i, inst := range d.institutions {
		names[i] = inst.Name
	}
	return names
}

// Categories returns the category enumeration
func (d *SchemaDescriptor) Categories() []Category {
	out := make([]Category, len(d.categories))
	copy(out, d.categories)
	return out
}

// FieldMatch is a field mentioned in a message
type FieldMatch struct {
	Field   Field
	Keyword string
	Offset  int
	Weak    bool
}

// MatchFields returns the product fields whose keywords appear in text.
// Longer keywords claim their span first, so "annual fee" is not also read as "fee"
// for fields that only know the shorter form.
func (d *SchemaDescriptor) MatchFields(text string) []FieldMatch {
	table := d.tables[TableProducts]
	lower := strings.ToLower(text)

	type pair struct {
		keyword string
		field   Field
		weak    bool
	}
	var pairs []pair
	for _, f := range table.Fields {
		for _, kw := range f.Keywords {
			pairs = append(pairs, pair{keyword: kw, field: f})
		}
		for _, kw := range f.WeakKeywords {
			pairs = append(pairs, pair{keyword: kw, field: f, weak: true})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return len(pairs[i].keyword) > len(pairs[j].keyword)
	})

	type span struct {
		start, end int
		keyword    string
	}
	var claimed []span
	overlaps := func(start, end int, keyword string) bool {
		for _, s := range claimed {
			if start < s.end && s.start < end && s.keyword != keyword {
				return true
			}
		}
		return false
	}

	var matches []FieldMatch
	seen := make(map[string]int)
	for _, p := range pairs {
		for _, idx := range phraseIndexes(lower, p.keyword) {
			end := idx + len(p.keyword)
			if overlaps(idx, end, p.keyword) {
				continue
			}
			claimed = append(claimed, span{start: idx, end: end, keyword: p.keyword})
			match := FieldMatch{Field: p.field, Keyword: p.keyword, Offset: idx, Weak: p.weak}
			i, ok := seen[p.field.Name]
			switch {
			case !ok:
				seen[p.field.Name] = len(matches)
				matches = append(matches, match)
			case matches[i].Weak && !p.weak:
				matches[i] = match
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Offset < matches[j].Offset })
	return matches
}

// MatchInstitutions returns the institutions named in text, by full name or name stem
func (d *SchemaDescriptor) MatchInstitutions(text string) []Institution {
	lower := strings.ToLower(text)
	var out []Institution
	for _, inst := range d.institutions {
		full := strings.ToLower(inst.Name)
		switch {
		case containsPhrase(lower, full):
			out = append(out, inst)
		case len(inst.stem) >= 4 && containsPhrase(lower, inst.stem):
			inst.Weak = !strings.Contains(inst.stem, " ")
			out = append(out, inst)
		}
	}
	return out
}

// SearchTerm is the shortest distinctive term for matching the institution name with contains
func (i Institution) SearchTerm() string {
	if len(i.stem) >= 4 {
		return i.stem
	}
	return i.Name
}

// MatchCategory returns the most specific category phrase found in text
func (d *SchemaDescriptor) MatchCategory(text string) (Category, bool) {
	lower := strings.ToLower(text)
	for _, c := range d.categories {
		if containsPhrase(lower, c.Phrase) {
			return c, true
		}
	}
	return Category{}, false
}

// MentionsDomain reports whether text references a financial entity or concept.
// Weak field keywords and one-word institution stems do not count on their own.
func (d *SchemaDescriptor) MentionsDomain(text string) bool {
	for _, m := range d.MatchFields(text) {
		if !m.Weak {
			return true
		}
	}
	for _, inst := range d.MatchInstitutions(text) {
		if !inst.Weak {
			return true
		}
	}
	if _, ok := d.MatchCategory(text); ok {
		return true
	}
	lower := strings.ToLower(text)
	for _, term := range d.domainTerms {
		if containsPhrase(lower, term) {
			return true
		}
	}
	return false
}

// Describe renders the schema for model prompts
func (d *SchemaDescriptor) Describe() string {
	var b strings.Builder
	for _, name := range d.tableOrder {
		t := d.tables[name]
		b.WriteString(fmt.Sprintf("Table %s:\n", t.Name))
		for _, f := range t.Fields {
			b.WriteString(fmt.Sprintf("  - %s (%s): %s\n", f.Name, f.Kind, f.Label))
		}
	}
	if len(d.categories) > 0 {
		phrases := make([]string, 0, len(d.categories))
		for _, c := range d.categories {
			phrases = append(phrases, c.Phrase)
		}
		b.WriteString("Product categories: " + strings.Join(phrases, ", ") + "\n")
	}
	if len(d.institutions) > 0 {
		b.WriteString("Institutions: " + strings.Join(d.Institutions(), ", ") + "\n")
	}
	return b.String()
}

var institutionSuffixes = []string{
	"credit union", "corporation", "financial", "finance", "limited", "group",
	"bank", "corp", "plc", "ltd", "inc", "co",
}

func institutionStem(name string) string {
	stem := strings.TrimSpace(strings.TrimPrefix(name, "the "))
	for {
		trimmed := false
		for _, suffix := range institutionSuffixes {
			if strings.HasSuffix(stem, " "+suffix) {
				stem = strings.TrimSpace(strings.TrimSuffix(stem, suffix))
				stem = strings.TrimSuffix(stem, ",")
				trimmed = true
			}
		}
		if !trimmed {
			return stem
		}
	}
}

// ContainsPhrase reports whether the lower-cased text contains phrase on word boundaries
func ContainsPhrase(text, phrase string) bool {
	return containsPhrase(text, phrase)
}

func containsPhrase(text, phrase string) bool {
	return len(phraseIndexes(text, phrase)) > 0
}

// PhraseIndex returns the offset of the first word-bounded occurrence of phrase, or -1
func PhraseIndex(text, phrase string) int {
	if idx := phraseIndexes(text, phrase); len(idx) > 0 {
		return idx[0]
	}
	return -1
}

func phraseIndexes(text, phrase string) []int {
	if phrase == "" {
		return nil
	}
	var out []int
	from := 0
	for from < len(text) {
		idx := strings.Index(text[from:], phrase)
		if idx < 0 {
			break
		}
		start := from + idx
		end := start + len(phrase)
		if isBoundary(text, start-1) && isBoundary(text, end) {
			out = append(out, start)
		}
		from = start + 1
	}
	return out
}

func isBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9')
}
