package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldNames(matches []FieldMatch) []string {
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.Field.Name)
	}
	return names
}

func TestMatchFields(t *testing.T) {
	d := NewDescriptor(nil)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "interest rate", text: "What is the interest rate?", want: []string{"interestRate"}},
		{name: "apr wins over rate", text: "Show the annual percentage rate", want: []string{"annualPercentageRate"}},
		{name: "minimum balance", text: "minimum balance for savings", want: []string{"minimumBalance"}},
		{name: "specific fee", text: "what is the annual fee", want: []string{"annualFee"}},
		{name: "generic fee maps to all fees", text: "any fees?", want: []string{"monthlyFee", "annualFee", "originationFee"}},
		{name: "word boundary", text: "generate a separate report", want: []string{}},
		{name: "nothing", text: "hello there", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fieldNames(d.MatchFields(tt.text))
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestMatchInstitutions(t *testing.T) {
	d := NewDescriptor([]string{"First National Bank", "People's Credit Union", "Sampath Bank PLC", "", "first national bank"})

	assert.Len(t, d.Institutions(), 3, "blank and duplicate names are dropped")

	got := d.MatchInstitutions("What is the interest rate on First National's savings account?")
	require.Len(t, got, 1)
	assert.Equal(t, "First National Bank", got[0].Name)
	assert.Equal(t, "first national", got[0].SearchTerm())

	got = d.MatchInstitutions("does sampath offer leasing")
	require.Len(t, got, 1)
	assert.Equal(t, "Sampath Bank PLC", got[0].Name)

	assert.Empty(t, d.MatchInstitutions("national parks are nice"))
}

func TestMatchCategoryPrefersLongestPhrase(t *testing.T) {
	d := NewDescriptor(nil)

	c, ok := d.MatchCategory("cheapest personal loan")
	require.True(t, ok)
	assert.Equal(t, "personal loan", c.Term)

	c, ok = d.MatchCategory("Which savings account is best?")
	require.True(t, ok)
	assert.Equal(t, "savings", c.Term)

	_, ok = d.MatchCategory("what's the weather")
	assert.False(t, ok)
}

func TestMentionsDomain(t *testing.T) {
	d := NewDescriptor([]string{"First National Bank"})

	assert.True(t, d.MentionsDomain("How does a mortgage work?"))
	assert.True(t, d.MentionsDomain("tell me about First National"))
	assert.True(t, d.MentionsDomain("minimum balance?"))
	assert.False(t, d.MentionsDomain("What's the weather today?"))
	assert.False(t, d.MentionsDomain("How do I make pizza?"))
	assert.False(t, d.MentionsDomain("What is the normal heart rate of an adult?"))
	assert.False(t, d.MentionsDomain("What does the term photosynthesis mean?"))
	assert.True(t, d.MentionsDomain("What is the rate on savings accounts?"))
}

func TestWeakMatches(t *testing.T) {
	d := NewDescriptor([]string{"People's Credit Union", "First National Bank"})

	matches := d.MatchFields("heart rate")
	require.Len(t, matches, 1)
	assert.Equal(t, "interestRate", matches[0].Field.Name)
	assert.True(t, matches[0].Weak)

	matches = d.MatchFields("the interest rate")
	require.Len(t, matches, 1)
	assert.False(t, matches[0].Weak)

	got := d.MatchInstitutions("young people's hobbies")
	require.Len(t, got, 1)
	assert.True(t, got[0].Weak)
	assert.False(t, d.MentionsDomain("young people's hobbies"))

	got = d.MatchInstitutions("loans at People's Credit Union")
	require.Len(t, got, 1)
	assert.False(t, got[0].Weak)

	got = d.MatchInstitutions("tell me about First National")
	require.Len(t, got, 1)
	assert.False(t, got[0].Weak, "multi-word short names are distinctive")
}

func TestPhraseIndex(t *testing.T) {
	assert.Equal(t, -1, PhraseIndex("the slowest approval", "lowest"))
	assert.Equal(t, 4, PhraseIndex("the lowest fee", "lowest"))
}

func TestTablesAndFields(t *testing.T) {
	d := NewDescriptor(nil)

	assert.True(t, d.HasField(TableProducts, "interestRate"))
	assert.True(t, d.HasField(TableInstitutions, "countryCode"))
	assert.False(t, d.HasField(TableProducts, "ssn"))
	assert.False(t, d.HasField("users", "name"))

	products, ok := d.Table(TableProducts)
	require.True(t, ok)
	for _, name := range products.DefaultProjection {
		_, ok := products.Field(name)
		assert.True(t, ok, "default projection field %s must exist", name)
	}

	desc := d.Describe()
	assert.Contains(t, desc, "interestRate (number)")
	assert.Contains(t, desc, "Product categories:")
}

type stubLister struct {
	names []string
	err   error
}

func (s stubLister) ListInstitutionNames(ctx context.Context) ([]string, error) {
	return s.names, s.err
}

func TestLoad(t *testing.T) {
	d, err := Load(context.Background(), stubLister{names: []string{"HNB"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"HNB"}, d.Institutions())

	_, err = Load(context.Background(), stubLister{err: errors.New("db down")})
	assert.Error(t, err)
}
