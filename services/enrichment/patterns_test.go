package enrichment_test

import (
	"reflect"
	"testing"

	"outreach/api/services/enrichment"
)

func TestGeneratePatterns(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name                string
		first, last, domain string
		want                []enrichment.EmailGuess
	}{
		{
			name:  "full name yields four patterns in order",
			first: "John", last: "Doe", domain: "acme.com",
			want: []enrichment.EmailGuess{
				{Pattern: "first.last@domain", Email: "john.doe@acme.com"},
				{Pattern: "first@domain", Email: "john@acme.com"},
				{Pattern: "f.last@domain", Email: "j.doe@acme.com"},
				{Pattern: "firstl@domain", Email: "johnd@acme.com"},
			},
		},
		{
			name:  "no last name yields only first@domain",
			first: "John", domain: "acme.com",
			want: []enrichment.EmailGuess{{Pattern: "first@domain", Email: "john@acme.com"}},
		},
		{
			name:  "normalizes case and whitespace",
			first: " JOHN ", last: " Doe", domain: " ACME.com ",
			want: []enrichment.EmailGuess{
				{Pattern: "first.last@domain", Email: "john.doe@acme.com"},
				{Pattern: "first@domain", Email: "john@acme.com"},
				{Pattern: "f.last@domain", Email: "j.doe@acme.com"},
				{Pattern: "firstl@domain", Email: "johnd@acme.com"},
			},
		},
		{
			name:  "multibyte initials",
			first: "Émile", last: "Ørsted", domain: "x.io",
			want: []enrichment.EmailGuess{
				{Pattern: "first.last@domain", Email: "émile.ørsted@x.io"},
				{Pattern: "first@domain", Email: "émile@x.io"},
				{Pattern: "f.last@domain", Email: "é.ørsted@x.io"},
				{Pattern: "firstl@domain", Email: "émileø@x.io"},
			},
		},
		{name: "no first name", last: "Doe", domain: "acme.com", want: []enrichment.EmailGuess{}},
		{name: "no domain", first: "John", last: "Doe", want: []enrichment.EmailGuess{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := enrichment.GeneratePatterns(tt.first, tt.last, tt.domain)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GeneratePatterns() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
