package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach/api/services/storage"
)

func TestParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		csv      string
		want     []storage.LeadInput
		wantRows []RowError
	}{
		{
			name: "snake case headers",
			csv: "first_name,last_name,company,website,email\n" +
				"Ann,Lee,Bakery,https://www.bakery.com,ANN@bakery.com\n",
			want: []storage.LeadInput{{
				FirstName: "Ann", LastName: "Lee", Company: "Bakery",
				Website: "https://www.bakery.com", Domain: "bakery.com",
				HasWebsite: true, Email: "ann@bakery.com",
			}},
		},
		{
			name: "camel case headers with bom and unknown columns",
			csv: "\ufefffirstName,businessName,instagram,notes\n" +
				"Bo,Salon,https://instagram.com/salon,ignored\n",
			want: []storage.LeadInput{{
				FirstName: "Bo", Company: "Salon", ProfileURL: "https://instagram.com/salon",
			}},
		},
		{
			name: "full name is split",
			csv:  "Full Name,Domain\n  Cy  de Vries ,Acme.io\n",
			want: []storage.LeadInput{{
				FirstName: "Cy", LastName: "de Vries", Domain: "acme.io", HasWebsite: true,
			}},
		},
		{
			name: "explicit has_website flag",
			csv:  "first name,has_website\nDi,true\nEd,0\n",
			want: []storage.LeadInput{
				{FirstName: "Di", HasWebsite: true},
				{FirstName: "Ed"},
			},
		},
		{
			name: "rows without a first name are reported",
			csv:  "first_name,company\n,Nameless Co\n\nFay,Shop\n",
			want: []storage.LeadInput{{FirstName: "Fay", Company: "Shop"}},
			wantRows: []RowError{
				{Row: 2, Message: storage.ErrFirstNameRequired.Error()},
			},
		},
		{
			name: "short rows and stray quotes",
			csv:  "first_name,company,email\nGil,Gil\"s Garage\nHo\n",
			want: []storage.LeadInput{
				{FirstName: "Gil", Company: "Gil\"s Garage"},
				{FirstName: "Ho"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, rows, err := Parse(strings.NewReader(tt.csv))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantRows, rows)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()
	_, _, err := Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()
	for _, h := range []string{"first_name", "firstName", "First_Name", "First Name", " FIRST-NAME "} {
		assert.Equal(t, "firstname", normalizeHeader(h), h)
	}
}
