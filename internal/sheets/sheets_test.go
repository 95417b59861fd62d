package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"entrypass/internal/pass"
)

func TestParseRow(t *testing.T) {
	tests := []struct {
		name string
		row  []string
		want pass.Attendee
	}{
		{
			name: "full row",
			row:  []string{"1", "Asha", "XYZ School", "a@x.com", "9999999999", "extra"},
			want: pass.Attendee{Name: "Asha", School: "XYZ School", Email: "a@x.com", Phone: "9999999999"},
		},
		{
			name: "trims cells",
			row:  []string{"1", " Asha ", "XYZ School", " a@x.com\t", "9999999999"},
			want: pass.Attendee{Name: "Asha", School: "XYZ School", Email: "a@x.com", Phone: "9999999999"},
		},
		{
			name: "short row",
			row:  []string{"2", "Bo", "ABC"},
			want: pass.Attendee{Name: "Bo", School: "ABC"},
		},
		{
			name: "empty row",
			row:  nil,
			want: pass.Attendee{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseRow(tc.row))
		})
	}
}

func TestGoogleSourceRows(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"range": "Sheet1!A2:F",
			"majorDimension": "ROWS",
			"values": [
				["1", "Asha", "XYZ School", "a@x.com", 9999999999],
				["2", "Bo"]
			]
		}`))
	}))
	defer srv.Close()

	src, err := NewGoogleSource(context.Background(), "", "sheet-1", "Sheet1!A2:F",
		option.WithoutAuthentication(),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)

	rows, err := src.Rows(context.Background())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(gotPath, "/v4/spreadsheets/sheet-1/values/"), gotPath)
	require.Len(t, rows, 2)
	assert.Equal(t, pass.Attendee{Name: "Asha", School: "XYZ School", Email: "a@x.com", Phone: "9999999999"}, ParseRow(rows[0]))
	assert.Equal(t, []string{"2", "Bo"}, rows[1])
}

func TestGoogleSourceRowsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	src, err := NewGoogleSource(context.Background(), "", "sheet-1", "Sheet1!A2:F",
		option.WithoutAuthentication(),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)

	_, err = src.Rows(context.Background())
	assert.Error(t, err)
}
