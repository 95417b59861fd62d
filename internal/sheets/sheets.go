// Package sheets reads registrant rows from the registration spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"entrypass/internal/pass"
)

// Column positions in the registration sheet. Column A holds a row id and is unused.
const (
	colName   = 1
	colSchool = 2
	colEmail  = 3
	colPhone  = 4
)

// Source returns the raw registrant rows, header excluded.
type Source interface {
	Rows(ctx context.Context) ([][]string, error)
}

// GoogleSource reads a fixed range of a Google spreadsheet.
type GoogleSource struct {
	values        *gsheets.SpreadsheetsValuesService
	spreadsheetID string
	readRange     string
}

var _ Source = &GoogleSource{}

// NewGoogleSource authenticates with a service account credentials file.
// An empty credentialsFile leaves authentication to opts.
func NewGoogleSource(ctx context.Context, credentialsFile, spreadsheetID, readRange string, opts ...option.ClientOption) (*GoogleSource, error) {
	base := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsReadonlyScope)}
	if credentialsFile != "" {
		base = append(base, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(base, opts...)

	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	return &GoogleSource{
		values:        gsheets.NewSpreadsheetsValuesService(svc),
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
	}, nil
}

func (g *GoogleSource) Rows(ctx context.Context) ([][]string, error) {
	resp, err := g.values.Get(g.spreadsheetID, g.readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read range %q: %w", g.readRange, err)
	}
	return toStrings(resp.Values), nil
}

func toStrings(values [][]interface{}) [][]string {
	rows := make([][]string, 0, len(values))
	for _, v := range values {
		row := make([]string, len(v))
		for i, cell := range v {
			switch c := cell.(type) {
			case nil:
			case string:
				row[i] = c
			case float64:
				row[i] = strconv.FormatFloat(c, 'f', -1, 64)
			default:
				row[i] = fmt.Sprint(c)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// ParseRow maps a sheet row onto an attendee. Missing cells become empty strings.
func ParseRow(row []string) pass.Attendee {
	return pass.Attendee{
		Name:   cell(row, colName),
		School: cell(row, colSchool),
		Email:  cell(row, colEmail),
		Phone:  cell(row, colPhone),
	}
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
