// sheets.go
package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

const (
	defaultWorksheet = "Demandes"

	timeLayout = "2006-01-02 15:04:05"
)

// Column order used when the worksheet has no header row yet.
var defaultColumns = []string{
	"date", "user_id", "user_name", "title", "type",
	"imdb_id", "imdb_url", "year", "status",
}

// MovieRequest is one logged movie or series request.
type MovieRequest struct {
	Title   string
	Type    string
	ImdbID  string
	ImdbURL string
	Year    string
}

// Service appends viewer requests to a shared spreadsheet so the
// catalog team can process them.
type Service struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	worksheet     string
}

// New builds a Service from a service-account key in JSON form. An
// empty worksheet name falls back to the default sheet.
func New(ctx context.Context, credentialsJSON []byte, spreadsheetID, worksheet string, opts ...option.ClientOption) (*Service, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("missing spreadsheet ID")
	}
	if worksheet == "" {
		worksheet = defaultWorksheet
	}

	clientOpts := []option.ClientOption{
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	}
	if len(credentialsJSON) > 0 {
		clientOpts = append(clientOpts, option.WithCredentialsJSON(credentialsJSON))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := sheetsapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("error creating sheets client: %v", err)
	}

	return &Service{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
	}, nil
}

// AddRequest appends one request row, laid out to match the header row
// of the worksheet. Columns we do not know stay blank.
func (s *Service) AddRequest(ctx context.Context, userID, userName string, movie MovieRequest) error {
	headers, err := s.headerRow(ctx)
	if err != nil {
		return err
	}
	if len(headers) == 0 {
		headers = defaultColumns
	}

	values := map[string]string{
		"date":      time.Now().Format(timeLayout),
		"user_id":   userID,
		"user_name": userName,
		"title":     movie.Title,
		"type":      movie.Type,
		"imdb_id":   movie.ImdbID,
		"imdb_url":  movie.ImdbURL,
		"year":      movie.Year,
		"status":    "Demandé",
	}

	row := make([]interface{}, 0, len(headers))
	for _, header := range headers {
		row = append(row, values[strings.ToLower(header)])
	}

	_, err = s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.worksheet, &sheetsapi.ValueRange{
			Values: [][]interface{}{row},
		}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("error appending request row: %v", err)
	}
	return nil
}

// UserRequests returns the logged rows belonging to one user, keyed by
// the worksheet's header names.
func (s *Service) UserRequests(ctx context.Context, userID string) ([]map[string]string, error) {
	resp, err := s.svc.Spreadsheets.Values.
		Get(s.spreadsheetID, s.worksheet).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("error reading worksheet: %v", err)
	}

	if len(resp.Values) < 2 {
		return nil, nil
	}

	headers := make([]string, 0, len(resp.Values[0]))
	for _, cell := range resp.Values[0] {
		headers = append(headers, strings.ToLower(cellString(cell)))
	}

	var requests []map[string]string
	for _, rawRow := range resp.Values[1:] {
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(rawRow) {
				row[header] = cellString(rawRow[i])
			} else {
				row[header] = ""
			}
		}
		if row["user_id"] == userID {
			requests = append(requests, row)
		}
	}
	return requests, nil
}

func (s *Service) headerRow(ctx context.Context) ([]string, error) {
	resp, err := s.svc.Spreadsheets.Values.
		Get(s.spreadsheetID, s.worksheet+"!1:1").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("error reading header row: %v", err)
	}

	if len(resp.Values) == 0 {
		return nil, nil
	}

	headers := make([]string, 0, len(resp.Values[0]))
	for _, cell := range resp.Values[0] {
		headers = append(headers, cellString(cell))
	}
	return headers, nil
}

func cellString(cell interface{}) string {
	if s, ok := cell.(string); ok {
		return s
	}
	return fmt.Sprint(cell)
}
