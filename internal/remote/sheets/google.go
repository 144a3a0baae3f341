package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and the service account used to reach it.
// CredentialsJSON wins over CredentialsFile; with neither set
// GOOGLE_APPLICATION_CREDENTIALS is read.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	RowCacheTTL     time.Duration
}

type googleValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// Open builds a store backed by the Sheets API.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	ttl := cfg.RowCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return newStore(&googleValues{svc: svc, spreadsheetID: cfg.SpreadsheetID}, ttl), nil
}

func credentials(cfg Config) ([]byte, error) {
	if s := strings.TrimSpace(cfg.CredentialsJSON); s != "" {
		return []byte(s), nil
	}
	path := strings.TrimSpace(cfg.CredentialsFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

func (g *googleValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (g *googleValues) Append(ctx context.Context, rng string, rows [][]any) error {
	vr := &gsheet.ValueRange{Values: rows}
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	return nil
}

func (g *googleValues) Update(ctx context.Context, rng string, rows [][]any) error {
	vr := &gsheet.ValueRange{Values: rows}
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}
	return nil
}

func (g *googleValues) Clear(ctx context.Context, rng string) error {
	_, err := g.svc.Spreadsheets.Values.Clear(g.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}
