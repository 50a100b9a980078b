package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Publisher replaces the contents of spreadsheet tabs with audit tables.
type Publisher struct {
	service          *sheetsapi.Service
	spreadsheetID    string
	retryMaxAttempts int
	retryDelay       time.Duration
	log              *zap.Logger
}

func NewPublisher(ctx context.Context, spreadsheetID string, credentialsFile string, retryMaxAttempts int, retryDelay time.Duration, log *zap.Logger) (*Publisher, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to configure JWT from credentials: %w", err)
	}

	service, err := sheetsapi.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Sheets API client: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		service:          service,
		spreadsheetID:    spreadsheetID,
		retryMaxAttempts: retryMaxAttempts,
		retryDelay:       retryDelay,
		log:              log,
	}, nil
}

// Publish makes sure the tab exists, clears it and writes headers then rows.
func (p *Publisher) Publish(ctx context.Context, sheetName string, headers []string, rows [][]string) error {
	if err := p.ensureSheetExists(ctx, sheetName); err != nil {
		return err
	}

	clearRange := fmt.Sprintf("'%s'!A1:ZZ", sheetName)
	err := p.call(ctx, "clear "+clearRange, func() error {
		_, err := p.service.Spreadsheets.Values.Clear(p.spreadsheetID, clearRange, &sheetsapi.ClearValuesRequest{}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear range '%s': %w", clearRange, err)
	}

	values := ToValues(headers, rows)
	writeRange := fmt.Sprintf("'%s'!A1", sheetName)
	err = p.call(ctx, "update "+writeRange, func() error {
		_, err := p.service.Spreadsheets.Values.Update(p.spreadsheetID, writeRange, &sheetsapi.ValueRange{Values: values}).
			ValueInputOption("RAW").Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write %d rows to sheet '%s': %w", len(rows), sheetName, err)
	}

	p.log.Info("published sheet", zap.String("sheet", sheetName), zap.Int("rows", len(rows)))
	return nil
}

func (p *Publisher) ensureSheetExists(ctx context.Context, sheetName string) error {
	spreadsheet, err := p.service.Spreadsheets.Get(p.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet '%s': %w", p.spreadsheetID, err)
	}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == sheetName {
			return nil
		}
	}

	p.log.Info("creating sheet", zap.String("sheet", sheetName))
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			AddSheet: &sheetsapi.AddSheetRequest{
				Properties: &sheetsapi.SheetProperties{Title: sheetName},
			},
		}},
	}
	err = p.call(ctx, "create sheet "+sheetName, func() error {
		_, err := p.service.Spreadsheets.BatchUpdate(p.spreadsheetID, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create sheet '%s': %w", sheetName, err)
	}
	return nil
}

func (p *Publisher) call(ctx context.Context, operation string, fn func() error) error {
	return retry(ctx, p.retryMaxAttempts, p.retryDelay, p.log.With(zap.String("operation", operation)), fn)
}

// retry runs fn, backing off exponentially while the API reports a transient
// failure.
func retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, log *zap.Logger, fn func() error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) || attempt >= maxAttempts {
			return fmt.Errorf("failed after %d attempts: %w", attempt+1, err)
		}

		delay := baseDelay * time.Duration(1<<attempt)
		log.Warn("sheets call failed, retrying", zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func isRetryable(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch {
	case apiErr.Code >= 500 && apiErr.Code < 600:
		return true
	case apiErr.Code == 429:
		return true
	case apiErr.Code == 403 && strings.Contains(strings.ToLower(apiErr.Message), "ratelimitexceeded"):
		return true
	}
	return false
}

// ToValues converts string tables into the value grid the Sheets API takes.
func ToValues(headers []string, rows [][]string) [][]interface{} {
	values := make([][]interface{}, 0, len(rows)+1)
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	values = append(values, header)
	for _, row := range rows {
		cells := make([]interface{}, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		values = append(values, cells)
	}
	return values
}
