// Package backup exports and restores the whole storefront as one JSON
// document.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Keoroanthony/nuomi-store/internal/apperr"
	"github.com/Keoroanthony/nuomi-store/internal/models"
	"github.com/Keoroanthony/nuomi-store/internal/store"
	"github.com/Keoroanthony/nuomi-store/internal/utils"
)

var tables = []string{"users", "products", "orders", "settings"}

type Document struct {
	Users      []models.User    `json:"users"`
	Products   []models.Product `json:"products"`
	Orders     []models.Order   `json:"orders"`
	Settings   []models.Setting `json:"settings"`
	ExportedAt string           `json:"exportedAt"`
}

type Service struct {
	stores *store.Stores
	now    func() time.Time
}

func NewService(stores *store.Stores) *Service {
	return &Service{stores: stores, now: time.Now}
}

func (s *Service) Export(ctx context.Context) (*Document, error) {
	doc := &Document{ExportedAt: s.now().UTC().Format(time.RFC3339)}
	var err error

	if doc.Users, err = s.stores.Users.List(ctx); err != nil {
		return nil, fmt.Errorf("failed to export users: %w", err)
	}
	if doc.Products, err = s.stores.Products.List(ctx, ""); err != nil {
		return nil, fmt.Errorf("failed to export products: %w", err)
	}
	if doc.Orders, err = s.stores.Orders.ListAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to export orders: %w", err)
	}
	if doc.Settings, err = s.stores.Settings.List(ctx); err != nil {
		return nil, fmt.Errorf("failed to export settings: %w", err)
	}

	// every table must serialise as an array, never null
	if doc.Users == nil {
		doc.Users = []models.User{}
	}
	if doc.Products == nil {
		doc.Products = []models.Product{}
	}
	if doc.Orders == nil {
		doc.Orders = []models.Order{}
	}
	if doc.Settings == nil {
		doc.Settings = []models.Setting{}
	}

	slog.Info("Backup exported", "users", len(doc.Users), "products", len(doc.Products),
		"orders", len(doc.Orders), "settings", len(doc.Settings))
	return doc, nil
}

// Filename is the download name of an export taken at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("nuomi_backup_%s.json", t.Format("2006-01-02"))
}

// Parse decodes a backup and checks that every table is present.
func Parse(r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &apperr.InvalidBackupError{Reason: "unreadable file", Err: err}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, &apperr.InvalidBackupError{Reason: "not a JSON object", Err: err}
	}
	for _, table := range tables {
		v, ok := top[table]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return nil, &apperr.InvalidBackupError{Reason: fmt.Sprintf("missing %q", table)}
		}
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &apperr.InvalidBackupError{Reason: "malformed rows", Err: err}
	}
	return &doc, nil
}

// Import replaces every table with the document's rows. Orders, products,
// settings and users are cleared first, then users, products, orders and
// settings are inserted. The whole sequence shares one transaction; the
// returned report names the steps that ran.
func (s *Service) Import(ctx context.Context, doc *Document) (utils.StepReport, error) {
	var report utils.StepReport

	err := s.stores.Transaction(ctx, func(tx *store.Stores) error {
		steps := &utils.Steps{}
		steps.Add("delete orders", tx.Orders.DeleteAll).
			Add("delete products", tx.Products.DeleteAll).
			Add("delete settings", tx.Settings.DeleteAll).
			Add("delete users", tx.Users.DeleteAll).
			Add("insert users", func(ctx context.Context) error { return tx.Users.InsertAll(ctx, doc.Users) }).
			Add("insert products", func(ctx context.Context) error { return tx.Products.InsertAll(ctx, doc.Products) }).
			Add("insert orders", func(ctx context.Context) error { return tx.Orders.InsertAll(ctx, doc.Orders) }).
			Add("insert settings", func(ctx context.Context) error { return tx.Settings.InsertAll(ctx, doc.Settings) })

		var err error
		report, err = steps.Execute(ctx)
		return err
	})
	if err != nil {
		var stepErr *utils.StepError
		if errors.As(err, &stepErr) {
			failed := stepErr.FirstFailure()
			slog.Error("Backup import rolled back", "failed_step", failed, "completed", report.Completed)
			return report, fmt.Errorf("backup import failed at %s: %w", failed, stepErr.Report.Failed[0].Err)
		}
		return report, fmt.Errorf("backup import failed: %w", err)
	}

	slog.Info("Backup imported", "users", len(doc.Users), "products", len(doc.Products),
		"orders", len(doc.Orders), "settings", len(doc.Settings))
	return report, nil
}
