// Package store persists index-fund snapshots for offline use. Two backends
// are provided: a JSON file and a PostgreSQL table.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/seenimoa/navcompare/pkg/models"
	"github.com/seenimoa/navcompare/pkg/utils"
)

// ErrNoSnapshot is returned when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Store saves and loads snapshots.
type Store interface {
	// Save persists s, assigning an ID if it has none.
	Save(ctx context.Context, s *models.Snapshot) error
	// Latest returns the most recently generated snapshot.
	Latest(ctx context.Context) (*models.Snapshot, error)
	// Lookup returns the latest snapshot's funds whose ISIN is in isins.
	Lookup(ctx context.Context, isins []string) ([]models.IndexFundRecord, error)
	// Ping reports whether the backend is usable.
	Ping(ctx context.Context) error
	// Name identifies the backend.
	Name() string
	Close() error
}

// Open creates the store for driver: "file" uses path, "postgres" uses dsn.
func Open(ctx context.Context, driver, path, dsn string) (Store, error) {
	switch driver {
	case "", "file":
		return NewFileStore(path), nil
	case "postgres":
		return NewPostgresStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func ensureID(s *models.Snapshot) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Count = len(s.Funds)
}

func isinSet(isins []string) map[string]bool {
	set := make(map[string]bool, len(isins))
	for _, i := range isins {
		if i = utils.NormalizeISIN(i); i != "" {
			set[i] = true
		}
	}
	return set
}

func filterByISIN(funds []models.IndexFundRecord, isins []string) []models.IndexFundRecord {
	set := isinSet(isins)
	var out []models.IndexFundRecord
	for _, f := range funds {
		if f.ISIN != nil && set[strings.ToUpper(*f.ISIN)] {
			out = append(out, f)
		}
	}
	return out
}
