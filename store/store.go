// Package store is the durable side of the copy pipeline: the account
// registry read at startup and the master-ticket to slave-ticket
// correlations written by slave nodes.
package store

import (
	"context"
	"errors"
	"time"
)

type AccountType string

const (
	Master AccountType = "MASTER"
	Slave  AccountType = "SLAVE"
)

// Account is one brokerage terminal definition. Records are authored by
// operator tooling, read once at process start, and immutable for the life
// of a run; a change requires a restart.
type Account struct {
	Name              string
	Type              AccountType
	Path              string
	Enabled           bool
	SymbolMap         map[string]string
	Suffix            string
	SlippageTolerance int
}

type MappingStatus string

const (
	StatusOpen   MappingStatus = "OPEN"
	StatusClosed MappingStatus = "CLOSED"
)

// Mapping correlates a master ticket with the position it produced on one
// slave account. At most one OPEN mapping exists per
// (master_ticket, slave_name) pair; the schema enforces it.
type Mapping struct {
	ID           string
	MasterTicket int64
	SlaveName    string
	SlaveTicket  int64
	Symbol       string
	Direction    string
	Status       MappingStatus
	OpenTime     time.Time
	CloseTime    *time.Time
}

var ErrNotFound = errors.New("record not found")

// Store is the durable access layer. Each slave process writes a disjoint
// key range (partitioned by its own name), so no locking beyond single-
// statement atomicity is needed.
type Store interface {
	Ping(ctx context.Context) error

	EnabledAccounts(ctx context.Context) ([]Account, error)
	AccountByName(ctx context.Context, name string) (Account, error)
	SaveAccount(ctx context.Context, a Account) error
	SetEnabled(ctx context.Context, name string, enabled bool) error

	CreateMapping(ctx context.Context, m Mapping) (string, error)
	// OpenMapping returns the OPEN mapping for the pair, or ErrNotFound.
	OpenMapping(ctx context.Context, masterTicket int64, slaveName string) (Mapping, error)
	// CloseMapping marks the OPEN mapping CLOSED. The bool reports whether
	// a row changed; closing an already-closed pair is not an error.
	CloseMapping(ctx context.Context, masterTicket int64, slaveName string) (bool, error)
	OpenMappingsBySlave(ctx context.Context, slaveName string) ([]Mapping, error)
	OpenMappings(ctx context.Context) ([]Mapping, error)

	Close() error
}
