//go:build !cgo

package dolt

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cogniwarden/memory/internal/types"
)

// DoltStore is a stub for non-CGO builds. All methods return an error indicating
// that Dolt requires CGO. store.go, which holds both the embedded and the server
// mode implementation, is compiled only with cgo, so non-CGO builds have no
// server mode either.
type DoltStore struct{}

// Config mirrors the CGO Config struct for API compatibility.
type Config struct {
	Path           string
	CommitterName  string
	CommitterEmail string
	Remote         string
	Database       string
	Branch         string
	ReadOnly       bool
	OpenTimeout    time.Duration

	ServerMode     bool
	ServerHost     string
	ServerPort     int
	ServerUser     string
	ServerPassword string
	ServerTLS      bool

	RemoteUser     string
	RemotePassword string

	DisableWatchdog bool
}

var errNoCGO = fmt.Errorf("dolt: requires CGO support; rebuild with CGO_ENABLED=1")

// CommitInfo represents a Dolt commit (stub for non-CGO builds).
type CommitInfo struct {
	Hash    string
	Author  string
	Email   string
	Date    time.Time
	Message string
}

// DoltStatus represents the current repository status (stub for non-CGO builds).
type DoltStatus struct {
	Staged   []StatusEntry
	Unstaged []StatusEntry
}

// StatusEntry represents a changed table (stub for non-CGO builds).
type StatusEntry struct {
	Table  string
	Status string
}

// Conflict describes one unresolved merge conflict row (stub for non-CGO builds).
type Conflict struct {
	Table     string
	OurValue  string
	TheirValue string
	BaseValue string
}

// DiffEntry describes one changed row between two revisions (stub for non-CGO builds).
type DiffEntry struct {
	Table       string
	RowsAdded   int
	RowsDeleted int
	RowsModified int
}

// New returns an error in non-CGO builds, for embedded and server mode alike.
func New(_ context.Context, cfg *Config) (*DoltStore, error) {
	if cfg != nil && cfg.ServerMode {
		return nil, fmt.Errorf("dolt: server mode is compiled only in CGO builds; rebuild with CGO_ENABLED=1")
	}
	return nil, errNoCGO
}

func NewFromConfig(_ context.Context, _ string, _ *Config) (*DoltStore, error) {
	return nil, errNoCGO
}

func RunMigrations(_ context.Context, _ *sql.DB) error { return errNoCGO }

func ListMigrations() []string { return nil }

func (s *DoltStore) Close() error               { return nil }
func (s *DoltStore) Path() string               { return "" }
func (s *DoltStore) UnderlyingDB() *sql.DB       { return nil }

func (s *DoltStore) CreateBlock(_ context.Context, _ *types.MemoryBlock) error {
	return errNoCGO
}

func (s *DoltStore) GetBlock(_ context.Context, _ string) (*types.MemoryBlock, error) {
	return nil, errNoCGO
}

func (s *DoltStore) ListBlocks(_ context.Context, _ types.Filter) ([]*types.MemoryBlock, error) {
	return nil, errNoCGO
}

func (s *DoltStore) UpdateBlock(_ context.Context, _ *types.MemoryBlock, _ *int) error {
	return errNoCGO
}

func (s *DoltStore) DeleteBlock(_ context.Context, _ string) error {
	return errNoCGO
}

func (s *DoltStore) CreateLink(_ context.Context, _ *types.BlockLink) error {
	return errNoCGO
}

func (s *DoltStore) DeleteLink(_ context.Context, _, _ string, _ types.Relation) error {
	return errNoCGO
}

func (s *DoltStore) LinksFrom(_ context.Context, _ string, _ *types.Relation, _ string, _ int) ([]*types.BlockLink, string, error) {
	return nil, "", errNoCGO
}

func (s *DoltStore) LinksTo(_ context.Context, _ string, _ *types.Relation, _ string, _ int) ([]*types.BlockLink, string, error) {
	return nil, "", errNoCGO
}

func (s *DoltStore) CreateNamespace(_ context.Context, _ *types.Namespace) error {
	return errNoCGO
}

func (s *DoltStore) GetNamespace(_ context.Context, _ string) (*types.Namespace, error) {
	return nil, errNoCGO
}

func (s *DoltStore) ListNamespaces(_ context.Context) ([]*types.Namespace, error) {
	return nil, errNoCGO
}

func (s *DoltStore) AppendProof(_ context.Context, _ *types.BlockProof) error {
	return errNoCGO
}

func (s *DoltStore) SetConfig(_ context.Context, _, _ string) error    { return errNoCGO }
func (s *DoltStore) GetConfig(_ context.Context, _ string) (string, error) {
	return "", errNoCGO
}
func (s *DoltStore) GetAllConfig(_ context.Context) (map[string]string, error) {
	return nil, errNoCGO
}
func (s *DoltStore) DeleteConfig(_ context.Context, _ string) error { return errNoCGO }

func (s *DoltStore) Add(_ context.Context, _ ...string) error { return errNoCGO }
func (s *DoltStore) Commit(_ context.Context, _ string) error { return errNoCGO }
func (s *DoltStore) Push(_ context.Context) error              { return errNoCGO }
func (s *DoltStore) Pull(_ context.Context) error              { return errNoCGO }
func (s *DoltStore) Branch(_ context.Context, _ string) error  { return errNoCGO }
func (s *DoltStore) Checkout(_ context.Context, _ string) error {
	return errNoCGO
}
func (s *DoltStore) Merge(_ context.Context, _ string) ([]Conflict, error) {
	return nil, errNoCGO
}
func (s *DoltStore) CurrentBranch(_ context.Context) (string, error) {
	return "", errNoCGO
}
func (s *DoltStore) DeleteBranch(_ context.Context, _ string) error {
	return errNoCGO
}
func (s *DoltStore) Log(_ context.Context, _ int) ([]CommitInfo, error) {
	return nil, errNoCGO
}
func (s *DoltStore) Status(_ context.Context) (*DoltStatus, error) {
	return nil, errNoCGO
}
func (s *DoltStore) ListBranches(_ context.Context) ([]string, error) {
	return nil, errNoCGO
}
func (s *DoltStore) Diff(_ context.Context, _, _ string) ([]DiffEntry, error) {
	return nil, errNoCGO
}
func (s *DoltStore) Reset(_ context.Context, _ []string, _ bool) error {
	return errNoCGO
}
func (s *DoltStore) AutoCommitAndPush(_ context.Context, _ string) (bool, error) {
	return false, errNoCGO
}
