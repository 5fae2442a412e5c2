// Package identity keeps the client's persisted identity record: access and
// refresh tokens, the anonymous session key and the authenticated user
// snapshot.
//
// Store never reports errors to callers, except Fields. A failing repository
// is logged and treated as "value absent" on read and as a dropped write on
// Set, Clear and Reset.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/talentdir/internal/client/models"
	"github.com/dmitrijs2005/talentdir/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/talentdir/internal/common"
	"github.com/dmitrijs2005/talentdir/internal/logging"
)

// Field names one persisted identity value.
type Field string

const (
	AccessToken  Field = common.AccessTokenKey
	RefreshToken Field = common.RefreshTokenKey
	SessionKey   Field = common.SessionKeyKey
	AuthSnapshot Field = common.AuthSnapshotKey
)

// ErrLocalDataNotAvailable means the persisted record could not be read.
var ErrLocalDataNotAvailable = errors.New("local data unavailable")

// Tokens are the two credential fields cleared together on session loss.
var Tokens = []Field{AccessToken, RefreshToken}

type snapshot struct {
	User            *models.User `json:"user"`
	IsAuthenticated bool         `json:"is_authenticated"`
}

// Store is the identity record over a metadata.Repository.
type Store struct {
	repo metadata.Repository
	log  logging.Logger
}

func NewStore(repo metadata.Repository, log logging.Logger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{repo: repo, log: log.With("component", "identity")}
}

// NewMemoryStore returns a Store over a fresh in-memory repository.
func NewMemoryStore() *Store {
	return NewStore(metadata.NewMemoryRepository(), nil)
}

// Get returns the field value. An empty stored value counts as absent.
func (s *Store) Get(ctx context.Context, f Field) (string, bool) {
	v, err := s.repo.Get(ctx, string(f))
	if err != nil {
		s.log.Warn(ctx, "identity read failed", "field", f, "error", err)
		return "", false
	}
	if len(v) == 0 {
		return "", false
	}
	return string(v), true
}

// Set persists value immediately. Setting "" clears the field.
func (s *Store) Set(ctx context.Context, f Field, value string) {
	if value == "" {
		s.Clear(ctx, f)
		return
	}
	if err := s.repo.Set(ctx, string(f), []byte(value)); err != nil {
		s.log.Warn(ctx, "identity write failed", "field", f, "error", err)
	}
}

// Clear removes the given fields.
func (s *Store) Clear(ctx context.Context, fields ...Field) {
	if len(fields) == 0 {
		return
	}
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = string(f)
	}
	if err := s.repo.Delete(ctx, keys...); err != nil {
		s.log.Warn(ctx, "identity clear failed", "fields", keys, "error", err)
	}
}

// User returns the authenticated user snapshot, if any.
func (s *Store) User(ctx context.Context) (*models.User, bool) {
	raw, ok := s.Get(ctx, AuthSnapshot)
	if !ok {
		return nil, false
	}
	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.log.Warn(ctx, "corrupt auth snapshot ignored", "error", err)
		return nil, false
	}
	if !snap.IsAuthenticated || snap.User == nil {
		return nil, false
	}
	return snap.User, true
}

// SetUser stores u as the authenticated user. A nil u clears the snapshot.
func (s *Store) SetUser(ctx context.Context, u *models.User) {
	if u == nil {
		s.Clear(ctx, AuthSnapshot)
		return
	}
	b, err := json.Marshal(snapshot{User: u, IsAuthenticated: true})
	if err != nil {
		s.log.Warn(ctx, "auth snapshot encode failed", "error", err)
		return
	}
	s.Set(ctx, AuthSnapshot, string(b))
}

// Fields returns every stored field with a non-empty value.
func (s *Store) Fields(ctx context.Context) (map[Field]string, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocalDataNotAvailable, err)
	}
	out := make(map[Field]string, len(all))
	for k, v := range all {
		if len(v) > 0 {
			out[Field(k)] = string(v)
		}
	}
	return out, nil
}

// Reset drops the whole record.
func (s *Store) Reset(ctx context.Context) {
	if err := s.repo.Clear(ctx); err != nil {
		s.log.Warn(ctx, "identity reset failed", "error", err)
	}
}
