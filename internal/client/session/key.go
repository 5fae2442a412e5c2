// Package session produces the anonymous per-installation visitor key that
// the backend uses to deduplicate profile views.
package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/talentdir/internal/client/identity"
	"github.com/dmitrijs2005/talentdir/internal/logging"
	"github.com/martinlindhe/base36"
)

const suffixLen = 9

// KeyPattern matches keys produced by Generator.
var KeyPattern = regexp.MustCompile(`^session_\d+_[0-9a-z]{9}$`)

// Generator lazily creates and persists the session key.
type Generator struct {
	store *identity.Store
	log   logging.Logger

	now    func() time.Time
	random io.Reader

	// serializes read-create-store so concurrent first calls agree on one key
	mu sync.Mutex
}

func NewGenerator(store *identity.Store, log logging.Logger) *Generator {
	if log == nil {
		log = logging.Nop()
	}
	return &Generator{
		store:  store,
		log:    log.With("component", "session"),
		now:    time.Now,
		random: rand.Reader,
	}
}

// GetOrCreate returns the stored key, creating one on first use. It returns
// "" when no key exists and none could be generated or stored.
func (g *Generator) GetOrCreate(ctx context.Context) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if key, ok := g.store.Get(ctx, identity.SessionKey); ok {
		return key
	}

	key, err := g.newKey()
	if err != nil {
		g.log.Error(ctx, "session key generation failed", "error", err)
		return ""
	}
	g.store.Set(ctx, identity.SessionKey, key)
	// a key that did not persist would change on every request
	if stored, ok := g.store.Get(ctx, identity.SessionKey); !ok || stored != key {
		g.log.Warn(ctx, "session key could not be stored, sending requests without it")
		return ""
	}
	g.log.Info(ctx, "generated new session key", "prefix", key[:min(len(key), 20)])
	return key
}

func (g *Generator) newKey() (string, error) {
	buf := make([]byte, 12)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	s := strings.ToLower(base36.EncodeBytes(buf))
	if len(s) < suffixLen {
		s = strings.Repeat("0", suffixLen-len(s)) + s
	}
	return fmt.Sprintf("session_%d_%s", g.now().UnixMilli(), s[len(s)-suffixLen:]), nil
}
