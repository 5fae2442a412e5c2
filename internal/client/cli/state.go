package cli

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/talentdir/internal/client/identity"
)

// State prints the locally persisted identity record. Tokens are masked.
func (a *App) State(ctx context.Context) error {
	fields, err := a.store.Fields(ctx)
	if err != nil {
		return a.fail(ctx, "state", err)
	}
	if len(fields) == 0 {
		a.printf("Nothing stored\n")
		return nil
	}
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, string(f))
	}
	sort.Strings(names)
	for _, name := range names {
		v := fields[identity.Field(name)]
		switch identity.Field(name) {
		case identity.AccessToken, identity.RefreshToken:
			v = maskSecret(v)
		}
		a.printf("%-14s %s\n", name, v)
	}
	return nil
}

// maskSecret keeps the first and last four characters of s.
func maskSecret(s string) string {
	if len(s) <= 12 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
