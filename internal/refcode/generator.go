package refcode

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/store"
)

// Crockford-style alphabet: no I, L, O, U, so codes survive handwriting on a
// seating card and a glance at a check-in screen.
const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const (
	codeLength  = 8
	maxAttempts = 5
)

// Generator issues short scope-unique reference codes for tables (per event)
// and guest assignments (per organization). Uniqueness is settled by
// query-then-insert with the scope's uniqueness constraint as backstop;
// after maxAttempts collisions it fails loudly instead of looping.
type Generator struct {
	DB *store.DB
}

func NewGenerator(db *store.DB) *Generator {
	return &Generator{DB: db}
}

func (g *Generator) GuestCode(ctx context.Context, organizationID string) (string, error) {
	return g.generate(ctx, func(ctx context.Context, code string) (bool, error) {
		return g.DB.GuestReferenceCodeExists(ctx, organizationID, code)
	})
}

func (g *Generator) TableCode(ctx context.Context, eventID string) (string, error) {
	return g.generate(ctx, func(ctx context.Context, code string) (bool, error) {
		return g.DB.TableReferenceCodeExists(ctx, eventID, code)
	})
}

func (g *Generator) generate(ctx context.Context, exists func(context.Context, string) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := randomCode(codeLength)
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", errs.Newf(errs.External,
		"failed to generate a unique reference code after %d attempts", maxAttempts)
}

func randomCode(length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}
