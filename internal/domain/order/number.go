package order

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

const numberPrefix = "FM"

// NewNumber generates a human-readable order number: a fixed prefix, the
// order date, and six random hex characters. Uniqueness is enforced by the
// database; callers retry on ErrDuplicateNumber.
func NewNumber(now time.Time) string {
	var b [3]byte
	// rand.Read on the default source never fails.
	_, _ = rand.Read(b[:])
	return numberPrefix + now.Format("060102") + strings.ToUpper(hex.EncodeToString(b[:]))
}
