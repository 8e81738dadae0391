package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CanonicalPayload serializes the four fields that identify an expense.
// Keys are sorted (encoding/json sorts map keys), the amount is its fixed
// two-decimal string, the date is YYYY-MM-DD and an absent description is "".
func CanonicalPayload(in ExpenseInput) []byte {
	b, err := json.Marshal(map[string]string{
		"amount":      in.Amount.String(),
		"category":    in.Category,
		"date":        in.Date.String(),
		"description": in.NormalizedDescription(),
	})
	if err != nil {
		// a map of strings always marshals
		panic(err)
	}
	return b
}

// RequestHash returns the hex SHA-256 of the canonical payload. It is the
// de-duplication key enforced unique by storage.
func RequestHash(in ExpenseInput) string {
	sum := sha256.Sum256(CanonicalPayload(in))
	return hex.EncodeToString(sum[:])
}
