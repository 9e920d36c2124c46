package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. Version suffix enables
// future algorithm migration.
const (
	DomainFact    = "strata/fact/v1"
	DomainFactSet = "strata/factset/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FactID computes the content-addressed ID of a fact. Stable across runs
// given the same symbol and values.
func FactID(f Fact) (string, error) {
	canonical, err := f.Canonical()
	if err != nil {
		return "", fmt.Errorf("FactID: %w", err)
	}
	return hashWithDomain(DomainFact, canonical), nil
}

// FactSetID computes the content-addressed ID of an ordered fact sequence.
// The minimizer uses it to log and deduplicate trial candidate sets.
func FactSetID(facts []Fact) (string, error) {
	var buf []byte
	for i, f := range facts {
		canonical, err := f.Canonical()
		if err != nil {
			return "", fmt.Errorf("FactSetID[%d]: %w", i, err)
		}
		buf = append(buf, canonical...)
		buf = append(buf, 0x00)
	}
	return hashWithDomain(DomainFactSet, buf), nil
}

// MustFactID is like FactID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFactID(f Fact) string {
	id, err := FactID(f)
	if err != nil {
		panic(err)
	}
	return id
}
