// Package idhash derives deterministic identifiers from run inputs, so that
// identical configurations always map to the same stored records.
package idhash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"alloc-lab/internal/domain"
)

// FingerprintPanel computes a SHA256 fingerprint of a return matrix:
// dates, symbols and every return value in order.
// Returns hex-encoded hash (64 characters).
func FingerprintPanel(m *domain.ReturnMatrix) string {
	h := sha256.New()

	var buf [8]byte
	for _, d := range m.Dates() {
		binary.BigEndian.PutUint64(buf[:], uint64(d))
		h.Write(buf[:])
	}
	for _, s := range m.Symbols() {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	for i := 0; i < m.NumDates(); i++ {
		for _, v := range m.Row(i) {
			fmt.Fprintf(h, "%.17g|", v)
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

// ComputeRunID computes a deterministic run ID.
// Formula: SHA256(panelFingerprint|separationDate|strategy,...|penalty)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(panelFingerprint string, separationDateMs int64, strategies []domain.StrategyType, penalty domain.PenaltySpec) string {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = string(s)
	}

	data := fmt.Sprintf("%s|%d|%s|%s",
		panelFingerprint,
		separationDateMs,
		strings.Join(names, ","),
		penalty,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
