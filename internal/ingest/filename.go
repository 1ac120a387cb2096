package ingest

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// ProofKey derives the object-store key for a proof file:
// preuve_<name with whitespace collapsed to underscores>_<unix seconds>.<ext>.
// The derivation is deterministic for identical inputs; distinct names or
// instants never collide. Two same-named submissions within the same second
// are an accepted edge case.
func ProofKey(nom string, at time.Time, originalFilename string) string {
	sanitized := strings.Join(strings.Fields(nom), "_")
	return fmt.Sprintf("preuve_%s_%d.%s", sanitized, at.Unix(), extension(originalFilename))
}

func extension(filename string) string {
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	if ext == "" {
		return "bin"
	}
	return strings.ToLower(ext)
}
