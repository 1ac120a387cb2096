package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProofKeyDeterministic(t *testing.T) {
	at := time.Unix(1700000000, 0)
	first := ProofKey("Alice Dupont", at, "recu.PNG")
	second := ProofKey("Alice Dupont", at, "recu.PNG")
	assert.Equal(t, first, second)
	assert.Equal(t, "preuve_Alice_Dupont_1700000000.png", first)
}

func TestProofKeyDistinctInstants(t *testing.T) {
	first := ProofKey("Alice", time.Unix(1700000000, 0), "recu.png")
	second := ProofKey("Alice", time.Unix(1700000001, 0), "recu.png")
	assert.NotEqual(t, first, second)
}

func TestProofKeySanitizesWhitespace(t *testing.T) {
	key := ProofKey("  Jean \t Claude  Van   Damme ", time.Unix(42, 0), "p.pdf")
	assert.Equal(t, "preuve_Jean_Claude_Van_Damme_42.pdf", key)
}

func TestProofKeyExtensionFallback(t *testing.T) {
	assert.Equal(t, "preuve_Alice_42.bin", ProofKey("Alice", time.Unix(42, 0), "sansextension"))
	assert.Equal(t, "preuve_Alice_42.jpeg", ProofKey("Alice", time.Unix(42, 0), "photo.JPEG"))
}
