package proofcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectEmptyPayload(t *testing.T) {
	_, err := Inspect(nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestInspectPNG(t *testing.T) {
	data := make([]byte, 1024)
	copy(data, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})

	report, err := Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, "image/png", report.ContentType)
	assert.Zero(t, report.Pages)
}

func TestInspectCorruptPDF(t *testing.T) {
	_, err := Inspect([]byte("%PDF-1.4 this is not a valid document"))
	assert.Error(t, err)
}
