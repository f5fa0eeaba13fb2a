package storage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
)

var (
	pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}
	pdfHeader = []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
)

func TestProofStorage_Inspect(t *testing.T) {
	s := NewProofStorage("https://example.com/storage/", 1)

	file, err := s.Inspect("receipt.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "image/png", file.ContentType)
	assert.Equal(t, "receipt.png", file.Name)
	assert.Equal(t, int64(len(pngHeader)), file.Size())

	file, err = s.Inspect("statement.pdf", bytes.NewReader(pdfHeader))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
}

func TestProofStorage_InspectRejects(t *testing.T) {
	s := NewProofStorage("https://example.com/storage", 1)

	tests := []struct {
		name     string
		fileName string
		data     []byte
	}{
		{"bad extension", "script.exe", pngHeader},
		{"empty", "receipt.png", nil},
		{"unknown content", "receipt.png", []byte("just some text")},
		{"extension mismatch", "receipt.jpg", pngHeader},
		{"too large", "receipt.png", append(append([]byte{}, pngHeader...), make([]byte, 1024*1024)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Inspect(tt.fileName, bytes.NewReader(tt.data))
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err))
		})
	}
}

func TestProofStorage_URL(t *testing.T) {
	s := NewProofStorage("https://example.com/storage/", 10)

	assert.Equal(t, "https://example.com/storage/p2p-proofs/a.png", s.URL("p2p-proofs/a.png"))
	assert.Equal(t, "https://example.com/storage/p2p-proofs/a.png", s.URL("/p2p-proofs/a.png"))
	assert.Equal(t, "https://cdn.example.com/a.png", s.URL("https://cdn.example.com/a.png"))
	assert.Empty(t, s.URL(""))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "passwd", sanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "proof", sanitizeFilename(""))
	assert.Equal(t, "C:_tmp__a.png", sanitizeFilename(`C:\tmp\..\a.png`))
}
