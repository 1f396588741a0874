package extraction

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectMediaType(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		declared string
		data     []byte
		want     string
	}{
		{"declared pdf", "a.bin", "application/pdf", nil, MediaPDF},
		{"declared with params", "a", "text/csv; charset=utf-8", nil, MediaCSV},
		{"application/csv alias", "a", "application/csv", nil, MediaCSV},
		{"xlsx by extension", "Loan.XLSX", "application/octet-stream", nil, MediaXLSX},
		{"xls by extension", "loan.xls", "", nil, MediaXLS},
		{"sniffed pdf", "upload", "", []byte("%PDF-1.7\n..."), MediaPDF},
		{"sniffed text", "upload", "", []byte("EMI,Date\n2000,2024-01-05\n"), MediaText},
		{"image rejected", "photo.png", "image/png", []byte("\x89PNG\r\n\x1a\n"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMediaType(tt.file, tt.declared, tt.data))
		})
	}
}

func TestReadDocument(t *testing.T) {
	doc, err := ReadDocument("s.csv", "", strings.NewReader("a,b\n1,2\n"), 1024)
	require.NoError(t, err)
	assert.Equal(t, MediaCSV, doc.MediaType)
	assert.True(t, doc.IsText())
	assert.Equal(t, "data:text/csv;base64,YSxiCjEsMgo=", doc.DataURI())

	_, err = ReadDocument("s.pdf", MediaPDF, bytes.NewReader(nil), 1024)
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = ReadDocument("s.pdf", MediaPDF, bytes.NewReader(make([]byte, 2048)), 1024)
	assert.ErrorIs(t, err, ErrDocumentTooLarge)

	_, err = ReadDocument("s.png", "image/png", bytes.NewReader([]byte("\x89PNG\r\n\x1a\n")), 1024)
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)
}

func TestParseLoanReply_CollectsProblems(t *testing.T) {
	_, err := parseLoanReply(`{"loanName": "", "totalAmount": -1, "tenure": 0.5, "nextDueDate": "05/04/2024"}`)
	require.Error(t, err)
	for _, want := range []string{"loanName", "totalAmount", "emiAmount is required", "tenure", "nextDueDate", "status is required"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestParseLoanReply_LastUpdated(t *testing.T) {
	reply := strings.Replace(validReply, `"status": "On Track"`, `"status": "Delayed", "lastUpdated": "2024-03-01T10:00:00Z"`, 1)
	loan, err := parseLoanReply(reply)
	require.NoError(t, err)
	require.NotNil(t, loan.LastUpdated)
	assert.Equal(t, 2024, loan.LastUpdated.Year())

	bad := strings.Replace(validReply, `"status": "On Track"`, `"status": "Delayed", "lastUpdated": "yesterday"`, 1)
	_, err = parseLoanReply(bad)
	assert.ErrorContains(t, err, "lastUpdated")
}
