package blob

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspor-platform/docintake/internal/common"
)

func tokenFromURL(t *testing.T, url string) string {
	t.Helper()
	idx := strings.LastIndex(url, "/files/")
	require.GreaterOrEqual(t, idx, 0, "signed url must route through /files/")
	return url[idx+len("/files/"):]
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := NewURLSigner("secret", "http://localhost:8080")

	url, err := signer.Sign("outputs/run-1/report.pdf", SignOptions{
		Method:      MethodGet,
		TTL:         time.Minute,
		ContentType: "application/pdf",
		Filename:    "reporte_run1.pdf",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/files/"))

	grant, err := signer.Verify(tokenFromURL(t, url))
	require.NoError(t, err)
	assert.Equal(t, "outputs/run-1/report.pdf", grant.Key)
	assert.Equal(t, MethodGet, grant.Method)
	assert.Equal(t, "application/pdf", grant.ContentType)
	assert.Equal(t, "reporte_run1.pdf", grant.Filename)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	signer := NewURLSigner("secret", "http://localhost:8080")

	past := time.Now().Add(-time.Hour)
	claims := urlClaims{
		Key:    "outputs/run-1/report.pdf",
		Method: string(MethodGet),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, common.ErrNotFound, "expiry must look like a missing resource")
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer := NewURLSigner("secret-a", "http://localhost:8080")
	other := NewURLSigner("secret-b", "http://localhost:8080")

	url, err := signer.Sign("outputs/run-1/report.pdf", SignOptions{TTL: time.Minute})
	require.NoError(t, err)

	_, err = other.Verify(tokenFromURL(t, url))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	signer := NewURLSigner("secret", "http://localhost:8080")
	_, err := signer.Verify("definitely.not.a.jwt")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSignRequiresSecret(t *testing.T) {
	signer := NewURLSigner("", "http://localhost:8080")
	_, err := signer.Sign("key", SignOptions{})
	assert.Error(t, err)
}

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, "outputs/run-1/analysis.txt", AnalysisKey("run-1"))
	assert.Equal(t, "outputs/run-1/report.docx", ReportKey("run-1", "docx"))
	assert.Equal(t, "uploads/user-1/doc.pdf", UploadKey("user-1", "doc.pdf"))
}
