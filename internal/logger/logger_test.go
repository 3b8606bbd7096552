package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZapLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l := NewZapLogger(path, true)

	l.Info("payment", "payment confirmed", map[string]interface{}{"payment_id": 7})
	l.Error("payment", "confirm failed", map[string]interface{}{"error": errors.New("boom")})
	l.Debug("payment", "dropped below file level", nil)
	_ = l.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, `"message":"payment confirmed"`)
	assert.Contains(t, out, `"module":"payment"`)
	assert.Contains(t, out, `"payment_id":7`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.NotContains(t, out, "dropped below file level")
}

func TestNopLoggerAcceptsNilDetails(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() {
		l.Info("x", "y", nil)
		l.Error("x", "y", nil)
	})
}
