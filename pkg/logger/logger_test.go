package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	logger := New()
	assert.NotNil(t, logger)
	assert.NotNil(t, logger.info)
	assert.NotNil(t, logger.error)
	assert.NotNil(t, logger.warn)
}

func TestInfo(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewWithWriter(&out, &errOut)

	logger.Info("Test message: %s", "info")

	assert.Contains(t, out.String(), "[INFO] Test message: info")
	assert.Empty(t, errOut.String())
}

func TestError(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewWithWriter(&out, &errOut)

	logger.Error("Test error: %s", "error")

	assert.Contains(t, errOut.String(), "[ERROR] Test error: error")
	assert.Empty(t, out.String())
}

func TestWarn(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewWithWriter(&out, &errOut)

	logger.Warn("Test warning: %s", "warning")

	assert.Contains(t, out.String(), "[WARN] Test warning: warning")
}

func TestLogger_Formatting(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewWithWriter(&out, &errOut)

	logger.Info("User %s approved post %d", "john", 123)
	logger.Error("Failed to process request %d: %s", 404, "not found")

	assert.Contains(t, out.String(), "User john approved post 123")
	assert.Contains(t, errOut.String(), "Failed to process request 404: not found")
}

func TestLogger_TimestampPrecedesLevel(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewWithWriter(&out, &errOut)

	logger.Warn("post %s is waiting", "p-1")

	line := out.String()
	assert.Regexp(t, `^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2} \[WARN\] post p-1 is waiting\n$`, line)
}
