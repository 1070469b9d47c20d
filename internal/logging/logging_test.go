package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type failingWriter struct{ err error }

func (f failingWriter) Write([]byte) (int, error) { return 0, f.err }

func TestGetLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"trace":   logrus.TraceLevel,
		"DEBUG":   logrus.DebugLevel,
		"warn":    logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"info":    logrus.InfoLevel,
		"":        logrus.InfoLevel,
		"verbose": logrus.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, GetLevel(in), in)
	}
}

func TestCombinedWriterKeepsWritingPastErrors(t *testing.T) {
	var a, b bytes.Buffer
	errOne := errors.New("disk full")
	errTwo := errors.New("closed")

	cw := NewCombinedWriter(&a, failingWriter{errOne}, &b, failingWriter{errTwo})
	n, err := cw.Write([]byte("hello"))

	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", a.String())
	assert.Equal(t, "hello", b.String())
	assert.ElementsMatch(t, []error{errOne, errTwo}, multierr.Errors(err))
}

func TestSetupWritesJSONToFile(t *testing.T) {
	logger := logrus.New()
	base := filepath.Join(t.TempDir(), "sessionguard")

	closer := Setup(logger, SetupParams{LogFileName: base, LogLevel: "debug", LogFormatJSON: true})
	defer closer.Close()

	logger.WithField("route", "reports").Debug("redirect")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(base + ".log")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"route":"reports"`)
	assert.Contains(t, string(data), `"level":"debug"`)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestSetupStdoutOnly(t *testing.T) {
	logger := logrus.New()
	closer := Setup(logger, SetupParams{LogLevel: "warn"})
	assert.NoError(t, closer.Close())
	assert.Equal(t, os.Stdout, logger.Out)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
}
