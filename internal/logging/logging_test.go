package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightrecorder/internal/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithOutput(config.Log{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	l.WithField("queue", "sightings").Info("dequeued work item")
	assert.Contains(t, buf.String(), `"queue":"sightings"`)
	assert.Contains(t, buf.String(), `"msg":"dequeued work item"`)
}

func TestNewRejectsBadSettings(t *testing.T) {
	_, err := New(config.Log{Level: "loud"})
	assert.Error(t, err)

	_, err = New(config.Log{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
