package log

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newBufferedEntry(level logrus.Level) (*logrus.Entry, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return logrus.NewEntry(logger), &buf
}

func TestBadgerLogrusAdapter_InfoDemotedToDebug(t *testing.T) {
	entry, buf := newBufferedEntry(logrus.InfoLevel)
	adapter := NewBadgerLogrusAdapter(entry)

	adapter.Infof("compaction %d done\n", 3)
	assert.Empty(t, buf.String(), "badger info should not show at info level")

	adapter.Warningf("value log %s\n", "rewrite")
	assert.Contains(t, buf.String(), "level=warning")
	assert.Contains(t, buf.String(), "value log rewrite")
}

func TestBadgerLogrusAdapter_DebugLevelShowsAll(t *testing.T) {
	entry, buf := newBufferedEntry(logrus.DebugLevel)
	adapter := NewBadgerLogrusAdapter(entry)

	adapter.Infof("opened\n")
	adapter.Debugf("debug %s", "line")
	adapter.Errorf("failed: %v", "disk")

	out := buf.String()
	assert.Contains(t, out, "opened")
	assert.Contains(t, out, "debug line")
	assert.Contains(t, out, "level=error")
	assert.NotContains(t, out, "opened\\n")
}
