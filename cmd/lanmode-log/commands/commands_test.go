package commands

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuvaraj-ayla/lanmode/pkg/log"
)

const (
	testSession = "3f2a9c1e-6789-0123-4567-890abcdef012"
	testDSN     = "AC000W000123456"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.llog")

	logger, err := log.NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())
	return path
}

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, event)
	}
}

func sampleEvents() []log.Event {
	base := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	cmdID := uint32(7)
	seq := int64(3)
	status := 412
	return []log.Event{
		{
			Timestamp: base, Direction: log.DirectionOut, Layer: log.LayerHTTP,
			Category: log.CategoryControl, LocalRole: log.RoleApp, DSN: testDSN,
			Control: &log.ControlEvent{Type: log.ControlRegistration, Notify: true, Detail: "192.168.1.20:80"},
		},
		{
			Timestamp: base.Add(time.Second), SessionID: testSession, Direction: log.DirectionIn,
			Layer: log.LayerSession, Category: log.CategoryState, LocalRole: log.RoleApp, DSN: testDSN,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntitySession, OldState: "inactive", NewState: "active"},
		},
		{
			Timestamp: base.Add(2 * time.Second), SessionID: testSession, Direction: log.DirectionIn,
			Layer: log.LayerHTTP, Category: log.CategoryControl, LocalRole: log.RoleApp, DSN: testDSN,
			Control: &log.ControlEvent{Type: log.ControlPoll},
		},
		{
			Timestamp: base.Add(3 * time.Second), SessionID: testSession, Direction: log.DirectionOut,
			Layer: log.LayerEnvelope, Category: log.CategoryMessage, LocalRole: log.RoleApp, DSN: testDSN,
			RemoteAddr: "192.168.1.20",
			Message: &log.MessageEvent{
				Method: "GET", Path: "/local_lan/commands.json", Status: 206,
				CmdID: &cmdID, SeqNo: &seq, Size: 64,
				Payload: []byte(`{"cmds":[]}`),
			},
		},
		{
			Timestamp: base.Add(4 * time.Second), SessionID: testSession, Direction: log.DirectionIn,
			Layer: log.LayerEnvelope, Category: log.CategoryError, LocalRole: log.RoleDevice, DSN: testDSN,
			Error: &log.ErrorEventData{Layer: log.LayerEnvelope, Message: "sign mismatch", Status: &status, Context: "decode"},
		},
	}
}

func TestFormatMessageEvent(t *testing.T) {
	processing := 2333 * time.Microsecond
	event := sampleEvents()[3]
	event.Message.ProcessingTime = &processing

	var buf bytes.Buffer
	formatEvent(&buf, event)
	out := buf.String()

	assert.Contains(t, out, "2026-03-02T09:30:03.000000Z [session:3f2a9c1e] APP")
	assert.Contains(t, out, "OUT ENVELOPE GET /local_lan/commands.json")
	assert.Contains(t, out, "DSN: AC000W000123456  Remote: 192.168.1.20")
	assert.Contains(t, out, "Status: 206")
	assert.Contains(t, out, "CmdID: 7")
	assert.Contains(t, out, "SeqNo: 3")
	assert.Contains(t, out, "Size: 64 bytes")
	assert.Contains(t, out, "Duration: 2.333ms")
	assert.Contains(t, out, `Payload: {"cmds":[]}`)
}

func TestFormatControlEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[0])
	out := buf.String()

	assert.Contains(t, out, "[session:-]")
	assert.Contains(t, out, "CTRL REGISTRATION")
	assert.Contains(t, out, "Notify: yes")
	assert.Contains(t, out, "Detail: 192.168.1.20:80")
}

func TestFormatStateAndErrorEvents(t *testing.T) {
	events := sampleEvents()

	var buf bytes.Buffer
	formatEvent(&buf, events[1])
	assert.Contains(t, buf.String(), "Entity: SESSION")
	assert.Contains(t, buf.String(), "inactive -> active")

	buf.Reset()
	formatEvent(&buf, events[4])
	out := buf.String()
	assert.Contains(t, out, "DEVICE")
	assert.Contains(t, out, "Message: sign mismatch")
	assert.Contains(t, out, "Status: 412")
	assert.Contains(t, out, "Context: decode")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "500.000us", formatDuration(500*time.Microsecond))
	assert.Equal(t, "12.500ms", formatDuration(12500*time.Microsecond))
	assert.Equal(t, "1.500s", formatDuration(1500*time.Millisecond))
}

func TestParseFlags(t *testing.T) {
	l, err := ParseLayerFlag("Envelope")
	require.NoError(t, err)
	assert.Equal(t, log.LayerEnvelope, l)
	_, err = ParseLayerFlag("wire")
	assert.Error(t, err)

	d, err := ParseDirectionFlag("OUT")
	require.NoError(t, err)
	assert.Equal(t, log.DirectionOut, d)
	_, err = ParseDirectionFlag("sideways")
	assert.Error(t, err)

	c, err := ParseCategoryFlag("state")
	require.NoError(t, err)
	assert.Equal(t, log.CategoryState, c)
	_, err = ParseCategoryFlag("snapshot")
	assert.Error(t, err)

	r, err := ParseRoleFlag("device")
	require.NoError(t, err)
	assert.Equal(t, log.RoleDevice, r)
	_, err = ParseRoleFlag("cloud")
	assert.Error(t, err)
}

func TestRunViewFiltersByLayer(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	layer := log.LayerEnvelope

	var buf bytes.Buffer
	require.NoError(t, RunView(path, ViewFilter{Layer: &layer}, &buf))

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "[session:"))
	assert.NotContains(t, out, "REGISTRATION")
}

func TestRunViewBySessionPrefixAndPath(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunView(path, ViewFilter{SessionID: "3f2a9c1e", Path: "commands.json"}, &buf))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "[session:"))
	assert.Contains(t, out, "GET /local_lan/commands.json")
}

func TestRunViewMissingFile(t *testing.T) {
	err := RunView(filepath.Join(t.TempDir(), "missing.llog"), ViewFilter{}, io.Discard)
	assert.ErrorContains(t, err, "failed to open log file")
}

func TestExportCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	outPath := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, RunExport(path, "csv", outPath))

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 6)
	assert.Equal(t, "session_id", rows[0][1])
	assert.Equal(t, []string{"message", "/local_lan/commands.json", "206", "7"}, rows[4][8:])
	assert.Equal(t, "error", rows[5][8])
	assert.Equal(t, "412", rows[5][10])
	assert.Equal(t, "REGISTRATION", rows[1][8])
}

func TestExportJSONL(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	outPath := filepath.Join(t.TempDir(), "out.jsonl")
	require.NoError(t, RunExport(path, "jsonl", outPath))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 5)
	assert.Contains(t, lines[3], `"Path":"/local_lan/commands.json"`)
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out.xml"))
	assert.ErrorContains(t, err, "unknown format")
}

func TestRunFilter(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	outPath := filepath.Join(t.TempDir(), "filtered.llog")

	var buf bytes.Buffer
	err := RunFilter(path, FilterOptions{
		Output:    outPath,
		SessionID: testSession,
		Role:      "app",
		TimeEnd:   "2026-03-02T09:30:03Z",
	}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "Filtered 2 events to "+outPath+"\n", buf.String())

	events := readAll(t, outPath)
	require.Len(t, events, 2)
	assert.Equal(t, log.CategoryState, events[0].Category)
	assert.Equal(t, log.ControlPoll, events[1].Control.Type)
}

func TestRunFilterRejectsBadOptions(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "f.llog")

	tests := []FilterOptions{
		{Output: out, TimeStart: "yesterday"},
		{Output: out, TimeEnd: "tomorrow"},
		{Output: out, Layer: "wire"},
		{Output: out, Direction: "up"},
		{Output: out, Category: "snapshot"},
		{Output: out, Role: "cloud"},
	}
	for _, opts := range tests {
		assert.Error(t, RunFilter(path, opts, io.Discard), "%+v", opts)
	}
}

func TestRunFilterReportsTruncatedInput(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-2))
	outPath := filepath.Join(t.TempDir(), "filtered.llog")

	var buf bytes.Buffer
	require.NoError(t, RunFilter(path, FilterOptions{Output: outPath, Path: "/local_lan/"}, &buf))

	assert.Contains(t, buf.String(), "Filtered 1 events to "+outPath)
	assert.Contains(t, buf.String(), "4 complete events were read")
	require.Len(t, readAll(t, outPath), 1)

	stats, err := collectStats(path)
	require.NoError(t, err)
	assert.True(t, stats.Truncated)
	assert.Equal(t, 4, stats.TotalEvents)
}

func TestStats(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	stats, err := collectStats(path)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalEvents)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 2, stats.EventsByLayer[log.LayerHTTP])
	assert.Equal(t, 4*time.Second, stats.TimeRange.End.Sub(stats.TimeRange.Start))

	require.Len(t, stats.Sessions, 1, "events without a session are not grouped")
	s := stats.Sessions[testSession]
	assert.Equal(t, 4, s.Events)
	assert.Equal(t, testDSN, s.DSN)
	assert.Equal(t, 1, s.Polls)
	assert.Equal(t, 0, s.Registrations)
	assert.Equal(t, 1, s.Errors)

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))
	out := buf.String()
	assert.Contains(t, out, "Total Events: 5")
	assert.Contains(t, out, "Sessions: 1")
	assert.Contains(t, out, "[3f2a9c1e] 4 events")
	assert.Contains(t, out, "Polls: 1  Registrations: 0")
}
