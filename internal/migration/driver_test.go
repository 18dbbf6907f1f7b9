package migration

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/ljmigrate/internal/db"
	"github.com/lherron/ljmigrate/internal/domain"
	"github.com/lherron/ljmigrate/internal/testutil"
)

func newDriver(t *testing.T, database *db.DB, opts Options) (*Driver, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	d := NewDriver(database, nil, logger, opts)
	d.SetClock(func() time.Time { return time.Date(2013, 9, 3, 9, 22, 36, 0, time.UTC) })
	return d, &buf
}

func seedTimeEntries(t *testing.T, database *db.DB) {
	t.Helper()
	testutil.InsertLegacy(t, database,
		testutil.Legacy{JournaledID: 4, Type: "TimeEntryJournal", Version: 1, ActivityType: "time_entries",
			Changes: map[string][]any{"hours": {nil, 2}}},
		testutil.Legacy{JournaledID: 4, Type: "TimeEntryJournal", Version: 2, ActivityType: "time_entries",
			Changes: map[string][]any{"comments": {nil, "reviewed"}}},
		testutil.Legacy{JournaledID: 1, Type: "FooJournal", Version: 1, ActivityType: "foo",
			Changes: map[string][]any{"bar": {nil, 1}}},
	)
}

func TestRun(t *testing.T) {
	database, _ := testutil.TempDB(t)
	seedTimeEntries(t, database)

	d, logs := newDriver(t, database, DefaultOptions())
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Migrated)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, map[string]int{"FooJournal": 1}, report.Ignored)
	assert.Equal(t, 1, report.IgnoredTotal())

	assert.Equal(t, int64(2), testutil.Count(t, database, "SELECT COUNT(*) FROM journals"))
	assert.Equal(t, int64(0), testutil.Count(t, database, "SELECT COUNT(*) FROM journals WHERE journable_type = 'Foo'"))

	rows := testutil.Query(t, database, `
		SELECT j.version, d.hours, d.comments
		FROM journals j JOIN time_entry_journals d ON d.id = j.journable_data_id
		ORDER BY j.version`)
	require.Len(t, rows, 2)
	assert.EqualValues(t, 2, rows[0]["hours"])
	assert.Nil(t, rows[0]["comments"])
	assert.EqualValues(t, 2, rows[1]["hours"])
	assert.Equal(t, "reviewed", rows[1]["comments"])

	assert.Contains(t, logs.String(), "Migrating 3 legacy journals.")
	assert.Contains(t, logs.String(), "FooJournal was ignored 1 times")
}

func TestRun_Rerun(t *testing.T) {
	database, _ := testutil.TempDB(t)
	seedTimeEntries(t, database)

	d, _ := newDriver(t, database, DefaultOptions())
	_, err := d.Run(context.Background())
	require.NoError(t, err)

	report, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Migrated)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, int64(2), testutil.Count(t, database, "SELECT COUNT(*) FROM time_entry_journals"))
}

func TestRun_IncompleteJournals(t *testing.T) {
	database, _ := testutil.TempDB(t)
	ids := testutil.InsertLegacy(t, database,
		testutil.Legacy{JournaledID: 4, Type: "TimeEntryJournal", Version: 1, ActivityType: "time_entries"},
		testutil.Legacy{JournaledID: 4, Type: "TimeEntryJournal", Version: 3, ActivityType: "time_entries"},
	)

	d, logs := newDriver(t, database, DefaultOptions())
	_, err := d.Run(context.Background())

	var incomplete *domain.IncompleteJournalsError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []int64{ids[1]}, incomplete.IDs)
	assert.Equal(t, int64(0), testutil.Count(t, database, "SELECT COUNT(*) FROM journals"))
	assert.Contains(t, logs.String(), "level=error")
	assert.Contains(t, logs.String(), "component=migration")
	assert.Contains(t, logs.String(), "operation=run")
}

func TestRun_DryRun(t *testing.T) {
	database, _ := testutil.TempDB(t)
	seedTimeEntries(t, database)

	opts := DefaultOptions()
	opts.DryRun = true
	d, _ := newDriver(t, database, opts)

	report, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Migrated)
	assert.Equal(t, int64(0), testutil.Count(t, database, "SELECT COUNT(*) FROM journals"))
}

func seedFailingWiki(t *testing.T, database *db.DB) []int64 {
	t.Helper()
	return testutil.InsertLegacy(t, database,
		testutil.Legacy{JournaledID: 1, Type: "NewsJournal", Version: 1, ActivityType: "news",
			Changes: map[string][]any{"title": {nil, "Release"}}},
		testutil.Legacy{JournaledID: 2, Type: "WikiContentJournal", Version: 1, ActivityType: "wiki_edits",
			Changes: map[string][]any{"data": {nil, "x"}, "compression": {nil, "gzip"}}},
	)
}

func TestRun_AtomicRollsBackOnError(t *testing.T) {
	database, _ := testutil.TempDB(t)
	ids := seedFailingWiki(t, database)

	d, _ := newDriver(t, database, DefaultOptions())
	_, err := d.Run(context.Background())
	require.Error(t, err)

	var rowErr *domain.RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, ids[1], rowErr.ID)

	var unsupported *domain.UnsupportedWikiContentJournalCompressionError
	assert.True(t, errors.As(err, &unsupported))

	assert.Equal(t, int64(0), testutil.Count(t, database, "SELECT COUNT(*) FROM journals"))
}

func TestRun_NonAtomicKeepsEarlierRows(t *testing.T) {
	database, _ := testutil.TempDB(t)
	seedFailingWiki(t, database)

	opts := DefaultOptions()
	opts.Atomic = false
	d, _ := newDriver(t, database, opts)

	report, err := d.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, report.Migrated)
	assert.Equal(t, int64(1), testutil.Count(t, database, "SELECT COUNT(*) FROM news_journals"))
}

func TestRun_Progress(t *testing.T) {
	database, _ := testutil.TempDB(t)
	var rows []testutil.Legacy
	for v := int64(1); v <= 5; v++ {
		rows = append(rows, testutil.Legacy{JournaledID: 1, Type: "NewsJournal", Version: v, ActivityType: "news"})
	}
	testutil.InsertLegacy(t, database, rows...)

	opts := DefaultOptions()
	opts.ProgressEvery = 2
	d, logs := newDriver(t, database, opts)

	_, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "2 journals migrated")
	assert.Contains(t, logs.String(), "4 journals migrated")
	assert.NotContains(t, logs.String(), "0 journals migrated")
}

func TestRun_Cancelled(t *testing.T) {
	database, _ := testutil.TempDB(t)
	seedTimeEntries(t, database)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, _ := newDriver(t, database, DefaultOptions())
	_, err := d.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, int64(0), testutil.Count(t, database, "SELECT COUNT(*) FROM journals"))
}

func TestNewDriver_Defaults(t *testing.T) {
	database, _ := testutil.TempDB(t)
	d := NewDriver(database, nil, logrus.New(), Options{DryRun: true})

	assert.Equal(t, DefaultProgressEvery, d.opts.ProgressEvery)
	assert.True(t, d.opts.Atomic)
	assert.Equal(t, "legacy_journals", d.opts.Table)
}
