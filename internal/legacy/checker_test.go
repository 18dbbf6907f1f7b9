package legacy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/ljmigrate/internal/domain"
	"github.com/lherron/ljmigrate/internal/testutil"
)

func chain(journaledID int64, typ string, versions ...int64) []testutil.Legacy {
	rows := make([]testutil.Legacy, 0, len(versions))
	for _, v := range versions {
		rows = append(rows, testutil.Legacy{JournaledID: journaledID, Type: typ, Version: v, ActivityType: "work_packages"})
	}
	return rows
}

func TestCheck_CompleteChains(t *testing.T) {
	database, _ := testutil.TempDB(t)
	testutil.InsertLegacy(t, database, chain(1, "WorkPackageJournal", 1, 2, 3)...)
	testutil.InsertLegacy(t, database, chain(1, "NewsJournal", 1, 2)...)
	testutil.InsertLegacy(t, database, chain(2, "WorkPackageJournal", 1)...)

	assert.NoError(t, NewChecker(database.Session(), "").Check(context.Background()))
}

func TestCheck_EmptyTable(t *testing.T) {
	database, _ := testutil.TempDB(t)
	assert.NoError(t, NewChecker(database.Session(), "").Check(context.Background()))
}

func TestCheck_MissingMiddleVersion(t *testing.T) {
	database, _ := testutil.TempDB(t)
	ids := testutil.InsertLegacy(t, database, chain(1, "WorkPackageJournal", 1, 3)...)

	err := NewChecker(database.Session(), "").Check(context.Background())
	require.Error(t, err)

	var incomplete *domain.IncompleteJournalsError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []int64{ids[1]}, incomplete.IDs)
}

func TestCheck_MissingInitialVersion(t *testing.T) {
	database, _ := testutil.TempDB(t)
	ids := testutil.InsertLegacy(t, database, chain(7, "WikiContentJournal", 2, 3)...)

	err := NewChecker(database.Session(), "").Check(context.Background())

	var incomplete *domain.IncompleteJournalsError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, ids, incomplete.IDs)
}

func TestCheck_DuplicateVersion(t *testing.T) {
	database, _ := testutil.TempDB(t)
	ids := testutil.InsertLegacy(t, database, chain(1, "NewsJournal", 1, 2, 2)...)

	err := NewChecker(database.Session(), "").Check(context.Background())

	var incomplete *domain.IncompleteJournalsError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []int64{ids[1], ids[2]}, incomplete.IDs)
}

func TestCheck_SameIDDifferentTypeIsSeparateChain(t *testing.T) {
	database, _ := testutil.TempDB(t)
	testutil.InsertLegacy(t, database, chain(1, "NewsJournal", 1)...)
	ids := testutil.InsertLegacy(t, database, chain(1, "MessageJournal", 2)...)

	var incomplete *domain.IncompleteJournalsError
	err := NewChecker(database.Session(), "").Check(context.Background())
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, ids, incomplete.IDs)
}
