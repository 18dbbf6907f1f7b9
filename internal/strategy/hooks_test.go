package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/ljmigrate/internal/domain"
	"github.com/lherron/ljmigrate/internal/legacy"
	"github.com/lherron/ljmigrate/internal/testutil"
)

const journalID = int64(11)

func TestWorkPackageHook_Attachments(t *testing.T) {
	database, _ := testutil.TempDB(t)
	hc := HookContext{Session: database.Session(), JournalID: journalID}

	kv := &KeyValues{Keys: []string{"attachments_7", "foo"}, Values: []any{"", "x"}}
	require.NoError(t, WorkPackageHook(context.Background(), hc, kv))

	assert.Equal(t, []string{"foo"}, kv.Keys)
	assert.Equal(t, []any{"x"}, kv.Values)
	assert.Equal(t, int64(1), testutil.Count(t, database,
		"SELECT COUNT(*) FROM attachable_journals WHERE journal_id = ? AND attachment_id = ?", journalID, 7))

	// A second pass finds the link and adds nothing
	kv = &KeyValues{Keys: []string{"attachments_7"}, Values: []any{""}}
	require.NoError(t, WorkPackageHook(context.Background(), hc, kv))
	assert.Empty(t, kv.Keys)
	assert.Equal(t, int64(1), testutil.Count(t, database, "SELECT COUNT(*) FROM attachable_journals"))
}

func TestWorkPackageHook_AmbiguousAttachment(t *testing.T) {
	database, _ := testutil.TempDB(t)
	for i := 0; i < 2; i++ {
		_, err := database.Exec("INSERT INTO attachable_journals (journal_id, attachment_id) VALUES (?, ?)", journalID, 7)
		require.NoError(t, err)
	}

	hc := HookContext{Session: database.Session(), JournalID: journalID}
	kv := &KeyValues{Keys: []string{"attachments_7"}, Values: []any{""}}
	err := WorkPackageHook(context.Background(), hc, kv)

	var ambiguous *domain.AmbiguousAttachableJournalError
	require.True(t, errors.As(err, &ambiguous))
	assert.Equal(t, int64(7), ambiguous.AttachmentID)
	assert.Equal(t, 2, ambiguous.Count)
}

func TestWorkPackageHook_CustomValues(t *testing.T) {
	database, _ := testutil.TempDB(t)
	hc := HookContext{Session: database.Session(), JournalID: journalID}

	kv := &KeyValues{
		Keys:   []string{"custom_values4", "subject", "custom_values_9"},
		Values: []any{"blue", "Title", "42"},
	}
	require.NoError(t, WorkPackageHook(context.Background(), hc, kv))

	assert.Equal(t, []string{"subject"}, kv.Keys)

	rows := testutil.Query(t, database,
		"SELECT custom_field_id, value FROM customizable_journals WHERE journal_id = ? ORDER BY custom_field_id", journalID)
	require.Len(t, rows, 2)
	assert.EqualValues(t, 4, rows[0]["custom_field_id"])
	assert.Equal(t, "blue", rows[0]["value"])
	assert.EqualValues(t, 9, rows[1]["custom_field_id"])
	assert.Equal(t, "42", rows[1]["value"])
}

func TestWorkPackageHook_AmbiguousCustomValue(t *testing.T) {
	database, _ := testutil.TempDB(t)
	for i := 0; i < 3; i++ {
		_, err := database.Exec("INSERT INTO customizable_journals (journal_id, custom_field_id, value) VALUES (?, ?, ?)", journalID, 4, "v")
		require.NoError(t, err)
	}

	hc := HookContext{Session: database.Session(), JournalID: journalID}
	kv := &KeyValues{Keys: []string{"custom_values4"}, Values: []any{"blue"}}
	err := WorkPackageHook(context.Background(), hc, kv)

	var ambiguous *domain.AmbiguousCustomizableJournalError
	require.True(t, errors.As(err, &ambiguous))
	assert.Equal(t, 3, ambiguous.Count)

	var family *domain.AmbiguousJournalsError
	assert.True(t, errors.As(err, &family))
}

func TestWorkPackageHook_MalformedKey(t *testing.T) {
	database, _ := testutil.TempDB(t)
	hc := HookContext{Session: database.Session(), JournalID: journalID}

	kv := &KeyValues{Keys: []string{"attachments_abc"}, Values: []any{""}}
	err := WorkPackageHook(context.Background(), hc, kv)

	var malformed *domain.MalformedAttributeKeyError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "attachments_abc", malformed.Key)
}

func TestWorkPackageClaims(t *testing.T) {
	assert.True(t, WorkPackageClaims("attachments_3"))
	assert.True(t, WorkPackageClaims("custom_values12"))
	assert.False(t, WorkPackageClaims("subject"))
}

func TestWikiContentHook(t *testing.T) {
	tests := []struct {
		name       string
		version    int64
		keys       []string
		values     []any
		wantKeys   []string
		wantValues []any
	}{
		{
			name:       "uncompressed data",
			version:    3,
			keys:       []string{"data", "compression"},
			values:     []any{"hello", ""},
			wantKeys:   []string{"text", "lock_version"},
			wantValues: []any{"hello", int64(3)},
		},
		{
			name:       "missing compression counts as empty",
			version:    1,
			keys:       []string{"data"},
			values:     []any{"hello"},
			wantKeys:   []string{"text", "lock_version"},
			wantValues: []any{"hello", int64(1)},
		},
		{
			name:       "existing lock version kept",
			version:    5,
			keys:       []string{"lock_version", "page_id"},
			values:     []any{4, 2},
			wantKeys:   []string{"lock_version", "page_id"},
			wantValues: []any{4, 2},
		},
		{
			name:       "nil compression",
			version:    2,
			keys:       []string{"compression", "data"},
			values:     []any{nil, "body"},
			wantKeys:   []string{"text", "lock_version"},
			wantValues: []any{"body", int64(2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := HookContext{Row: legacy.Row{Version: tt.version}}
			kv := &KeyValues{Keys: tt.keys, Values: tt.values}

			require.NoError(t, WikiContentHook(context.Background(), hc, kv))
			assert.Equal(t, tt.wantKeys, kv.Keys)
			assert.Equal(t, tt.wantValues, kv.Values)
		})
	}
}

func TestWikiContentHook_UnsupportedCompression(t *testing.T) {
	hc := HookContext{Row: legacy.Row{Version: 1}}
	kv := &KeyValues{Keys: []string{"data", "compression"}, Values: []any{"x", "gzip"}}

	err := WikiContentHook(context.Background(), hc, kv)

	var unsupported *domain.UnsupportedWikiContentJournalCompressionError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "gzip", unsupported.Compression)
}
