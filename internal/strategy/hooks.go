package strategy

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/huandu/go-sqlbuilder"

	"github.com/lherron/ljmigrate/internal/db"
	"github.com/lherron/ljmigrate/internal/domain"
)

// Link tables maintained by the work package hook
const (
	AttachableTable   = "attachable_journals"
	CustomizableTable = "customizable_journals"
)

const (
	attachmentPrefix  = "attachments_"
	customValuePrefix = "custom_values"
)

// WorkPackageClaims keeps attachment and custom value keys for the hook
func WorkPackageClaims(key string) bool {
	return strings.HasPrefix(key, attachmentPrefix) || strings.HasPrefix(key, customValuePrefix)
}

// WorkPackageHook moves attachment and custom value attributes out of the
// data row into their link tables. "attachments_<id>" becomes an
// attachable_journals row and "custom_values<id>" (or "custom_values_<id>")
// a customizable_journals row carrying the value. Existing single links are
// kept; duplicates are an error.
func WorkPackageHook(ctx context.Context, hc HookContext, kv *KeyValues) error {
	for _, key := range kv.Matching(isAttachmentKey) {
		attachmentID, err := keyID(key, strings.TrimPrefix(key, attachmentPrefix))
		if err != nil {
			return err
		}

		count, err := countLinks(ctx, hc.Session, AttachableTable, hc.JournalID, "attachment_id", attachmentID)
		if err != nil {
			return err
		}
		switch {
		case count > 1:
			return &domain.AmbiguousAttachableJournalError{
				JournalID:    hc.JournalID,
				AttachmentID: attachmentID,
				Count:        count,
			}
		case count == 0:
			ib := hc.Session.Flavor().NewInsertBuilder()
			ib.InsertInto(hc.Session.QuoteTableName(AttachableTable))
			ib.Cols("journal_id", "attachment_id")
			ib.Values(hc.JournalID, attachmentID)
			if err := exec(ctx, hc.Session, ib); err != nil {
				return fmt.Errorf("failed to link attachment %d to journal %d: %w", attachmentID, hc.JournalID, err)
			}
		}

		kv.Delete(key)
	}

	for _, key := range kv.Matching(isCustomValueKey) {
		suffix := strings.TrimPrefix(strings.TrimPrefix(key, customValuePrefix), "_")
		fieldID, err := keyID(key, suffix)
		if err != nil {
			return err
		}
		value, _ := kv.Get(key)

		count, err := countLinks(ctx, hc.Session, CustomizableTable, hc.JournalID, "custom_field_id", fieldID)
		if err != nil {
			return err
		}
		switch {
		case count > 1:
			return &domain.AmbiguousCustomizableJournalError{
				JournalID:     hc.JournalID,
				CustomFieldID: fieldID,
				Count:         count,
			}
		case count == 0:
			ib := hc.Session.Flavor().NewInsertBuilder()
			ib.InsertInto(hc.Session.QuoteTableName(CustomizableTable))
			ib.Cols("journal_id", "custom_field_id", "value")
			ib.Values(hc.JournalID, fieldID, value)
			if err := exec(ctx, hc.Session, ib); err != nil {
				return fmt.Errorf("failed to store custom value %d for journal %d: %w", fieldID, hc.JournalID, err)
			}
		}

		kv.Delete(key)
	}

	return nil
}

// WikiContentClaims keeps the raw data and compression keys for the hook
func WikiContentClaims(key string) bool {
	return key == "data" || key == "compression"
}

// WikiContentHook adds the lock version when the changeset has none and
// moves uncompressed "data" into "text". Compressed data cannot be carried
// over.
func WikiContentHook(_ context.Context, hc HookContext, kv *KeyValues) error {
	if kv.Index("lock_version") < 0 {
		kv.Append("lock_version", hc.Row.Version)
	}

	if kv.Index("data") < 0 {
		return nil
	}

	compression, _ := kv.Get("compression")
	if c := db.String(compression); c != "" {
		return &domain.UnsupportedWikiContentJournalCompressionError{Compression: c}
	}

	kv.Rename("data", "text")
	kv.Delete("compression")
	return nil
}

func isAttachmentKey(key string) bool {
	return strings.HasPrefix(key, attachmentPrefix)
}

func isCustomValueKey(key string) bool {
	return strings.HasPrefix(key, customValuePrefix)
}

func keyID(key, suffix string) (int64, error) {
	id, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, &domain.MalformedAttributeKeyError{Key: key}
	}
	return id, nil
}

func countLinks(ctx context.Context, session *db.Session, table string, journalID int64, column string, id int64) (int, error) {
	sb := session.Flavor().NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(session.QuoteTableName(table))
	sb.Where(
		sb.Equal("journal_id", journalID),
		sb.Equal(column, id),
	)

	query, args := sb.Build()
	values, err := session.SelectValues(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", table, err)
	}
	if len(values) == 0 {
		return 0, nil
	}
	n, err := db.Int64(values[0])
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", table, err)
	}
	return int(n), nil
}

func exec(ctx context.Context, session *db.Session, b sqlbuilder.Builder) error {
	query, args := b.Build()
	return session.Exec(ctx, query, args...)
}
