// Package domain holds the attribute and error types shared by the migration
// packages.
package domain

import (
	"fmt"
	"strings"
)

// IncompleteJournalsError is returned by the pre-flight check when a version
// chain has gaps or duplicates. Every journal with version N must have exactly
// N journals with version <= N for the same journaled id and type.
type IncompleteJournalsError struct {
	IDs []int64
}

func (e *IncompleteJournalsError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("incomplete journals: every journal needs an initial journal containing all attribute values at the time of creation and exactly one predecessor per version; offending journal ids: [%s]",
		strings.Join(ids, ", "))
}

// AmbiguousJournalsError is returned when more than one row matches where
// the target schema intends at most one.
type AmbiguousJournalsError struct {
	Table string
	// Key describes the lookup, e.g. "journal_id = 12"
	Key   string
	Count int
}

func (e *AmbiguousJournalsError) Error() string {
	return fmt.Sprintf("ambiguous journals: %d rows in %s match %s; make sure the unique constraint on that key is met",
		e.Count, e.Table, e.Key)
}

// AmbiguousAttachableJournalError is returned when an attachable journal
// link exists more than once for the same journal and attachment.
type AmbiguousAttachableJournalError struct {
	JournalID    int64
	AttachmentID int64
	Count        int
}

func (e *AmbiguousAttachableJournalError) Error() string {
	return fmt.Sprintf("ambiguous attachable journal data: %d rows for journal_id %d and attachment_id %d; make sure the unique constraint on journal_id and attachment_id is met",
		e.Count, e.JournalID, e.AttachmentID)
}

// Unwrap exposes the error as an AmbiguousJournalsError
func (e *AmbiguousAttachableJournalError) Unwrap() error {
	return &AmbiguousJournalsError{
		Table: "attachable_journals",
		Key:   fmt.Sprintf("journal_id = %d AND attachment_id = %d", e.JournalID, e.AttachmentID),
		Count: e.Count,
	}
}

// AmbiguousCustomizableJournalError is returned when a customizable journal
// value exists more than once for the same journal and custom field.
type AmbiguousCustomizableJournalError struct {
	JournalID     int64
	CustomFieldID int64
	Count         int
}

func (e *AmbiguousCustomizableJournalError) Error() string {
	return fmt.Sprintf("ambiguous customizable journal data: %d rows for journal_id %d and custom_field_id %d; make sure the unique constraint on journal_id and custom_field_id is met",
		e.Count, e.JournalID, e.CustomFieldID)
}

// Unwrap exposes the error as an AmbiguousJournalsError
func (e *AmbiguousCustomizableJournalError) Unwrap() error {
	return &AmbiguousJournalsError{
		Table: "customizable_journals",
		Key:   fmt.Sprintf("journal_id = %d AND custom_field_id = %d", e.JournalID, e.CustomFieldID),
		Count: e.Count,
	}
}

// UnsupportedWikiContentJournalCompressionError is returned for wiki content
// journals whose data is stored in a compression the target cannot hold.
type UnsupportedWikiContentJournalCompressionError struct {
	Compression string
}

func (e *UnsupportedWikiContentJournalCompressionError) Error() string {
	return fmt.Sprintf("wiki content journal contains data in an unsupported compression: %s", e.Compression)
}

// MalformedAttributeKeyError is returned when an attachment or custom value
// key does not end in a numeric id.
type MalformedAttributeKeyError struct {
	Key string
}

func (e *MalformedAttributeKeyError) Error() string {
	return fmt.Sprintf("malformed attribute key %q: expected a numeric id suffix", e.Key)
}

// UnsupportedLegacyValueError is returned when a changeset holds a tagged
// value that has no faithful representation in the unified journals, such as
// a serialized Ruby object. JournalID is zero until the row is known.
type UnsupportedLegacyValueError struct {
	JournalID int64
	Attribute string
	Tag       string
	Value     string
}

func (e *UnsupportedLegacyValueError) Error() string {
	msg := fmt.Sprintf("unsupported legacy value for %q: tag %s", e.Attribute, e.Tag)
	if e.Value != "" {
		msg += fmt.Sprintf(" (%q)", e.Value)
	}
	if e.JournalID != 0 {
		msg = fmt.Sprintf("legacy journal %d: %s", e.JournalID, msg)
	}
	return msg
}

// RowError ties a migration failure to the legacy journal row that caused it
type RowError struct {
	ID      int64
	Type    string
	Version int64
	Err     error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("legacy journal %d (%s version %d): %v", e.ID, e.Type, e.Version, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
