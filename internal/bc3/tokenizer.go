package bc3

import (
	"strings"
)

// Record is one tokenized BC3 record.
type Record struct {
	// Tag is the one-letter record type.
	Tag byte

	// Fields are the values after the tag. The separator right after the tag
	// and the terminating separator are not fields.
	Fields []string

	// Index is the 1-based position of the record in the input, counting
	// only non-empty records.
	Index int
}

// Field returns the trimmed field at i, or "" when the record is shorter.
func (r Record) Field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return strings.TrimSpace(r.Fields[i])
}

// minFields is the smallest field count each known record type needs to be
// usable.
var minFields = map[byte]int{
	TagVersion:       1,
	TagMetadata:      2,
	TagConcept:       2,
	TagDecomposition: 2,
}

// Tokenize splits decoded BC3 text into records. Unknown record types and
// records with too few fields are reported and skipped; they never abort
// tokenizing.
func Tokenize(text string) ([]Record, []Diagnostic) {
	diags := newDiagnostics(nil)
	records := tokenize(text, diags)
	return records, diags.list
}

func tokenize(text string, diags *diagnostics) []Record {
	var records []Record
	index := 0

	for _, raw := range strings.Split(text, RecordSeparator) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		index++

		tag := raw[0]
		need, known := minFields[tag]
		if !known {
			diags.add(DiagUnknownRecord, "", index, "ignoring record of unknown type %q", string(tag))
			continue
		}

		fields := splitFields(raw[1:])
		if len(fields) < need {
			diags.add(DiagMalformedRecord, "", index, "%c record has %d field(s), need %d", tag, len(fields), need)
			continue
		}

		rec := Record{Tag: tag, Fields: fields, Index: index}
		if (tag == TagConcept || tag == TagDecomposition) && rec.Field(0) == "" {
			diags.add(DiagMalformedRecord, "", index, "%c record has an empty code", tag)
			continue
		}

		records = append(records, rec)
	}

	return records
}

// splitFields splits the text after the tag. "|a|b|" yields [a b].
func splitFields(body string) []string {
	body = strings.TrimPrefix(body, FieldSeparator)
	body = strings.TrimSuffix(body, FieldSeparator)
	if body == "" {
		return nil
	}
	return strings.Split(body, FieldSeparator)
}
