// Package batch packs encoded message records into provider-sized
// requests and unpacks the translated responses. Records travel as one
// concatenated string per batch, joined by a separator the provider is
// expected to echo back untouched; a response that splits into the
// wrong number of pieces invalidates the whole batch because the
// mapping back to records is purely positional.
package batch

import (
	"fmt"
	"strings"

	"github.com/ftlkit/ftlkit/extract"
)

// DefaultSeparator joins record texts within one provider call. The
// glyph is chosen to never occur in catalog text; the contract is
// configuration, not escaping.
const DefaultSeparator = "\n[◙]\n"

// AlignmentError reports a batch whose translated response does not
// split back into one piece per record. No partial assignment is
// attempted: the provider merged, dropped, or duplicated a separator
// and every positional mapping after the corruption point is suspect.
type AlignmentError struct {
	// Expected is the number of records in the batch.
	Expected int
	// Got is the number of pieces the response split into.
	Got int
	// Request is the joined text sent to the provider.
	Request string
	// Response is the raw translated response.
	Response string
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("batch alignment lost: expected %d pieces, got %d", e.Expected, e.Got)
}

// Chunk splits records into consecutive batches of at most size
// elements. The last batch may be shorter. Order is preserved within
// and across batches. A size of zero or less yields a single batch.
func Chunk(records []*extract.Record, size int) [][]*extract.Record {
	if len(records) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]*extract.Record{records}
	}

	batches := make([][]*extract.Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}

// Join concatenates the batch's record texts with sep, in order.
func Join(batch []*extract.Record, sep string) string {
	texts := make([]string, len(batch))
	for i, rec := range batch {
		texts[i] = rec.Text
	}
	return strings.Join(texts, sep)
}

// Split cuts the provider response back into per-record pieces. The
// piece count must equal want; any mismatch fails with AlignmentError
// carrying the original request and raw response for diagnosis.
// Pieces are returned untrimmed, exactly as the provider shaped them.
func Split(request, response, sep string, want int) ([]string, error) {
	pieces := strings.Split(response, sep)
	if len(pieces) != want {
		return nil, &AlignmentError{
			Expected: want,
			Got:      len(pieces),
			Request:  request,
			Response: response,
		}
	}
	return pieces, nil
}

// Apply assigns pieces into the batch's record texts by position.
// Records are mutated in place; the caller owns the batch. A count
// mismatch fails before any record is touched.
func Apply(batch []*extract.Record, pieces []string) error {
	if len(pieces) != len(batch) {
		return &AlignmentError{Expected: len(batch), Got: len(pieces)}
	}
	for i, rec := range batch {
		rec.Text = pieces[i]
	}
	return nil
}
