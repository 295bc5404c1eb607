// Package csvio reads transaction records and writes account snapshots in
// the CSV wire format.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iho/payengine/internal/domain"
)

// ErrMissingHeader is returned when the first row is not the expected header.
var ErrMissingHeader = errors.New("missing header: want type,client,tx,amount")

var inputHeader = []string{"type", "client", "tx", "amount"}

// Reader yields transactions from a CSV stream. It implements
// usecase.RecordSource.
type Reader struct {
	csv        *csv.Reader
	headerRead bool
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	return &Reader{csv: cr}
}

// Next returns the next transaction. Rows that cannot be parsed yield an
// error wrapping domain.ErrMalformedRecord; rows that parse but break the
// record rules yield one wrapping domain.ErrInvalidTransaction. Both leave
// the reader positioned on the following row. io.EOF marks the end of input.
func (r *Reader) Next() (domain.Transaction, error) {
	if !r.headerRead {
		if err := r.readHeader(); err != nil {
			return nil, err
		}
	}

	fields, err := r.csv.Read()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("line %d: %w: %v", parseErr.Line, domain.ErrMalformedRecord, parseErr.Err)
		}
		return nil, err
	}

	line, _ := r.csv.FieldPos(0)

	record, err := ParseRecord(fields)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", line, err)
	}

	tx, err := record.Transaction()
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", line, err)
	}
	return tx, nil
}

func (r *Reader) readHeader() error {
	fields, err := r.csv.Read()
	if err != nil {
		return err
	}
	r.headerRead = true

	if len(fields) < len(inputHeader)-1 || len(fields) > len(inputHeader) {
		return ErrMissingHeader
	}
	for i, f := range fields {
		if !strings.EqualFold(strings.TrimSpace(f), inputHeader[i]) {
			return ErrMissingHeader
		}
	}
	return nil
}

// ParseRecord parses one row of type,client,tx[,amount].
func ParseRecord(fields []string) (domain.Record, error) {
	if len(fields) < 3 || len(fields) > 4 {
		return domain.Record{}, fmt.Errorf("%w: want 3 or 4 fields, got %d", domain.ErrMalformedRecord, len(fields))
	}

	typ, err := domain.ParseType(strings.TrimSpace(fields[0]))
	if err != nil {
		return domain.Record{}, err
	}

	client, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 16)
	if err != nil {
		return domain.Record{}, fmt.Errorf("%w: client %q", domain.ErrMalformedRecord, fields[1])
	}

	tx, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
	if err != nil {
		return domain.Record{}, fmt.Errorf("%w: tx %q", domain.ErrMalformedRecord, fields[2])
	}

	record := domain.Record{
		Type:   typ,
		Client: domain.ClientID(client),
		Tx:     domain.TxID(tx),
	}

	if len(fields) == 4 {
		amount, err := domain.ParseAmount(strings.TrimSpace(fields[3]))
		if err != nil {
			return domain.Record{}, err
		}
		record.Amount = amount
	}

	return record, nil
}
