package csvio

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/payengine/internal/domain"
)

type result struct {
	tx  domain.Transaction
	err error
}

func readAll(t *testing.T, input string) []result {
	t.Helper()

	r := NewReader(strings.NewReader(input))
	var out []result
	for {
		tx, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		out = append(out, result{tx: tx, err: err})
		if err != nil && !errors.Is(err, domain.ErrMalformedRecord) && !errors.Is(err, domain.ErrInvalidTransaction) {
			return out
		}
	}
}

func TestReader_ValidRows(t *testing.T) {
	input := "type, client, tx, amount\n" +
		"deposit, 1, 1, 1.0\n" +
		"WITHDRAWAL,2,5,0.1234\n" +
		"dispute, 1, 1,\n" +
		"resolve,1,1\n" +
		"chargeback, 1, 1, \n"

	got := readAll(t, input)
	require.Len(t, got, 5)
	for i, r := range got {
		require.NoError(t, r.err, "row %d", i)
	}

	assert.Equal(t, domain.Deposit{Client: 1, Tx: 1, Amount: decimal.RequireFromString("1.0")}, got[0].tx)
	assert.Equal(t, domain.Withdrawal{Client: 2, Tx: 5, Amount: decimal.RequireFromString("0.1234")}, got[1].tx)
	assert.Equal(t, domain.Dispute{Client: 1, Tx: 1}, got[2].tx)
	assert.Equal(t, domain.Resolve{Client: 1, Tx: 1}, got[3].tx)
	assert.Equal(t, domain.Chargeback{Client: 1, Tx: 1}, got[4].tx)
}

func TestReader_BadRows(t *testing.T) {
	tests := []struct {
		name    string
		row     string
		wantErr error
	}{
		{"unknown type", "refund,1,1,1.0", domain.ErrMalformedRecord},
		{"client overflow", "deposit,70000,1,1.0", domain.ErrMalformedRecord},
		{"negative client", "deposit,-1,1,1.0", domain.ErrMalformedRecord},
		{"tx overflow", "deposit,1,4294967296,1.0", domain.ErrMalformedRecord},
		{"amount not a number", "deposit,1,1,abc", domain.ErrMalformedRecord},
		{"amount too precise", "deposit,1,1,1.00001", domain.ErrMalformedRecord},
		{"too few fields", "deposit,1", domain.ErrMalformedRecord},
		{"too many fields", "deposit,1,1,1.0,extra", domain.ErrMalformedRecord},
		{"missing amount", "deposit,1,1,", domain.ErrInvalidTransaction},
		{"zero amount", "withdrawal,1,1,0", domain.ErrInvalidTransaction},
		{"negative amount", "deposit,1,1,-5", domain.ErrInvalidTransaction},
		{"amount on dispute", "dispute,1,1,5", domain.ErrInvalidTransaction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := readAll(t, "type,client,tx,amount\n"+tt.row+"\ndeposit,9,9,1\n")
			require.Len(t, got, 2)

			if !errors.Is(got[0].err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, got[0].err)
			}
			assert.Contains(t, got[0].err.Error(), "line 2")

			// The reader keeps going after a bad row.
			require.NoError(t, got[1].err)
			assert.Equal(t, domain.ClientID(9), got[1].tx.ClientID())
		})
	}
}

func TestReader_TrailingZerosAccepted(t *testing.T) {
	got := readAll(t, "type,client,tx,amount\ndeposit,1,1,2.50000000\n")
	require.Len(t, got, 1)
	require.NoError(t, got[0].err)
	assert.True(t, got[0].tx.(domain.Deposit).Amount.Equal(decimal.RequireFromString("2.5")))
}

func TestReader_HeaderRequired(t *testing.T) {
	r := NewReader(strings.NewReader("deposit,1,1,1.0\n"))
	_, err := r.Next()
	assert.ErrorIs(t, err, ErrMissingHeader)
}

func TestReader_EmptyInput(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_HeaderOnly(t *testing.T) {
	r := NewReader(strings.NewReader("type,client,tx,amount\n"))
	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteAccounts(t *testing.T) {
	accounts := []domain.Account{
		{
			Client:    1,
			Available: decimal.RequireFromString("1.5"),
			Held:      decimal.Zero,
			Total:     decimal.RequireFromString("1.5"),
		},
		{
			Client:    2,
			Available: decimal.RequireFromString("2"),
			Held:      decimal.RequireFromString("0.0001"),
			Total:     decimal.RequireFromString("2.0001"),
			Locked:    true,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, accounts))

	want := "client,available,held,total,locked\n" +
		"1,1.5000,0.0000,1.5000,false\n" +
		"2,2.0000,0.0001,2.0001,true\n"
	assert.Equal(t, want, buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteAccounts_SinkFailure(t *testing.T) {
	err := WriteAccounts(failingWriter{}, []domain.Account{*domain.NewAccount(1)})
	assert.Error(t, err)
}
