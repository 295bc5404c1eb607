package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/iho/payengine/internal/domain"
)

var outputHeader = []string{"client", "available", "held", "total", "locked"}

// WriteAccounts writes a header and one row per account.
func WriteAccounts(w io.Writer, accounts []domain.Account) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(outputHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(outputHeader))
	for _, acc := range accounts {
		row[0] = strconv.FormatUint(uint64(acc.Client), 10)
		row[1] = acc.Available.StringFixed(domain.AmountScale)
		row[2] = acc.Held.StringFixed(domain.AmountScale)
		row[3] = acc.Total.StringFixed(domain.AmountScale)
		row[4] = strconv.FormatBool(acc.Locked)

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write client %d: %w", acc.Client, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
