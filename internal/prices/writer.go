package prices

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/wonny/lunaris/internal/contracts"
)

// WriteBoundariesCSV writes TimestampUTC,PhaseName rows
func WriteBoundariesCSV(w io.Writer, boundaries []contracts.PhaseBoundary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"TimestampUTC", "PhaseName"}); err != nil {
		return err
	}
	for _, b := range boundaries {
		if err := cw.Write([]string{b.Instant.UTC().Format(time.RFC3339), b.PhaseName}); err != nil {
			return fmt.Errorf("write boundary: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLabeledCSV writes timestamp,open,high,low,close,volume,lunar_phase,period rows
func WriteLabeledCSV(w io.Writer, labeled []contracts.LabeledPrice) error {
	cw := csv.NewWriter(w)
	header := []string{"timestamp", "open", "high", "low", "close", "volume", "lunar_phase", "period"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range labeled {
		row := []string{
			p.Timestamp.UTC().Format(time.RFC3339),
			p.Open.String(),
			p.High.String(),
			p.Low.String(),
			p.Close.String(),
			p.Volume.String(),
			p.PhaseName,
			p.PeriodName,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write labeled price: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
