package csvio

import (
	"fmt"
	"io"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/xuri/excelize/v2"
)

// ReadSuppliersXLSX parses the first sheet of a workbook laid out like the
// supplier CSV.
func ReadSuppliersXLSX(r io.Reader) ([]domain.Supplier, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheets[0], err)
	}
	defer rows.Close()

	var (
		out    []domain.Supplier
		header = true
	)
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read xlsx row: %w", err)
		}
		if header {
			header = false
			continue
		}
		if s, ok := supplierFromRecord(record); ok {
			out = append(out, s)
		}
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("error iterating xlsx rows: %w", err)
	}
	return out, nil
}

// WriteRankingXLSX writes a ranking result to a single-sheet workbook.
func WriteRankingXLSX(w io.Writer, items []domain.MixResultadoItem) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	header := make([]interface{}, len(RankingHeader))
	for i, h := range RankingHeader {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write xlsx header: %w", err)
	}

	for i, it := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			it.Nome, it.Tipo, it.Regime,
			it.Preco, it.IBS, it.CBS, it.IS, it.Frete,
			it.Credito, domain.CreditStatusLabel(it.CreditoStatus), it.CustoEfetivo, it.Ranking,
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write xlsx row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush xlsx: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}
