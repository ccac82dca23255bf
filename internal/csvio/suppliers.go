// Package csvio reads and writes supplier quotations as CSV or XLSX sheets.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/domain"
	"github.com/google/uuid"
)

// SupplierHeader is the column layout of a supplier sheet.
var SupplierHeader = []string{"nome", "tipo", "regime", "preco", "ibs", "cbs", "is", "frete"}

// RankingHeader extends SupplierHeader with the ranking outcome.
var RankingHeader = append(append([]string{}, SupplierHeader...), "credito", "situacaoCredito", "custoEfetivo", "ranking")

// ReadSuppliers parses a supplier CSV. The first row is the header; blank
// rows are skipped and unparsable numbers read as 0. Every supplier gets a
// fresh ID.
func ReadSuppliers(r io.Reader) ([]domain.Supplier, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read supplier header: %w", err)
	}

	var out []domain.Supplier
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read supplier row: %w", err)
		}
		if s, ok := supplierFromRecord(record); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func supplierFromRecord(record []string) (domain.Supplier, bool) {
	blank := true
	for _, col := range record {
		if strings.TrimSpace(col) != "" {
			blank = false
			break
		}
	}
	if blank {
		return domain.Supplier{}, false
	}

	col := func(i int) string {
		if i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}
	return domain.Supplier{
		ID:     uuid.NewString(),
		Nome:   col(0),
		Tipo:   col(1),
		Regime: col(2),
		Preco:  parseNumber(col(3)),
		IBS:    parseNumber(col(4)),
		CBS:    parseNumber(col(5)),
		IS:     parseNumber(col(6)),
		Frete:  parseNumber(col(7)),
	}, true
}

func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func supplierRecord(s domain.Supplier) []string {
	return []string{
		s.Nome, s.Tipo, s.Regime,
		formatNumber(s.Preco), formatNumber(s.IBS), formatNumber(s.CBS), formatNumber(s.IS), formatNumber(s.Frete),
	}
}

// ExampleSuppliers is the sample content of a blank quotation sheet.
func ExampleSuppliers() []domain.Supplier {
	return []domain.Supplier{
		{Nome: "Fornecedor A", Tipo: "industria", Regime: "normal", Preco: 100, Frete: 5},
		{Nome: "Fornecedor B", Tipo: "distribuidor", Regime: "simples", Preco: 95, Frete: 8},
	}
}

// WriteSuppliers writes suppliers with SupplierHeader.
func WriteSuppliers(w io.Writer, suppliers []domain.Supplier) error {
	rows := make([][]string, 0, len(suppliers)+1)
	rows = append(rows, SupplierHeader)
	for _, s := range suppliers {
		rows = append(rows, supplierRecord(s))
	}
	return writeAll(w, rows)
}

// WriteRanking writes a ranking result with RankingHeader.
func WriteRanking(w io.Writer, items []domain.MixResultadoItem) error {
	rows := make([][]string, 0, len(items)+1)
	rows = append(rows, RankingHeader)
	for _, it := range items {
		rows = append(rows, append(supplierRecord(it.Supplier),
			formatNumber(it.Credito),
			domain.CreditStatusLabel(it.CreditoStatus),
			formatNumber(it.CustoEfetivo),
			strconv.Itoa(it.Ranking),
		))
	}
	return writeAll(w, rows)
}

func writeAll(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}
