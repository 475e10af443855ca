package http

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/xuri/excelize/v2"

	"fuel-commission/internal/audit"
	commission "fuel-commission/internal/commission/domain"
	"fuel-commission/internal/observability/metrics"
)

const (
	exportPageSize = 200
	exportMaxRows  = 50000
)

var exportHeader = []string{
	"ID", "Station", "Dealer", "OMC", "Period", "Status", "Data Source",
	"Volume (L)", "Sales", "Rate", "Rate Source",
	"Base", "Windfall", "Shortfall", "Bonus", "Total Commission",
	"Calculated At", "Paid At", "Reference",
}

func exportRow(rec commission.Record) []string {
	paidAt, reference := "", ""
	if rec.PaidAt != nil {
		paidAt = rec.PaidAt.Format(time.RFC3339)
	}
	if rec.Payment != nil {
		reference = rec.Payment.ReferenceNumber
	}
	calculatedAt := ""
	if !rec.CalculatedAt.IsZero() {
		calculatedAt = rec.CalculatedAt.Format(time.RFC3339)
	}
	return []string{
		rec.ID, rec.StationID, rec.DealerID, rec.OMCID, rec.Period.String(), string(rec.Status), string(rec.DataSource),
		rec.TotalVolume.StringFixed(3), rec.TotalSales.StringFixed(2), rec.RateApplied.String(), string(rec.RateSource),
		rec.BaseAmount.StringFixed(2), rec.WindfallAmount.StringFixed(2), rec.ShortfallAmount.StringFixed(2),
		rec.BonusAmount.StringFixed(2), rec.TotalCommission.StringFixed(2),
		calculatedAt, paidAt, reference,
	}
}

// BuildCommissionsCSV renders records as CSV.
func BuildCommissionsCSV(records []commission.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, rec := range records {
		if err := w.Write(exportRow(rec)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildCommissionsXLSX renders records as a workbook with a summary sheet.
func BuildCommissionsXLSX(records []commission.Record, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	summarySheet := "summary"
	itemsSheet := "commissions"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}

	var totals commission.PeriodTotals
	for _, rec := range records {
		totals.Count++
		totals.TotalCommission = totals.TotalCommission.Add(rec.TotalCommission)
		totals.TotalVolume = totals.TotalVolume.Add(rec.TotalVolume)
	}
	_ = f.SetCellValue(summarySheet, "A1", "Commission Export")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", generatedAt.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Records")
	_ = f.SetCellValue(summarySheet, "B4", totals.Count)
	_ = f.SetCellValue(summarySheet, "A5", "Total Volume (L)")
	_ = f.SetCellValue(summarySheet, "B5", totals.TotalVolume.InexactFloat64())
	_ = f.SetCellValue(summarySheet, "A6", "Total Commission")
	_ = f.SetCellValue(summarySheet, "B6", totals.TotalCommission.InexactFloat64())

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(itemsSheet, cell, title)
	}
	for i, rec := range records {
		for col, value := range exportRow(rec) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(itemsSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := mux.Vars(r)["format"]
	started := time.Now()
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveExport(format, result, time.Since(started)) }()

	actor, ok := actorFrom(w, r)
	if !ok {
		result = metrics.ResultError
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}

	var records []commission.Record
	for page := 1; ; page++ {
		res, err := h.reader.List(r.Context(), actor, filter, commission.Page{Number: page, Size: exportPageSize})
		if err != nil {
			result = metrics.ResultError
			respondServiceError(w, err)
			return
		}
		records = append(records, res.Items...)
		if len(res.Items) == 0 || len(records) >= res.Total || len(records) >= exportMaxRows {
			break
		}
	}

	var (
		body        []byte
		contentType string
	)
	switch format {
	case "csv":
		body, err = BuildCommissionsCSV(records)
		contentType = "text/csv"
	default:
		body, err = BuildCommissionsXLSX(records, h.now())
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		result = metrics.ResultError
		h.logger.Error().Err(err).Str("format", format).Msg("commission export failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "export failed")
		return
	}

	h.recordAudit(r, actor, audit.Entry{Action: audit.ActionExport, DealerID: filter.DealerID, StationID: filter.StationID, Period: filter.Period.String()}, map[string]any{
		"format": format,
		"rows":   len(records),
	})
	filename := fmt.Sprintf("commissions-%s.%s", h.now().UTC().Format("20060102-150405"), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
