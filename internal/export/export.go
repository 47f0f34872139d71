package export

import (
	"context"
	"fmt"
	"time"

	"rmtracer/internal/database"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Reporter builds XLSX movement reports from the database.
type Reporter struct {
	db     *database.DB
	logger *zerolog.Logger
}

func NewReporter(db *database.DB, logger *zerolog.Logger) *Reporter {
	return &Reporter{db: db, logger: logger}
}

// TracerReport renders every movement in [start, end] as a spreadsheet,
// one row per movement, oldest first. The caller owns closing the file.
func (r *Reporter) TracerReport(ctx context.Context, start, end time.Time) (*excelize.File, error) {
	records, err := r.db.GetTracersByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("error getting movements: %w", err)
	}

	// Resolve names once; unknown IDs fall back to the raw ID
	patientName := map[string]string{}
	patientNoRM := map[string]string{}
	locationName := map[string]string{}
	staffName := map[string]string{}

	if locations, err := r.db.GetLocations(ctx); err == nil {
		for _, loc := range locations {
			locationName[loc.ID] = loc.Name
		}
	}
	if staff, err := r.db.GetAllStaff(ctx); err == nil {
		for _, s := range staff {
			staffName[s.ID] = s.Nama
		}
	}
	for _, rec := range records {
		if _, ok := patientName[rec.PatientID]; ok {
			continue
		}
		if p, err := r.db.GetPatient(ctx, rec.PatientID); err == nil {
			patientName[p.ID] = p.Nama
			patientNoRM[p.ID] = p.NoRM
		}
	}

	f := excelize.NewFile()

	const sheetName = "Pergerakan Berkas"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Periode: %s - %s",
		start.Format("02.01.2006"), end.Format("02.01.2006")))
	_ = f.MergeCell(sheetName, "A1", "F1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headers := []string{"Waktu", "No. RM", "Nama Pasien", "Lokasi", "Petugas", "Keterangan"}
	headerStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, rec := range records {
		row := i + 3
		values := []interface{}{
			rec.CreatedAt.Format("02.01.2006 15:04"),
			orID(patientNoRM, rec.PatientID),
			orID(patientName, rec.PatientID),
			orID(locationName, rec.LocationID),
			staffName[rec.StaffID],
			rec.Keterangan,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 18)
	_ = f.SetColWidth(sheetName, "B", "F", 22)
	_ = f.DeleteSheet("Sheet1")

	r.logger.Info().Int("rows", len(records)).Msg("Tracer report built")
	return f, nil
}

func orID(names map[string]string, id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return id
}
