package report

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/services/case/internal/model"
)

func sampleData(n int) *Data {
	created := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	cases := make([]*model.IncidentCase, 0, n)
	for i := 0; i < n; i++ {
		cases = append(cases, &model.IncidentCase{
			ID:          fmt.Sprintf("SOS-%04d", 4000+i),
			CreatedAt:   created,
			Programme:   "Village Akouda",
			Category:    model.CategoryHealth,
			Urgency:     model.UrgencyHigh,
			Status:      model.StatusProcessing,
			CurrentStep: 3,
		})
	}
	return &Data{
		Title:       "Rapport de gouvernance",
		Programme:   "Village Akouda",
		GeneratedAt: created,
		GeneratedBy: "Direction SOS",
		Summary: &model.CaseSummary{
			TotalCases:      int64(n),
			ProcessingCases: int64(n),
			ByProgramme:     map[string]int64{"Village Akouda": int64(n)},
		},
		Cases: cases,
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("docx")
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestRenderPDFPaginates(t *testing.T) {
	small, err := Render(FormatPDF, sampleData(2))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(small, []byte("%PDF-")))

	large, err := Render(FormatPDF, sampleData(120))
	require.NoError(t, err)
	assert.Greater(t, bytes.Count(large, []byte("/Type /Page\n")), 1)
}

func TestRenderXLSX(t *testing.T) {
	data := sampleData(3)
	data.Cases[0].DecisionNote = "Placement confirmed"

	out, err := Render(FormatXLSX, data)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Cases")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Case", rows[0][0])
	assert.Equal(t, "SOS-4000", rows[1][0])
	assert.Equal(t, "Placement confirmed", rows[1][7])
	assert.Equal(t, "3. Archived", rows[1][6])
	assert.Equal(t, "3. Action Plan Definition", rows[2][6])

	total, err := f.GetCellValue("Summary", "B4")
	require.NoError(t, err)
	assert.Equal(t, "3", total)
}

func TestFilename(t *testing.T) {
	d := sampleData(0)
	assert.Equal(t, "oversight-village-akouda-20260210.pdf", d.Filename(FormatPDF))
	d.Programme = ""
	assert.Equal(t, "oversight-all-20260210.xlsx", d.Filename(FormatXLSX))
}
