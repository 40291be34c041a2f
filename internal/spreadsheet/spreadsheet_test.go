package spreadsheet

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ginjaninja78/bc3-budget-converter/internal/budget"
	"github.com/ginjaninja78/bc3-budget-converter/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleBudget() *budget.Budget {
	b := budget.New(fixedNow)
	b.Metadata.Title = "Obra Test"
	b.Metadata.Owner = "Ayuntamiento"

	c1 := budget.NewChapter("C01", "Movimiento de tierras")
	e1 := budget.NewItem("E01", "Excavación", d("12.50"))
	e1.Unit = "m3"
	e1.Quantity = d("4")
	c1.AddItem(e1)
	sub := budget.NewChapter("C01.01", "Rellenos")
	e2 := budget.NewItem("E02", "Relleno, compactado", d("8"))
	e2.Quantity = d("2.5")
	sub.AddItem(e2)
	c1.AddSubchapter(sub)

	return b.AddChapter(c1).AddChapter(budget.NewChapter("C02", "Vacío"))
}

func assertSameTree(t *testing.T, want, got *budget.Budget) {
	t.Helper()
	wantRows, gotRows := Rows(want), Rows(got)
	require.Len(t, gotRows, len(wantRows))
	for i := range wantRows {
		w, g := wantRows[i], gotRows[i]
		assert.Equal(t, w.Level, g.Level, "row %d", i)
		assert.Equal(t, w.Kind, g.Kind, "row %d", i)
		assert.Equal(t, w.Code, g.Code, "row %d", i)
		assert.Equal(t, w.Description, g.Description, "row %d", i)
		if w.Kind == budget.KindItem {
			assert.Equal(t, w.Unit, g.Unit, "row %d", i)
			assert.True(t, w.Quantity.Equal(g.Quantity), "row %d quantity %s != %s", i, w.Quantity, g.Quantity)
			assert.True(t, w.Price.Equal(g.Price), "row %d price %s != %s", i, w.Price, g.Price)
		}
	}
	assert.True(t, want.Total().Equal(got.Total()))
}

func TestRows(t *testing.T) {
	rows := Rows(sampleBudget())
	require.Len(t, rows, 5)

	assert.Equal(t, []int{1, 2, 2, 3, 1}, []int{rows[0].Level, rows[1].Level, rows[2].Level, rows[3].Level, rows[4].Level})
	assert.Equal(t, budget.KindItem, rows[1].Kind)
	assert.Equal(t, "C01.01", rows[2].Code)
	assert.Equal(t, "70.00", rows[0].Total.StringFixed(2))
	assert.Equal(t, "20.00", rows[3].Total.StringFixed(2))
}

func TestFromRowsRebuildsTree(t *testing.T) {
	b := sampleBudget()
	got, err := FromRows(Rows(b), b.Metadata)
	require.NoError(t, err)

	assertSameTree(t, b, got)
	assert.Equal(t, "Obra Test", got.Metadata.Title)
	require.Len(t, got.Chapters, 2)
	assert.Equal(t, "E02", got.Chapters[0].Subchapters[0].Items[0].Code)
}

func TestFromRowsItemAfterSubchapter(t *testing.T) {
	rows := []Row{
		{Level: 1, Kind: budget.KindChapter, Code: "C01"},
		{Level: 2, Kind: budget.KindChapter, Code: "C01.01"},
		{Level: 3, Kind: budget.KindItem, Code: "E01", Quantity: d("1"), Price: d("1")},
		{Level: 2, Kind: budget.KindItem, Code: "E02", Quantity: d("1"), Price: d("2")},
	}
	b, err := FromRows(rows, budget.NewMetadata(fixedNow))
	require.NoError(t, err)

	assert.Equal(t, "E02", b.Chapters[0].Items[0].Code)
	assert.Equal(t, budget.DefaultUnit, b.Chapters[0].Items[0].Unit)
	assert.Equal(t, "E01", b.Chapters[0].Subchapters[0].Items[0].Code)
}

func TestFromRowsRejectsBadLevels(t *testing.T) {
	meta := budget.NewMetadata(fixedNow)

	_, err := FromRows([]Row{{Level: 2, Kind: budget.KindChapter, Code: "C01"}}, meta)
	assert.ErrorContains(t, err, "row 1")

	_, err = FromRows([]Row{{Level: 1, Kind: budget.KindItem, Code: "E01"}}, meta)
	assert.ErrorContains(t, err, "outside any chapter")

	_, err = FromRows([]Row{
		{Level: 1, Kind: budget.KindChapter, Code: "C01"},
		{Level: 3, Kind: budget.KindItem, Code: "E01"},
	}, meta)
	assert.ErrorContains(t, err, "row 2")
}

func TestCSVRoundTrip(t *testing.T) {
	b := sampleBudget()
	options := DefaultOptions()
	options.Delimiter = "semicolon"

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, b, options))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "Level;Kind;Code;Description;Unit;Quantity;Price;Total", lines[0])
	assert.Equal(t, "2;item;E01;Excavación;m3;4;12.50;50.00", lines[2])

	got, err := ReadCSV(&buf, options, fixedNow)
	require.NoError(t, err)
	assertSameTree(t, b, got)
	assert.Equal(t, budget.DefaultTitle, got.Metadata.Title)
}

func TestReadCSVCustomColumns(t *testing.T) {
	input := "Presupuesto exportado\n" +
		"Código,Nivel,Tipo,Precio,Cantidad,Texto\n" +
		"C01,1,CHAPTER,,,Capítulo\n" +
		"\n" +
		"E01,2,item,\"1.234,50\",2,Partida\n"

	options := DefaultOptions()
	options.HeaderRows = 2
	options.Columns = Columns{Code: 0, Level: 1, Kind: 2, Price: 3, Quantity: 4, Description: 5, Unit: -1}

	b, err := ReadCSV(strings.NewReader(input), options, fixedNow)
	require.NoError(t, err)
	require.Len(t, b.Chapters, 1)

	it := b.Chapters[0].Items[0]
	assert.Equal(t, "Partida", it.Description)
	assert.Equal(t, budget.DefaultUnit, it.Unit)
	assert.Equal(t, "2469.00", b.Total().StringFixed(2))
}

func TestReadCSVErrors(t *testing.T) {
	options := DefaultOptions()

	_, err := ReadCSV(strings.NewReader("h\nx,chapter,C01\n"), options, fixedNow)
	assert.ErrorContains(t, err, "invalid level")

	_, err = ReadCSV(strings.NewReader("h\n1,folder,C01\n"), options, fixedNow)
	assert.ErrorContains(t, err, "invalid kind")

	_, err = ReadCSV(strings.NewReader("h\n1,chapter,C01\n2,item,E01,d,ud,abc\n"), options, fixedNow)
	assert.ErrorContains(t, err, "invalid quantity")
}

func TestXLSXRoundTrip(t *testing.T) {
	b := sampleBudget()
	b.Metadata.Comments = "revisado"

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, b, DefaultOptions()))

	got, err := ReadXLSX(bytes.NewReader(buf.Bytes()), DefaultOptions(), time.Now())
	require.NoError(t, err)

	assertSameTree(t, b, got)
	assert.Equal(t, "Obra Test", got.Metadata.Title)
	assert.Equal(t, "Ayuntamiento", got.Metadata.Owner)
	assert.Equal(t, "revisado", got.Metadata.Comments)
	assert.Equal(t, "2024-01-15", got.Metadata.Date.Format("2006-01-02"))
}

func TestReadXLSXFallsBackToFirstSheet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleBudget(), Options{SheetName: "Budget"}))

	got, err := ReadXLSX(bytes.NewReader(buf.Bytes()), DefaultOptions(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalItems())
}

func TestReadXLSXRejectsGarbage(t *testing.T) {
	_, err := ReadXLSX(strings.NewReader("not a workbook"), DefaultOptions(), fixedNow)
	assert.Error(t, err)
}

func TestOptionsFromSettings(t *testing.T) {
	options := OptionsFromSettings(config.SpreadsheetSettings{Delimiter: "tab"})
	assert.Equal(t, "Presupuesto", options.SheetName)
	assert.Equal(t, 1, options.HeaderRows)
	assert.Equal(t, '\t', delimiter(options.Delimiter))
	assert.Equal(t, ',', delimiter(""))
}
