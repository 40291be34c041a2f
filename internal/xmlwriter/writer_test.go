package xmlwriter

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/ginjaninja78/bc3-budget-converter/internal/budget"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBudget() *budget.Budget {
	b := budget.New(time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC))
	b.Metadata.Title = "Obra <Test> & Co"

	c1 := budget.NewChapter("C01", "Movimiento de tierras")
	e1 := budget.NewItem("E01", "Excavación", decimal.RequireFromString("12.5"))
	e1.Unit = "m3"
	e1.Quantity = decimal.NewFromInt(4)
	c1.AddItem(e1)

	sub := budget.NewChapter("C01.01", "Rellenos")
	e2 := budget.NewItem("E02", "Relleno", decimal.NewFromInt(8))
	e2.Quantity = decimal.RequireFromString("2.5")
	sub.AddItem(e2)
	c1.AddSubchapter(sub)

	c2 := budget.NewChapter("C02", "Vacío")
	return b.AddChapter(c1).AddChapter(c2)
}

func TestGenerate(t *testing.T) {
	out, err := Generate(sampleBudget())
	require.NoError(t, err)
	text := string(out)

	assert.True(t, strings.HasPrefix(text, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"))
	assert.Contains(t, text, `<budget currency="EUR" total="70.00">`)
	assert.Contains(t, text, "    <title>Obra &lt;Test&gt; &amp; Co</title>\n")
	assert.Contains(t, text, "    <date>2024-01-15</date>\n")
	assert.Contains(t, text, `  <chapter n="1" code="C01" total="70.00">`)
	assert.Contains(t, text, `    <item n="1" code="E01">`)
	assert.Contains(t, text, "      <quantity>4</quantity>\n")
	assert.Contains(t, text, "      <price>12.50</price>\n")
	assert.Contains(t, text, `    <chapter n="2" code="C01.01" total="20.00">`)
	assert.Contains(t, text, `      <item n="2" code="E02">`)
	assert.Contains(t, text, `  <chapter n="3" code="C02" total="0.00">`)
	assert.True(t, strings.HasSuffix(text, "</budget>\n"))
}

// The output must be well-formed and carry the same tree.
func TestGenerateIsWellFormed(t *testing.T) {
	out, err := Generate(sampleBudget())
	require.NoError(t, err)

	type item struct {
		Code  string `xml:"code,attr"`
		Total string `xml:"total"`
	}
	type chapter struct {
		Code        string    `xml:"code,attr"`
		Title       string    `xml:"title"`
		Items       []item    `xml:"item"`
		Subchapters []chapter `xml:"chapter"`
	}
	var doc struct {
		Title    string    `xml:"metadata>title"`
		Chapters []chapter `xml:"chapter"`
	}
	require.NoError(t, xml.Unmarshal(out, &doc))

	assert.Equal(t, "Obra <Test> & Co", doc.Title)
	require.Len(t, doc.Chapters, 2)
	assert.Equal(t, "50.00", doc.Chapters[0].Items[0].Total)
	assert.Equal(t, "C01.01", doc.Chapters[0].Subchapters[0].Code)
	assert.Equal(t, "Vacío", doc.Chapters[1].Title)
}

func TestGenerateWithOptions(t *testing.T) {
	b := sampleBudget()
	b.Chapters[1].AddItem(budget.NewItem("E03", "Otra", decimal.NewFromInt(1)))

	options := DefaultGenerateOptions()
	options.IncludeXMLDeclaration = false
	options.ItemNumberingGlobal = false
	options.Indent = "\t"
	options.RootAttributes = map[string]string{"xmlns": "urn:bc3conv:budget", "app": "bc3conv"}

	out, err := GenerateWithOptions(b, options)
	require.NoError(t, err)
	text := string(out)

	assert.True(t, strings.HasPrefix(text, `<budget currency="EUR" total="71.00" app="bc3conv" xmlns="urn:bc3conv:budget">`))
	assert.Contains(t, text, "\t\t<item n=\"1\" code=\"E03\">")
	assert.NotContains(t, text, `code="E03" n="3"`)
}

func TestGenerateNil(t *testing.T) {
	_, err := Generate(nil)
	assert.Error(t, err)
}

func TestEscapeXML(t *testing.T) {
	assert.Equal(t, "a&amp;b &quot;c&quot; &apos;d&apos;", escapeXML(`a&b "c" 'd'`))
	assert.Equal(t, "ab\n", escapeXML("a\x01b\n"))
}
