package bc3

import (
	"strings"
	"testing"

	"github.com/ginjaninja78/bc3-budget-converter/internal/budget"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func item(code, unit, desc, price, qty string) *budget.Item {
	it := budget.NewItem(code, desc, decimal.RequireFromString(price))
	it.Unit = unit
	it.Quantity = decimal.RequireFromString(qty)
	return it
}

func testBudget() *budget.Budget {
	b := budget.New(fixedNow)
	b.Metadata.Title = "Obra Test"
	b.Metadata.Owner = "Promotora"

	c1 := budget.NewChapter("C1", "Movimiento de tierras")
	c1.AddItem(item("E01", "m3", "Excavación", "12.5", "4"))
	sub := budget.NewChapter("C1.1", "Rellenos")
	sub.AddItem(item("E02", "m3", "Relleno", "8", "2.5"))
	c1.AddSubchapter(sub)

	c2 := budget.NewChapter("C2", "Vacío")

	return b.AddChapter(c1).AddChapter(c2)
}

func TestGenerateSampleText(t *testing.T) {
	res, err := testParser().Parse([]byte(sampleBC3))
	require.NoError(t, err)

	text, diags := NewGenerator(GeneratorOptions{}).GenerateText(res.Budget)
	assert.Empty(t, diags)
	assert.Equal(t,
		`V|FIEBDC-3/2004|~K|1|Obra Test|~K|3|15/01/2024|~K|4|EUR|~D|##|CAP1\1\\|~`+
			`C|CAP1||Capítulo 1|21,00||0|~D|CAP1|I1\2\\|~C|I1|m2|Item uno|10,50||1|~`,
		text)
	assert.Contains(t, text, `D|##|CAP1\1\\|`)
}

func TestGenerateRecordOrder(t *testing.T) {
	text, _ := NewGenerator(GeneratorOptions{}).GenerateText(testBudget())
	records := strings.Split(strings.TrimSuffix(text, RecordSeparator), RecordSeparator)

	assert.Equal(t, []string{
		"V|FIEBDC-3/2004|",
		"K|1|Obra Test|",
		"K|2|Promotora|",
		"K|3|15/01/2024|",
		"K|4|EUR|",
		`D|##|C1\1\\\C2\1\\|`,
		"C|C1||Movimiento de tierras|70,00||0|",
		`D|C1|E01\4\\\C1.1\1\\|`,
		"C|E01|m3|Excavación|12,50||1|",
		"C|C1.1||Rellenos|20,00||0|",
		`D|C1.1|E02\2,5\\|`,
		"C|E02|m3|Relleno|8,00||1|",
		"C|C2||Vacío|0,00||0|",
	}, records)
	assert.NotContains(t, text, "\n")
}

func TestGenerateRoundTrip(t *testing.T) {
	original := testBudget()
	data, err := Generate(original)
	require.NoError(t, err)

	res, err := testParser().Parse(data)
	require.NoError(t, err)
	// Latin-1 bytes fail strict UTF-8 and fall through to the next charset.
	assert.Equal(t, "windows-1252", res.Encoding)

	b := res.Budget
	assert.Equal(t, original.Metadata.Title, b.Metadata.Title)
	assert.Equal(t, original.Metadata.Owner, b.Metadata.Owner)
	assert.True(t, original.Total().Equal(b.Total()))
	assert.Equal(t, original.TotalItems(), b.TotalItems())
	require.Len(t, b.Chapters, 2)
	assert.Equal(t, "Excavación", b.Chapters[0].Items[0].Description)
	assert.Equal(t, "C1.1", b.Chapters[0].Subchapters[0].Code)
	assert.True(t, b.Chapters[1].IsEmpty())
}

func TestGenerateRoundTripKeepsEmptySubchapter(t *testing.T) {
	b := budget.New(fixedNow)
	a := budget.NewChapter("A", "Capítulo A")
	a.AddItem(item("I1", "ud", "Partida", "3", "2"))
	a.AddSubchapter(budget.NewChapter("A.1", "Subcapítulo vacío"))
	b.AddChapter(a)

	data, err := Generate(b)
	require.NoError(t, err)
	parsed, err := Parse(data)
	require.NoError(t, err)

	require.Len(t, parsed.Chapters, 1)
	got := parsed.Chapters[0]
	assert.Len(t, got.Items, 1)
	require.Len(t, got.Subchapters, 1)
	assert.Equal(t, "A.1", got.Subchapters[0].Code)
	assert.Equal(t, "Subcapítulo vacío", got.Subchapters[0].Title)
	assert.True(t, got.Subchapters[0].IsEmpty())
	assert.Equal(t, 1, parsed.TotalItems())
}

func TestGenerateStable(t *testing.T) {
	first, err := Generate(testBudget())
	require.NoError(t, err)
	second, err := Generate(testBudget())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Regenerating a parsed file reproduces it.
	res, err := testParser().Parse(first)
	require.NoError(t, err)
	third, err := Generate(res.Budget)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestGenerateAssignsMissingCodes(t *testing.T) {
	b := budget.New(fixedNow)
	c := budget.NewChapter("", "Sin código")
	c.AddItem(item("", "ud", "a", "1", "1"))
	c.AddItem(item("", "ud", "b", "2", "1"))
	sub := budget.NewChapter("", "Sub")
	sub.AddItem(item("", "ud", "c", "3", "1"))
	c.AddSubchapter(sub)
	b.AddChapter(c)

	text, _ := NewGenerator(GeneratorOptions{}).GenerateText(b)

	assert.Contains(t, text, `D|##|C01\1\\|`)
	assert.Contains(t, text, `D|C01|C01.001\1\\\C01.002\1\\\C01.01\1\\|`)
	assert.Contains(t, text, `D|C01.01|C01.01.001\1\\|`)
}

func TestGenerateSharedItemIsDefinedOnce(t *testing.T) {
	b := budget.New(fixedNow)
	b.AddChapter(budget.NewChapter("A", "A").AddItem(item("X", "ud", "x", "5", "1")))
	b.AddChapter(budget.NewChapter("B", "B").AddItem(item("X", "ud", "x", "5", "3")))

	text, diags := NewGenerator(GeneratorOptions{}).GenerateText(b)

	assert.Empty(t, diags)
	assert.Equal(t, 1, strings.Count(text, "C|X|"))
	assert.Contains(t, text, `D|A|X\1\\|`)
	assert.Contains(t, text, `D|B|X\3\\|`)
}

func TestGenerateRenamesConflicts(t *testing.T) {
	b := budget.New(fixedNow)
	b.AddChapter(budget.NewChapter("A", "A").AddItem(item("X", "ud", "x", "5", "1")))
	b.AddChapter(budget.NewChapter("B", "B").AddItem(item("X", "ud", "x", "6", "1")))
	b.AddChapter(budget.NewChapter(RootCode, "Raíz").AddItem(item("Y", "ud", "y", "1", "1")))

	text, diags := NewGenerator(GeneratorOptions{}).GenerateText(b)

	assert.Equal(t, 2, countKind(diags, DiagCodeRenamed))
	assert.Contains(t, text, "C|X|ud|x|5,00||1|")
	assert.Contains(t, text, "C|X_2|ud|x|6,00||1|")
	assert.Contains(t, text, `D|B|X_2\1\\|`)
	assert.Contains(t, text, "C|##_2||Raíz|")
	assert.Equal(t, 1, strings.Count(text, "D|##|"))
}

func TestGenerateLogsRenames(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b := budget.New(fixedNow)
	b.AddChapter(budget.NewChapter(RootCode, "Raíz").AddItem(item("Y", "ud", "y", "1", "1")))

	data, err := NewGenerator(GeneratorOptions{Logger: zap.New(core)}).Generate(b)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	renamed := logs.FilterField(zap.String("kind", string(DiagCodeRenamed)))
	require.Equal(t, 1, renamed.Len())
	assert.Equal(t, zap.WarnLevel, renamed.All()[0].Level)
}

func TestGenerateIdenticalChapterReferenced(t *testing.T) {
	shared := func() *budget.Chapter {
		return budget.NewChapter("S", "Compartido").AddItem(item("I", "ud", "i", "2", "2"))
	}
	b := budget.New(fixedNow)
	b.AddChapter(budget.NewChapter("A", "A").AddSubchapter(shared()))
	b.AddChapter(budget.NewChapter("B", "B").AddSubchapter(shared()))

	text, diags := NewGenerator(GeneratorOptions{}).GenerateText(b)
	assert.Empty(t, diags)
	assert.Equal(t, 1, strings.Count(text, "C|S|"))

	res, err := testParser().Parse([]byte(text))
	require.NoError(t, err)
	assert.True(t, b.Total().Equal(res.Budget.Total()))
}

func TestGenerateSanitizesText(t *testing.T) {
	b := budget.New(fixedNow)
	b.Metadata.Title = "Obra ~ nueva"
	b.AddChapter(budget.NewChapter("A", "uno|dos").AddItem(item("I", "m\\2", "línea 1\nlínea 2", "1", "1")))

	text, _ := NewGenerator(GeneratorOptions{}).GenerateText(b)

	assert.Contains(t, text, "K|1|Obra   nueva|")
	assert.Contains(t, text, "C|A||uno dos|")
	assert.Contains(t, text, "C|I|m 2|línea 1 línea 2|")

	res, err := testParser().Parse([]byte(text))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Budget.TotalItems())
}

func TestGenerateUnknownEncoding(t *testing.T) {
	_, err := NewGenerator(GeneratorOptions{Encoding: "klingon"}).Generate(testBudget())
	assert.Error(t, err)
}
