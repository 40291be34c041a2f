package budget

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(code, price, qty string) *Item {
	it := NewItem(code, "desc "+code, d(price))
	it.Quantity = d(qty)
	return it
}

func sampleBudget() *Budget {
	b := New(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))

	sub := NewChapter("C01.01", "Excavaciones")
	sub.AddItem(item("E01", "12.50", "4"))
	sub.AddItem(item("E02", "3", "10"))

	c1 := NewChapter("C01", "Movimiento de tierras")
	c1.AddItem(item("M01", "100", "1"))
	c1.AddSubchapter(sub)

	c2 := NewChapter("C02", "Estructura")
	c2.AddItem(item("S01", "10.50", "2"))

	return b.AddChapter(c1).AddChapter(c2)
}

func TestItemTotal(t *testing.T) {
	assert.True(t, d("21").Equal(item("I1", "10.50", "2").Total()))
	assert.True(t, decimal.Zero.Equal(item("I2", "10.50", "0").Total()))
}

func TestNewItemDefaults(t *testing.T) {
	it := NewItem("X", "thing", d("5"))
	assert.Equal(t, DefaultUnit, it.Unit)
	assert.True(t, decimal.NewFromInt(1).Equal(it.Quantity))
}

func TestChapterEmptyTotalIsZero(t *testing.T) {
	c := NewChapter("E", "Empty")
	assert.True(t, c.IsEmpty())
	assert.True(t, decimal.Zero.Equal(c.Total()))
}

func TestChapterTotalAlgebra(t *testing.T) {
	b := sampleBudget()

	var check func(c *Chapter)
	check = func(c *Chapter) {
		want := decimal.Zero
		for _, it := range c.Items {
			want = want.Add(it.Total())
		}
		for _, sub := range c.Subchapters {
			want = want.Add(sub.Total())
			check(sub)
		}
		assert.True(t, want.Equal(c.Total()), "chapter %s", c.Code)
	}
	for _, c := range b.Chapters {
		check(c)
	}

	// 50 + 30 + 100 = 180, plus 21
	assert.True(t, d("180").Equal(b.Chapters[0].Total()))
	assert.True(t, d("201").Equal(b.Total()))
}

func TestBudgetTotalItemsCountsFullDepth(t *testing.T) {
	b := sampleBudget()
	deep := NewChapter("C01.01.01", "Deep")
	deep.AddItem(item("D01", "1", "1"))
	b.Chapters[0].Subchapters[0].AddSubchapter(deep)

	assert.Equal(t, 5, b.TotalItems())
	assert.Equal(t, 4, b.TotalChapters())
}

func TestWalkOrderAndDepth(t *testing.T) {
	b := sampleBudget()

	var codes []string
	var depths []int
	err := Walk(b, func(n Node) error {
		codes = append(codes, n.Code())
		depths = append(depths, n.Depth)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"C01", "M01", "C01.01", "E01", "E02", "C02", "S01"}, codes)
	assert.Equal(t, []int{1, 2, 2, 3, 3, 1, 2}, depths)
}

func TestWalkSkipChapter(t *testing.T) {
	b := sampleBudget()

	var codes []string
	err := Walk(b, func(n Node) error {
		codes = append(codes, n.Code())
		if n.Kind == KindChapter && n.Chapter.Code == "C01" {
			return SkipChapter
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"C01", "C02", "S01"}, codes)
}

func TestJSONRoundTrip(t *testing.T) {
	b := sampleBudget()
	b.Metadata.Owner = "Ayuntamiento"

	data, err := Encode(b)
	require.NoError(t, err)

	got, err := Decode(data, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "Ayuntamiento", got.Metadata.Owner)
	assert.True(t, b.Metadata.Date.Equal(got.Metadata.Date))
	require.Len(t, got.Chapters, 2)
	assert.True(t, b.Total().Equal(got.Total()))
	assert.Equal(t, b.TotalItems(), got.TotalItems())
	assert.Equal(t, "E02", got.Chapters[0].Subchapters[0].Items[1].Code)
}

func TestDecodeAppliesDefaults(t *testing.T) {
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	data := []byte(`{"chapters":[{"code":"A","title":"Cap A","items":[{"code":"I","description":"x","price":"2.5"}]}]}`)

	got, err := Decode(data, now)
	require.NoError(t, err)

	assert.Equal(t, DefaultTitle, got.Metadata.Title)
	assert.Equal(t, DefaultCurrency, got.Metadata.Currency)
	assert.True(t, now.Equal(got.Metadata.Date))

	it := got.Chapters[0].Items[0]
	assert.Equal(t, DefaultUnit, it.Unit)
	assert.True(t, decimal.NewFromInt(1).Equal(it.Quantity))
	assert.True(t, d("2.5").Equal(it.Total()))
}

func TestDecodeInvalidJSON(t *testing.T) {
	_, err := Decode([]byte("{not json"), time.Now())
	assert.Error(t, err)
}
