// =============================================================================
// BC3 Budget Converter - XML Writer Module
// =============================================================================
//
// This module renders a budget tree as an XML document for systems that do
// not read BC3.
//
// XML STRUCTURE:
//
//   <budget currency="EUR" total="70.00">
//     <metadata>
//       <title>Obra Test</title>
//       <date>2024-01-15</date>
//       ...
//     </metadata>
//     <chapter n="1" code="C01" total="70.00">    <!-- Chapters nest freely -->
//       <title>Movimiento de tierras</title>
//       <item n="1" code="E01">                    <!-- Global numbering -->
//         <unit>m3</unit>
//         <description>Excavación</description>
//         <quantity>4</quantity>
//         <price>12.50</price>
//         <total>50.00</total>
//       </item>
//       <chapter n="2" code="C01.01" total="20.00">
//         ...
//       </chapter>
//     </chapter>
//   </budget>
//
// Amounts use a decimal point and two decimals; quantities are exact.
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/ginjaninja78/bc3-budget-converter/internal/budget"
	"github.com/shopspring/decimal"
)

// =============================================================================
// XML GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for XML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// RootAttributes are additional attributes for the root element, written
	// in key order.
	// Example: {"xmlns": "urn:bc3conv:budget"}
	RootAttributes map[string]string

	// ItemNumberingGlobal numbers items 1, 2, 3... across the whole budget.
	// When false, numbering restarts in every chapter.
	// Default: true
	ItemNumberingGlobal bool

	// IndexAttribute is the attribute holding chapter and item indexes.
	// Default: "n"
	IndexAttribute string
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		RootAttributes:        make(map[string]string),
		ItemNumberingGlobal:   true,
		IndexAttribute:        "n",
	}
}

// =============================================================================
// XML GENERATION FUNCTIONS
// =============================================================================

// Generate creates an XML document from a budget with the default options.
func Generate(b *budget.Budget) ([]byte, error) {
	return GenerateWithOptions(b, DefaultGenerateOptions())
}

// GenerateWithOptions creates an XML document with custom options.
//
// GENERATION PROCESS:
//   1. Create the root element with currency and grand total
//   2. Add the metadata block
//   3. For each chapter, depth-first:
//      a. Create the chapter element with index, code and total
//      b. Add the title, then the items, then the subchapters
//   4. Write everything with indentation
func GenerateWithOptions(b *budget.Budget, options GenerateOptions) ([]byte, error) {
	if b == nil {
		return nil, fmt.Errorf("failed to generate XML: nil budget")
	}

	var buffer bytes.Buffer

	if options.IncludeXMLDeclaration {
		buffer.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	}

	doc := buildDocument(b, options)
	writeElement(&buffer, doc, options.Indent, 0)

	return buffer.Bytes(), nil
}

// =============================================================================
// XML DOCUMENT BUILDING
// =============================================================================

// XMLElement represents a generic XML element. An element carries either a
// text value or children, never both.
type XMLElement struct {
	XMLName    xml.Name
	Attributes []xml.Attr
	Value      string
	Children   []XMLElement
}

// counters tracks chapter and item indexes while building.
type counters struct {
	chapter int
	item    int
}

func buildDocument(b *budget.Budget, options GenerateOptions) XMLElement {
	doc := XMLElement{
		XMLName: xml.Name{Local: "budget"},
		Attributes: []xml.Attr{
			attr("currency", b.Metadata.Currency),
			attr("total", amount(b.Total())),
		},
	}

	keys := make([]string, 0, len(options.RootAttributes))
	for key := range options.RootAttributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		doc.Attributes = append(doc.Attributes, attr(key, options.RootAttributes[key]))
	}

	doc.Children = append(doc.Children, buildMetadataElement(b.Metadata))

	count := &counters{}
	for _, c := range b.Chapters {
		doc.Children = append(doc.Children, buildChapterElement(c, options, count))
	}
	return doc
}

func buildMetadataElement(meta budget.Metadata) XMLElement {
	element := XMLElement{XMLName: xml.Name{Local: "metadata"}}

	add := func(name, value string) {
		if value != "" {
			element.Children = append(element.Children, createSimpleElement(name, value))
		}
	}
	add("title", meta.Title)
	add("owner", meta.Owner)
	if !meta.Date.IsZero() {
		add("date", meta.Date.Format("2006-01-02"))
	}
	add("version", meta.Version)
	add("currency", meta.Currency)
	add("comments", meta.Comments)

	return element
}

// buildChapterElement constructs a chapter element and its whole subtree.
//
// STRUCTURE:
//   <chapter n="1" code="C01" total="70.00">
//     <title>...</title>
//     <item n="1" code="E01">...</item>
//     <chapter n="2" code="C01.01" total="20.00">...</chapter>
//   </chapter>
func buildChapterElement(c *budget.Chapter, options GenerateOptions, count *counters) XMLElement {
	count.chapter++
	element := XMLElement{
		XMLName: xml.Name{Local: "chapter"},
		Attributes: []xml.Attr{
			attr(options.IndexAttribute, fmt.Sprintf("%d", count.chapter)),
			attr("code", c.Code),
			attr("total", amount(c.Total())),
		},
	}
	element.Children = append(element.Children, createSimpleElement("title", c.Title))

	local := 0
	for _, it := range c.Items {
		count.item++
		local++
		index := count.item
		if !options.ItemNumberingGlobal {
			index = local
		}
		element.Children = append(element.Children, buildItemElement(it, index, options))
	}

	for _, sub := range c.Subchapters {
		element.Children = append(element.Children, buildChapterElement(sub, options, count))
	}
	return element
}

func buildItemElement(it *budget.Item, index int, options GenerateOptions) XMLElement {
	return XMLElement{
		XMLName: xml.Name{Local: "item"},
		Attributes: []xml.Attr{
			attr(options.IndexAttribute, fmt.Sprintf("%d", index)),
			attr("code", it.Code),
		},
		Children: []XMLElement{
			createSimpleElement("unit", it.Unit),
			createSimpleElement("description", it.Description),
			createSimpleElement("quantity", it.Quantity.String()),
			createSimpleElement("price", amount(it.Price)),
			createSimpleElement("total", amount(it.Total())),
		},
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func createSimpleElement(name, value string) XMLElement {
	return XMLElement{
		XMLName: xml.Name{Local: name},
		Value:   value,
	}
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// writeElement writes an XML element to the buffer with indentation.
func writeElement(buffer *bytes.Buffer, element XMLElement, indent string, level int) {
	for i := 0; i < level; i++ {
		buffer.WriteString(indent)
	}

	buffer.WriteString("<")
	buffer.WriteString(element.XMLName.Local)

	for _, a := range element.Attributes {
		buffer.WriteString(fmt.Sprintf(" %s=\"%s\"", a.Name.Local, escapeXML(a.Value)))
	}

	if len(element.Children) == 0 && element.Value == "" {
		buffer.WriteString("/>\n")
		return
	}

	buffer.WriteString(">")

	if element.Value != "" {
		buffer.WriteString(escapeXML(element.Value))
	} else {
		buffer.WriteString("\n")

		for _, child := range element.Children {
			writeElement(buffer, child, indent, level+1)
		}

		for i := 0; i < level; i++ {
			buffer.WriteString(indent)
		}
	}

	buffer.WriteString("</")
	buffer.WriteString(element.XMLName.Local)
	buffer.WriteString(">\n")
}

// escapeXML escapes special characters for XML. Control characters that XML
// 1.0 forbids are dropped.
func escapeXML(s string) string {
	var buffer bytes.Buffer

	for _, r := range s {
		switch r {
		case '&':
			buffer.WriteString("&amp;")
		case '<':
			buffer.WriteString("&lt;")
		case '>':
			buffer.WriteString("&gt;")
		case '"':
			buffer.WriteString("&quot;")
		case '\'':
			buffer.WriteString("&apos;")
		case '\t', '\n', '\r':
			buffer.WriteRune(r)
		default:
			if r < 0x20 {
				continue
			}
			buffer.WriteRune(r)
		}
	}

	return buffer.String()
}
