// Package report renders tabular data into a self-contained HTML document
// suitable for download and offline viewing.
package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Keoroanthony/nuomi-store/internal/models"
)

// ItemsKey is the only data key rendered structurally: a slice under it
// becomes a nested line-item table.
const ItemsKey = "items"

// CurrencySuffix is appended to line-item prices in the nested table.
const CurrencySuffix = "ر.س"

type Column struct {
	Header  string `json:"header"`
	DataKey string `json:"dataKey"`
}

// Row is one record. Values are printed as given; callers format numbers,
// dates and money before rendering.
type Row map[string]any

//go:embed report.html
var pageSource string

var page = template.Must(template.New("report").Parse(pageSource))

// Renderer holds the non-pure inputs of a report.
type Renderer struct {
	Brand   string
	Tagline string
	Now     func() time.Time
}

func NewRenderer() *Renderer {
	return &Renderer{
		Brand:   "NUOMI",
		Tagline: "شركة تصميم وديكور داخلي فاخر",
		Now:     time.Now,
	}
}

// Generate renders with the default renderer.
func Generate(title string, columns []Column, rows []Row) string {
	return NewRenderer().Generate(title, columns, rows)
}

type itemView struct {
	Line  string
	Price string
}

type cellView struct {
	Text    string
	IsItems bool
	Items   []itemView
}

type pageView struct {
	Title       string
	Brand       string
	Tagline     string
	Headers     []string
	Rows        [][]cellView
	Year        int
	GeneratedAt string
}

func (r *Renderer) Generate(title string, columns []Column, rows []Row) string {
	now := r.Now()
	view := pageView{
		Title:       title,
		Brand:       r.Brand,
		Tagline:     r.Tagline,
		Headers:     make([]string, 0, len(columns)),
		Rows:        make([][]cellView, 0, len(rows)),
		Year:        now.Year(),
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
	for _, col := range columns {
		view.Headers = append(view.Headers, col.Header)
	}
	for _, row := range rows {
		cells := make([]cellView, 0, len(columns))
		for _, col := range columns {
			cells = append(cells, renderCell(col.DataKey, row[col.DataKey]))
		}
		view.Rows = append(view.Rows, cells)
	}

	var sb strings.Builder
	if err := page.Execute(&sb, view); err != nil {
		// the template is static and every value is a string or int
		panic(fmt.Sprintf("report: template execution failed: %v", err))
	}
	return sb.String()
}

func renderCell(key string, value any) cellView {
	if key == ItemsKey {
		if items, ok := lineItems(value); ok {
			views := make([]itemView, 0, len(items))
			for _, it := range items {
				views = append(views, itemView{
					Line:  fmt.Sprintf("%sx %s", it.quantity, it.name),
					Price: it.price.StringFixed(2) + " " + CurrencySuffix,
				})
			}
			return cellView{IsItems: true, Items: views}
		}
	}
	if value == nil {
		return cellView{}
	}
	return cellView{Text: fmt.Sprint(value)}
}

type item struct {
	quantity string
	name     string
	price    decimal.Decimal
}

func lineItems(value any) ([]item, bool) {
	switch v := value.(type) {
	case []models.LineItem:
		out := make([]item, 0, len(v))
		for _, li := range v {
			out = append(out, item{
				quantity: fmt.Sprint(li.Quantity),
				name:     li.Name,
				price:    decimal.NewFromFloat(li.Price),
			})
		}
		return out, true
	case nil:
		return nil, false
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]item, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out = append(out, itemFrom(rv.Index(i).Interface()))
	}
	return out, true
}

func itemFrom(v any) item {
	switch e := v.(type) {
	case models.LineItem:
		return item{quantity: fmt.Sprint(e.Quantity), name: e.Name, price: decimal.NewFromFloat(e.Price)}
	case *models.LineItem:
		if e == nil {
			return item{}
		}
		return itemFrom(*e)
	case map[string]any:
		return item{
			quantity: stringOf(e["quantity"]),
			name:     stringOf(e["name"]),
			price:    decimalOf(e["price"]),
		}
	}
	return item{}
}

func stringOf(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func decimalOf(v any) decimal.Decimal {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n)
	case float32:
		return decimal.NewFromFloat32(n)
	case int:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	case decimal.Decimal:
		return n
	case fmt.Stringer:
		d, err := decimal.NewFromString(n.String())
		if err == nil {
			return d
		}
	case string:
		d, err := decimal.NewFromString(n)
		if err == nil {
			return d
		}
	}
	return decimal.Zero
}

// Filename follows the <Entity>_Report_<YYYY-MM-DD>.html download convention.
func Filename(entity string, t time.Time) string {
	return fmt.Sprintf("%s_Report_%s.html", entity, t.Format("2006-01-02"))
}
