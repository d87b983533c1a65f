package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/valyala/fasttemplate"

	"github.com/any-hub/any-index/internal/datefmt"
)

// DefaultPage is the built-in HTML page used when no custom template is set.
const DefaultPage = `<!DOCTYPE html><html lang="en"><head><meta charset="UTF-8" /><meta name="viewport" content="width=device-width, initial-scale=1.0" /><title>{{title}}</title></head><body><h1>{{title}}</h1><hr/><table>{{content}}</table><hr/></body><style type="text/css">html{font-family:Arial,Helvetica,sans-serif}table{font-family:'Courier New',Courier,monospace;font-size:12px;font-weight:400;letter-spacing:normal;line-height:normal;font-style:normal}tr td:first-child{min-width:20%}td a{margin-right:1em}td.size{text-align:end}</style></html>`

var (
	titleTag   = regexp.MustCompile(`\{\{\s*title\s*\}\}`)
	contentTag = regexp.MustCompile(`\{\{\s*content\s*\}\}`)
)

// JSONFields renames listing keys in JSON output. A nil field drops the key.
type JSONFields struct {
	IsDir *string
	Name  *string
	Path  *string
	Time  *string
	Size  *string
}

// Item is an entry prepared for rendering.
type Item struct {
	Entry
	// Href is the unescaped logical path of the entry including the mount prefix.
	Href string
}

// Page is the input of one HTML render.
type Page struct {
	Title string
	// Parent is the "../" link target; empty at the mount root.
	Parent string
	Items  []Item
}

// Options configures a Renderer.
type Options struct {
	DirAtTop    bool
	DisplayDate bool
	DisplaySize bool
	HumanSize   bool
	// Template is the HTML page; empty uses DefaultPage.
	Template   string
	JSONFields *JSONFields
	Dates      *datefmt.Formatter
}

// Renderer turns items into an HTML page or a JSON array.
type Renderer struct {
	opts Options
	page *fasttemplate.Template
}

// NewRenderer parses the page template and checks that it has both a title
// and a content placeholder.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.Template == "" {
		opts.Template = DefaultPage
	}
	if !titleTag.MatchString(opts.Template) || !contentTag.MatchString(opts.Template) {
		return nil, fmt.Errorf("template must contain {{title}} and {{content}} placeholders")
	}
	page, err := fasttemplate.NewTemplate(opts.Template, "{{", "}}")
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if opts.Dates == nil {
		opts.Dates = datefmt.NewFormatter(datefmt.DefaultLayout, datefmt.DefaultCacheSize)
	}
	return &Renderer{opts: opts, page: page}, nil
}

// HTML renders the listing page.
func (r *Renderer) HTML(p Page) string {
	var content strings.Builder
	if p.Parent != "" {
		content.WriteString(`<tr><td><a href="`)
		content.WriteString(escapeHref(p.Parent))
		content.WriteString(`">../</a></td></tr>`)
	}

	if r.opts.DirAtTop {
		for _, it := range p.Items {
			if it.IsDir {
				r.writeRow(&content, it)
			}
		}
		for _, it := range p.Items {
			if !it.IsDir {
				r.writeRow(&content, it)
			}
		}
	} else {
		for _, it := range p.Items {
			r.writeRow(&content, it)
		}
	}

	title := html.EscapeString("Index of " + p.Title)
	body := content.String()
	return r.page.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		switch strings.TrimSpace(tag) {
		case "title":
			return io.WriteString(w, title)
		case "content":
			return io.WriteString(w, body)
		default:
			return io.WriteString(w, "{{"+tag+"}}")
		}
	})
}

func (r *Renderer) writeRow(b *strings.Builder, it Item) {
	b.WriteString(`<tr><td class="link"><a href="`)
	b.WriteString(escapeHref(it.Href))
	b.WriteString(`">`)
	b.WriteString(html.EscapeString(it.DisplayName()))
	b.WriteString(`</a></td>`)
	if r.opts.DisplayDate {
		b.WriteString(`<td class="time">`)
		b.WriteString(escapeTime(r.opts.Dates.Format(it.ModTime)))
		b.WriteString(`</td>`)
	}
	if r.opts.DisplaySize {
		b.WriteString(`<td class="size">`)
		b.WriteString(r.sizeText(it))
		b.WriteString(`</td>`)
	}
	b.WriteString(`</tr>`)
}

func (r *Renderer) sizeText(it Item) string {
	if it.IsDir {
		return "-"
	}
	if r.opts.HumanSize {
		return humanize.Bytes(uint64(it.Size))
	}
	return strconv.FormatInt(it.Size, 10)
}

// JSON renders items as an array of objects in directory read order.
func (r *Renderer) JSON(items []Item) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, it := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := r.writeRecord(&buf, it); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

type field struct {
	key   string
	value any
}

func (r *Renderer) writeRecord(buf *bytes.Buffer, it Item) error {
	var size any
	if !it.IsDir {
		size = it.Size
	}
	fields := []field{
		{"isDir", it.IsDir},
		{"name", it.DisplayName()},
		{"path", it.Href},
		{"time", r.opts.Dates.Format(it.ModTime)},
		{"size", size},
	}
	if m := r.opts.JSONFields; m != nil {
		renames := []*string{m.IsDir, m.Name, m.Path, m.Time, m.Size}
		kept := fields[:0]
		for i, f := range fields {
			if renames[i] == nil {
				continue
			}
			kept = append(kept, field{key: *renames[i], value: f.value})
		}
		fields = kept
	}

	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.key)
		if err != nil {
			return err
		}
		value, err := json.Marshal(f.value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", f.key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return nil
}

// escapeTime replaces & \n < > ' " with numeric character references.
func escapeTime(s string) string {
	if !strings.ContainsAny(s, "&\n<>'\"") {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '&', '\n', '<', '>', '\'', '"':
			b.WriteString("&#")
			b.WriteString(strconv.Itoa(int(r)))
			b.WriteByte(';')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// escapeHref path-escapes each segment, then escapes the result for an attribute.
func escapeHref(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return html.EscapeString(strings.Join(segments, "/"))
}
