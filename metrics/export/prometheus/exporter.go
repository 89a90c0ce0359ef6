package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// Exporter renders a snapshot source on every scrape.
type Exporter struct {
	source internaldefs.Source
}

// NewExporter reads from client.
func NewExporter(client *goSession.Client) *Exporter {
	return &Exporter{source: client}
}

// NewExporterFromSource reads from any snapshot source.
func NewExporterFromSource(source internaldefs.Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves Render. A client with metrics disabled yields 204.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body := e.Render()
		if body == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	})
}

// Render returns the exposition text, or "" when metrics are disabled.
func (e *Exporter) Render() string {
	if e == nil || e.source == nil {
		return ""
	}
	var w textWriter
	if !internaldefs.Walk(e.source, &w) {
		return ""
	}
	return w.b.String()
}

// textWriter is the internaldefs.Visitor producing exposition text.
type textWriter struct {
	b strings.Builder
}

func (w *textWriter) Counter(f internaldefs.Family, points []internaldefs.Point) {
	w.header(f.Name, f.Help, "counter")
	for _, p := range points {
		w.b.WriteString(f.Name)
		if f.LabelKey != "" {
			w.label(f.LabelKey, p.LabelValue)
		}
		w.value(p.Value)
	}
}

func (w *textWriter) Histogram(name, help string, cumulative [len(internaldefs.LatencyBounds)]uint64) {
	w.header(name, help, "histogram")
	for i, le := range internaldefs.LatencyBounds {
		w.b.WriteString(name)
		w.b.WriteString("_bucket")
		w.label("le", le)
		w.value(cumulative[i])
	}
	w.b.WriteString(name)
	w.b.WriteString("_count")
	w.value(cumulative[len(cumulative)-1])
	// Bucket counts only; the client does not keep a running sum.
	w.b.WriteString(name)
	w.b.WriteString("_sum")
	w.value(0)
}

func (w *textWriter) header(name, help, kind string) {
	w.b.WriteString("# HELP ")
	w.b.WriteString(name)
	w.b.WriteByte(' ')
	w.b.WriteString(helpEscaper.Replace(help))
	w.b.WriteString("\n# TYPE ")
	w.b.WriteString(name)
	w.b.WriteByte(' ')
	w.b.WriteString(kind)
	w.b.WriteByte('\n')
}

func (w *textWriter) label(key, value string) {
	w.b.WriteByte('{')
	w.b.WriteString(key)
	w.b.WriteString(`="`)
	w.b.WriteString(labelEscaper.Replace(value))
	w.b.WriteString(`"}`)
}

func (w *textWriter) value(v uint64) {
	w.b.WriteByte(' ')
	w.b.WriteString(strconv.FormatUint(v, 10))
	w.b.WriteByte('\n')
}

var (
	helpEscaper  = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
	labelEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)
)
