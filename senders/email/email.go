package email

import (
	"html/template"
	"strings"
)

var notificationTemplate = template.Must(template.New("notification.html").Parse(`<h3>Stockwatch update</h3>
{{range .Paragraphs}}<p>{{range $i, $line := .}}{{if $i}}<br>{{end}}{{$line}}{{end}}</p>
{{end}}`))

func mustFillTemplate(tmpl *template.Template, values any) string {
	buf := new(strings.Builder)
	err := tmpl.Execute(buf, values)
	if err != nil {
		return ""
	}
	return buf.String()
}

// NotificationEmailFormat renders chunked notification text, where messages are
// separated by blank lines.
type NotificationEmailFormat struct {
	Text string
}

func (ef *NotificationEmailFormat) Subject() string {
	first, _, _ := strings.Cut(strings.TrimSpace(ef.Text), "\n")
	if first == "" {
		return "Stockwatch: stock update"
	}
	return "Stockwatch: " + first
}

// Paragraphs splits the text into messages, and each message into lines.
func (ef *NotificationEmailFormat) Paragraphs() [][]string {
	var out [][]string
	for _, para := range strings.Split(ef.Text, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			out = append(out, strings.Split(para, "\n"))
		}
	}
	return out
}

func (ef *NotificationEmailFormat) Body() string {
	return mustFillTemplate(notificationTemplate, ef)
}
