package notify

import (
	"html/template"
	"sort"
)

const layout = `{{define "layout"}}<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background: #f4f4f4; padding: 20px;">
<table width="100%" style="max-width: 600px; margin: auto; background: #ffffff;">
<tr><td style="padding: 20px; line-height: 1.8;">{{template "body" .}}</td></tr>
<tr><td style="padding: 10px 20px; font-size: 12px; color: #888888;">{{.AppName}}</td></tr>
</table>
</body>
</html>{{end}}`

const (
	welcomeBody = `{{define "body"}}<p>Welcome to {{.AppName}}!</p>
<p>Your account for <strong>{{.Email}}</strong> is ready.</p>{{end}}`

	otpBody = `{{define "body"}}<p>Your verification code is:</p>
<p style="font-size: 24px; letter-spacing: 4px;"><strong>{{.Code}}</strong></p>
<p>It expires in {{.ExpiryMinutes}} minutes. If you did not request it, ignore this email.</p>{{end}}`

	resetBody = `{{define "body"}}<p>The password for <strong>{{.Email}}</strong> was just reset.</p>
<p>If this was not you, contact support immediately.</p>{{end}}`

	adminEventBody = `{{define "body"}}<p>Admin activity detected: <strong>{{.Action}}</strong></p>
<p><strong>Actor:</strong> {{if .Email}}{{.Email}}{{else}}Unknown{{end}}</p>
{{range .Metadata}}<p><strong>{{.Key}}:</strong> {{.Value}}</p>
{{end}}{{end}}`
)

var (
	welcomeTemplate    = mustTemplate("welcome", welcomeBody)
	otpTemplate        = mustTemplate("otp", otpBody)
	resetTemplate      = mustTemplate("reset", resetBody)
	adminEventTemplate = mustTemplate("admin_event", adminEventBody)
)

type templateData struct {
	AppName       string
	Email         string
	Code          string
	ExpiryMinutes int
	Action        string
	Metadata      []metadataEntry
}

type metadataEntry struct {
	Key   string
	Value string
}

func mustTemplate(name, body string) *template.Template {
	t := template.Must(template.New(name).Parse(layout))
	t = template.Must(t.Parse(body))
	return t.Lookup("layout")
}

func sortedMetadata(metadata map[string]string) []metadataEntry {
	entries := make([]metadataEntry, 0, len(metadata))
	for k, v := range metadata {
		entries = append(entries, metadataEntry{Key: k, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}
