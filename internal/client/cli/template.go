package cli

const timeLayout = "2006-01-02 15:04:05"

const statusTemplate = `
=== Status ===

Server:   {{ .Server }}
Network:  {{ if .Online }}online{{ else }}offline{{ end }}
{{- if .Username }}
Session:  {{ .Username }} ({{ .Session }})
Token:    expires {{ fmtTime .AccessExpiresAt }}
{{- else }}
Session:  not logged in
{{- end }}
Last sync: {{ if .LastSync.IsZero }}never{{ else }}{{ fmtTime .LastSync }}{{ end }}

{{- if gt .Pending 0 }}

⚠️  Pending sync: {{ .Pending }} operation(s) waiting
{{- if not .Username }}
Run 'offsync login' to replay them.
{{- else }}
Run 'offsync sync' to replay them now.
{{- end }}
{{- else }}

✓ All changes synchronized with server
{{- end }}
{{- if .Reconciliations }}

Unfinished id rewrites:
{{- range .Reconciliations }}
- {{ .EntityType }}/{{ .TempID }} -> {{ .ServerID }}{{ if .Cancelled }} (cancelled){{ end }}
{{- end }}
{{- end }}
`

const recordTemplate = `
=== {{ .EntityType }} {{ .ID }} ===

Updated: {{ fmtTime .UpdatedAt }}
{{- if isTemp .ID }}
Status:  not yet on the server
{{- end }}

{{ indent .Payload }}
`

const recordListTemplate = `
=== {{ .EntityType }} ===

{{- if eq (len .Records) 0 }}
No records found.

Use 'offsync create {{ .EntityType }} <json>' to add one.
{{ else }}
Found {{ len .Records }} record(s):

{{- range .Records }}
- {{ .ID }}{{ if isTemp .ID }} (pending){{ end }}
   Updated: {{ fmtTime .UpdatedAt }}
   Preview: {{ preview .Payload }}
{{- end }}
{{- end }}
`

const syncResultTemplate = `✓ Synced: {{ .Synced }}
{{- if .Reconciled }}, ids rewritten: {{ .Reconciled }}{{ end }}
{{- if .Failed }}, rejected: {{ .Failed }}{{ end }}
{{- if .Retried }}, will retry: {{ .Retried }}{{ end }}
{{- if .Deferred }}, backing off: {{ .Deferred }}{{ end }}
Remaining in queue: {{ .Remaining }}
`
