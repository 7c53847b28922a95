package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	syncmgr "github.com/iudanet/offsync/internal/client/sync"
	"github.com/iudanet/offsync/internal/models"
)

const previewLen = 60

var funcs = template.FuncMap{
	"fmtTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format(timeLayout)
	},
	"isTemp":  models.IsTempID,
	"indent":  indentJSON,
	"preview": preview,
}

// render executes a template from template.go into the terminal
func (c *Cli) render(name, text string, data any) error {
	tmpl, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	if err := tmpl.Execute(c.io, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return nil
}

func (c *Cli) printResult(res *syncmgr.Result) {
	if err := c.render("sync", syncResultTemplate, res); err != nil {
		c.logger.Error("Failed to print sync result", "error", err)
	}
}

func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func preview(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		buf.Reset()
		buf.Write(raw)
	}
	s := buf.String()
	if len(s) > previewLen {
		return s[:previewLen] + "..."
	}
	return s
}
