package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HTMLConfig contains configuration for HTML report generation.
type HTMLConfig struct {
	OutputPath  string // Path to write the HTML file
	EmbedAssets bool   // Embed screenshots as base64 (makes file larger but portable)
	Title       string // Report title (default: "Run Report")
}

// GenerateHTML generates an HTML report from the report directory.
func GenerateHTML(reportDir string, cfg HTMLConfig) error {
	rep, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	if cfg.Title == "" {
		cfg.Title = "Run Report"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(reportDir, "report.html")
	}

	html, err := renderHTML(buildHTMLData(reportDir, rep, cfg))
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	if err := os.WriteFile(cfg.OutputPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

// HTMLData contains all data needed for the HTML template.
type HTMLData struct {
	Title         string
	GeneratedAt   string
	Report        *Report
	Scenarios     []ScenarioHTMLData
	TotalDuration string
	PassRate      float64
}

// ScenarioHTMLData contains scenario data formatted for HTML.
type ScenarioHTMLData struct {
	ScenarioEntry
	DurationStr string
	Steps       []StepHTMLData
}

// StepHTMLData contains step data formatted for HTML.
type StepHTMLData struct {
	Step
	DurationStr string
	Screenshot  string // base64 or path
}

func buildHTMLData(reportDir string, rep *Report, cfg HTMLConfig) HTMLData {
	scenarios := make([]ScenarioHTMLData, len(rep.Scenarios))
	for i, sc := range rep.Scenarios {
		steps := make([]StepHTMLData, len(sc.Steps))
		for j, st := range sc.Steps {
			sd := StepHTMLData{Step: st, DurationStr: formatDuration(st.Duration)}
			for _, a := range st.Artifacts {
				if a.ContentType != "image/png" {
					continue
				}
				if cfg.EmbedAssets {
					sd.Screenshot = loadAsBase64(filepath.Join(reportDir, a.Path))
				} else {
					sd.Screenshot = filepath.ToSlash(a.Path)
				}
			}
			steps[j] = sd
		}
		scenarios[i] = ScenarioHTMLData{
			ScenarioEntry: sc,
			DurationStr:   formatDuration(sc.Duration),
			Steps:         steps,
		}
	}

	var passRate float64
	if rep.Summary.Total > 0 {
		passRate = float64(rep.Summary.Passed) / float64(rep.Summary.Total) * 100
	}

	var totalDurationMs int64
	if rep.EndTime != nil {
		totalDurationMs = rep.EndTime.Sub(rep.StartTime).Milliseconds()
	}

	return HTMLData{
		Title:         cfg.Title,
		GeneratedAt:   time.Now().Format("2006-01-02 15:04:05"),
		Report:        rep,
		Scenarios:     scenarios,
		TotalDuration: formatDuration(&totalDurationMs),
		PassRate:      passRate,
	}
}

func formatDuration(ms *int64) string {
	if ms == nil {
		return "-"
	}
	d := time.Duration(*ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", *ms)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

func loadAsBase64(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(filepath.Ext(path))
	mimeType := "image/png"
	if ext == ".jpg" || ext == ".jpeg" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

func renderHTML(data HTMLData) (string, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"safeURL": func(s string) template.URL { return template.URL(s) },
	}).Parse(htmlTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --bg-secondary: #f9fafb;
            --text-muted: rgb(107, 114, 128);
            --border-color: #e5e7eb;
            --passed: #22c55e;
            --failed: #ef4444;
            --skipped: #eab308;
            --running: #06b6d4;
            --pending: #6b7280;
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.5; }
        .header { background: var(--bg-secondary); border-bottom: 1px solid var(--border-color); padding: 16px 24px; }
        .goal { color: var(--text-muted); font-size: 13px; }
        .stats { display: flex; gap: 24px; margin-top: 12px; font-size: 14px; }
        .scenario { margin: 16px 24px; border: 1px solid var(--border-color); border-radius: 6px; }
        .scenario > summary { padding: 10px 14px; cursor: pointer; font-weight: 600; }
        .step { border-top: 1px solid var(--border-color); padding: 8px 14px; font-size: 13px; }
        .reason { color: var(--text-muted); }
        .error { color: var(--failed); }
        .badge { display: inline-block; min-width: 64px; font-size: 11px; text-transform: uppercase; font-weight: 600; }
        .passed { color: var(--passed); }
        .failed { color: var(--failed); }
        .skipped { color: var(--skipped); }
        .running { color: var(--running); }
        .pending { color: var(--pending); }
        img.shot { max-height: 320px; margin-top: 6px; border: 1px solid var(--border-color); }
    </style>
</head>
<body>
<div class="header">
    <h1>{{.Title}}</h1>
    {{if .Report.BusinessGoal}}<div class="goal">{{.Report.BusinessGoal}}</div>{{end}}
    <div class="stats">
        <span>Run <code>{{.Report.RunID}}</code></span>
        <span class="{{.Report.Status}}">{{.Report.Status}}</span>
        <span>{{.Report.Summary.Passed}}/{{.Report.Summary.Total}} scenarios passed ({{printf "%.0f" .PassRate}}%)</span>
        <span>{{.TotalDuration}}</span>
        <span class="goal">generated {{.GeneratedAt}}</span>
    </div>
</div>
{{range .Scenarios}}
<details class="scenario"{{if eq .Status "failed"}} open{{end}}>
    <summary><span class="badge {{.Status}}">{{.Status}}</span> {{.Title}} <span class="reason">{{.ID}} · {{.DurationStr}}</span></summary>
    {{range .Steps}}
    <div class="step">
        <span class="badge {{.Status}}">{{.Status}}</span>
        <strong>{{.Label}}</strong>
        <span class="reason">{{.Action}}{{if .Target}} → {{.Target}}{{end}} · expect "{{.ExpectedState}}" · {{.Attempts}} attempt(s) · {{.DurationStr}}</span>
        {{range .Reasons}}<div class="reason">{{.}}</div>{{end}}
        {{with .Error}}<div class="error">{{.Message}}{{if .Suggestion}} ({{.Suggestion}}){{end}}</div>{{end}}
        {{if .Screenshot}}<div><img class="shot" src="{{safeURL .Screenshot}}" alt="screenshot"></div>{{end}}
    </div>
    {{end}}
</details>
{{end}}
</body>
</html>
`
