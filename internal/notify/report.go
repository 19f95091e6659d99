package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/dandantas/tasyrunner/internal/model"
)

// Row kinds shown in the report
const (
	KindSuccess = "SUCESSO"
	KindWarning = "AVISO"
	KindError   = "ERRO"
)

type reportRow struct {
	ItemID string
	Detail string
	Kind   string
}

type reportData struct {
	Title     string
	JobID     string
	Generated string
	Total     int
	Success   int
	Warnings  int
	Errors    int
	Rows      []reportRow
}

var reportTemplate = template.Must(template.New("report").Parse(`<html>
<body style="font-family: Arial, sans-serif; background-color: #f3f4f6; padding: 20px;">
  <div style="max-width: 800px; margin: 0 auto; background-color: #1f2937; color: #fff; border-radius: 8px; overflow: hidden;">
    <div style="background-color: #00995D; padding: 20px;">
      <h2 style="margin: 0; color: #fff;">Resumo da Execução: {{.Title}}</h2>
      <p style="margin: 5px 0 0; font-size: 14px; opacity: 0.9;">Automação Tasy</p>
    </div>
    <div style="padding: 20px;">
      <table style="width: 100%; margin-bottom: 20px; text-align: center;">
        <tr>
          <td style="background: #374151; padding: 10px;"><div style="font-size: 10px; color: #9ca3af;">TOTAL</div><div style="font-size: 20px; font-weight: bold;">{{.Total}}</div></td>
          <td style="background: #374151; padding: 10px; border-bottom: 3px solid #059669;"><div style="font-size: 10px; color: #9ca3af;">ENVIADOS</div><div style="font-size: 20px; font-weight: bold; color: #34d399;">{{.Success}}</div></td>
          <td style="background: #374151; padding: 10px; border-bottom: 3px solid #d97706;"><div style="font-size: 10px; color: #9ca3af;">SEM E-MAIL</div><div style="font-size: 20px; font-weight: bold; color: #fbbf24;">{{.Warnings}}</div></td>
          <td style="background: #374151; padding: 10px; border-bottom: 3px solid #dc2626;"><div style="font-size: 10px; color: #9ca3af;">FALHAS</div><div style="font-size: 20px; font-weight: bold; color: #f87171;">{{.Errors}}</div></td>
        </tr>
      </table>
      <p style="font-size: 12px; color: #6b7280;">Job ID: #{{.JobID}} &middot; Data: {{.Generated}}</p>
      <table style="width: 100%; border-collapse: collapse; text-align: left; font-size: 14px;">
        <thead style="background: #111827; color: #9ca3af; font-size: 11px;">
          <tr><th style="padding: 10px;">Item</th><th style="padding: 10px;">Detalhe</th><th style="padding: 10px; text-align: right;">Status</th></tr>
        </thead>
        <tbody>
        {{- range .Rows}}
          <tr style="border-bottom: 1px solid #374151;">
            <td style="padding: 12px; font-family: monospace;">{{.ItemID}}</td>
            <td style="padding: 12px; font-size: 13px; color: {{if eq .Kind "SUCESSO"}}#9ca3af{{else if eq .Kind "AVISO"}}#fbbf24{{else}}#fca5a5{{end}};">{{.Detail}}</td>
            <td style="padding: 12px; text-align: right;">
              {{- if eq .Kind "SUCESSO"}}<span style="background:#059669;color:#fff;padding:4px 8px;border-radius:4px;font-size:10px;font-weight:bold;">ENVIADO</span>
              {{- else if eq .Kind "AVISO"}}<span style="background:#d97706;color:#fff;padding:4px 8px;border-radius:4px;font-size:10px;font-weight:bold;">SEM E-MAIL</span>
              {{- else}}<span style="background:#dc2626;color:#fff;padding:4px 8px;border-radius:4px;font-size:10px;font-weight:bold;">ERRO</span>{{end}}
            </td>
          </tr>
        {{- end}}
        </tbody>
      </table>
    </div>
    <div style="background: #111827; padding: 10px; text-align: center; font-size: 11px; color: #4b5563;">
      Mensagem gerada automaticamente pelo robô de automação
    </div>
  </div>
</body>
</html>
`))

func title(jobType model.JobType) string {
	if jobType == model.JobTypeRecursoProprio {
		return "Recurso Próprio"
	}
	return "Boletos"
}

// Classify maps a result to the report row kind
func Classify(r model.ItemResult) string {
	switch {
	case r.Status == model.ItemSuccess:
		return KindSuccess
	case r.Reason == model.ReasonEmptyEmail:
		return KindWarning
	default:
		return KindError
	}
}

// Subject is the summary e-mail subject for job
func Subject(job *model.Job) string {
	return fmt.Sprintf("[Resumo] Automação %s - Job #%s", title(job.Type), job.ID)
}

// RenderReport renders the HTML summary of job
func RenderReport(job *model.Job, now time.Time) (string, error) {
	data := reportData{
		Title:     title(job.Type),
		JobID:     job.ID,
		Generated: now.Format("02/01/2006 15:04"),
		Total:     job.ItemCount,
	}

	for _, r := range job.SortedResults() {
		row := reportRow{ItemID: r.ItemID, Detail: r.Detail, Kind: Classify(r)}
		switch row.Kind {
		case KindSuccess:
			data.Success++
		case KindWarning:
			data.Warnings++
		default:
			data.Errors++
		}
		data.Rows = append(data.Rows, row)
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}
