package model

// TypeStats aggregates jobs of one automation type
type TypeStats struct {
	Executions  int     `json:"execucoes"`
	Processed   int     `json:"processados"`
	Successes   int     `json:"sucessos"`
	SuccessRate float64 `json:"taxa_sucesso"`
}

// DailyCount is the number of jobs started on one day, per type
type DailyCount struct {
	Day     string `json:"dia"`
	Boletos int    `json:"boletos"`
	Recurso int    `json:"recurso"`
}

// DashboardStats is the dashboard payload
type DashboardStats struct {
	TotalJobs int                   `json:"geral_jobs"`
	ByType    map[JobType]TypeStats `json:"detalhes"`
	LastWeek  []DailyCount          `json:"grafico_7_dias"`
}
