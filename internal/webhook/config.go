package webhook

// RetryConfig controls redelivery of a webhook
type RetryConfig struct {
	MaxAttempts    int     `json:"max_attempts" yaml:"max_attempts"`
	InitialDelayMs int     `json:"initial_delay_ms" yaml:"initial_delay_ms"`
	MaxDelayMs     int     `json:"max_delay_ms" yaml:"max_delay_ms"`
	Multiplier     float64 `json:"multiplier" yaml:"multiplier"`
}

// SetDefaults sets default values for retry configuration
func (rc *RetryConfig) SetDefaults() {
	if rc.MaxAttempts == 0 {
		rc.MaxAttempts = 3
	}
	if rc.InitialDelayMs == 0 {
		rc.InitialDelayMs = 1000
	}
	if rc.MaxDelayMs == 0 {
		rc.MaxDelayMs = 30000
	}
	if rc.Multiplier == 0 {
		rc.Multiplier = 2.0
	}
}

// Endpoint is a webhook target
type Endpoint struct {
	URL     string
	Method  string
	Headers map[string]string
	Retry   RetryConfig
}

// SetDefaults fills in the method and retry policy
func (e *Endpoint) SetDefaults() {
	if e.Method == "" {
		e.Method = "POST"
	}
	e.Retry.SetDefaults()
}
