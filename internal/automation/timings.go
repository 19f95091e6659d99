package automation

import "time"

// Timings holds every wait bound and settle pause used against the ERP UI
type Timings struct {
	DefaultWait   time.Duration
	LoginWait     time.Duration
	NavigateWait  time.Duration
	PopupProbe    time.Duration
	OverlayWait   time.Duration
	FieldProbe    time.Duration
	AlertProbe    time.Duration
	GridWait      time.Duration
	Confirmation  time.Duration
	DialogClose   time.Duration
	ClickSettle   time.Duration
	RecoverSettle time.Duration
	MenuSettle    time.Duration
	CommandSettle time.Duration
}

// DefaultTimings mirrors how slowly the ERP renders in production
func DefaultTimings() Timings {
	return Timings{
		DefaultWait:   15 * time.Second,
		LoginWait:     20 * time.Second,
		NavigateWait:  30 * time.Second,
		PopupProbe:    5 * time.Second,
		OverlayWait:   10 * time.Second,
		FieldProbe:    1 * time.Second,
		AlertProbe:    2 * time.Second,
		GridWait:      15 * time.Second,
		Confirmation:  90 * time.Second,
		DialogClose:   5 * time.Second,
		ClickSettle:   150 * time.Millisecond,
		RecoverSettle: 1 * time.Second,
		MenuSettle:    2 * time.Second,
		CommandSettle: 3 * time.Second,
	}
}
