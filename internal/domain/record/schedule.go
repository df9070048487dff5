package record

import (
	"fmt"
	"time"
)

const clockLayout = "15:04"

// WorkSchedule - рабочий интервал дня недели (1 - понедельник)
type WorkSchedule struct {
	DayOfWeek int    `json:"day_of_week"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Active    bool   `json:"active"`
}

func (w *WorkSchedule) Kind() Kind {
	return KindWorkSchedule
}

func (w *WorkSchedule) Validate() error {
	if w.DayOfWeek < 1 || w.DayOfWeek > 7 {
		return fmt.Errorf("day_of_week must be between 1 and 7")
	}

	start, err := time.Parse(clockLayout, w.Start)
	if err != nil {
		return fmt.Errorf("start must be HH:MM")
	}
	end, err := time.Parse(clockLayout, w.End)
	if err != nil {
		return fmt.Errorf("end must be HH:MM")
	}
	if !start.Before(end) {
		return fmt.Errorf("start must be before end")
	}

	return nil
}

// Covers сообщает, попадает ли момент в рабочий интервал
func (w *WorkSchedule) Covers(t time.Time) bool {
	if !w.Active || isoWeekday(t) != w.DayOfWeek {
		return false
	}

	start, err1 := time.Parse(clockLayout, w.Start)
	end, err2 := time.Parse(clockLayout, w.End)
	if err1 != nil || err2 != nil {
		return false
	}

	minutes := t.Hour()*60 + t.Minute()
	return minutes >= start.Hour()*60+start.Minute() && minutes < end.Hour()*60+end.Minute()
}

func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
