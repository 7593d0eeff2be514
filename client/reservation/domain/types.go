package domain

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

func (s Status) IsDecision() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Party references the client or cleaner side of a booking. The API returns
// either a bare id string or an embedded profile object depending on the
// endpoint, so unmarshalling accepts both.
type Party struct {
	ID   string `json:"_id"`
	Name string `json:"name,omitempty"`
}

func (p *Party) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		p.ID = id
		p.Name = ""
		return nil
	}
	type embedded Party
	var obj embedded
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*p = Party(obj)
	return nil
}

// Reservation is a booking between a client and a cleaner. Date is the wire
// format the API uses: an ISO date, optionally carrying a time-of-day part
// that day-level availability ignores.
type Reservation struct {
	ID       string `json:"_id"`
	Cleaner  Party  `json:"cleaner"`
	Client   Party  `json:"client"`
	Date     string `json:"date"`
	Duration int    `json:"duration"`
	Status   Status `json:"status"`
	Notes    string `json:"notes,omitempty"`
}

const dayFormat = "2006-01-02"

// Day extracts the calendar day from the reservation date.
func (r Reservation) Day() (time.Time, bool) {
	raw := r.Date
	if len(raw) > len(dayFormat) {
		raw = raw[:len(dayFormat)]
	}
	day, err := time.Parse(dayFormat, raw)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

type CreateInput struct {
	CleanerID string `json:"cleanerId"`
	Date      string `json:"date"`
	Duration  int    `json:"duration"`
	Notes     string `json:"notes,omitempty"`
}

// DayAvailability marks one calendar day of the look-ahead window.
type DayAvailability struct {
	Date      string
	Available bool
}
