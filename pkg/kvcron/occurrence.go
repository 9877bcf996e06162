package kvcron

import (
	"encoding/json"
	"time"

	"github.com/dmitrymomot/kvcron/pkg/schedule"
)

// occurrence is the queue payload of one scheduled firing.
type occurrence struct {
	Date     time.Time     `json:"date"`
	Schedule schedule.Spec `json:"schedule"`
	Nonce    string        `json:"nonce"`
	Name     string        `json:"name"`
	Epoch    string        `json:"epoch,omitempty"`
	// Backoff delays in milliseconds.
	Backoff []int64 `json:"backoffSchedule,omitempty"`
}

// record is stored at the job key while the occurrence is live.
type record struct {
	Amount *uint64 `json:"amount,omitempty"`
	Epoch  string  `json:"epoch,omitempty"`
}

// occurrenceID is the part of a payload that marks it as an occurrence.
type occurrenceID struct {
	Nonce string `json:"nonce"`
	Name  string `json:"name"`
}

// decodeOccurrence reports whether data is an occurrence payload. A payload
// with a string nonce and name is an occurrence even when the rest does not
// decode; that error is returned with the identified occurrence.
func decodeOccurrence(data []byte) (occurrence, bool, error) {
	var id occurrenceID
	if err := json.Unmarshal(data, &id); err != nil || id.Nonce == "" || id.Name == "" {
		return occurrence{}, false, nil
	}

	var occ occurrence
	if err := json.Unmarshal(data, &occ); err != nil {
		return occurrence{Nonce: id.Nonce, Name: id.Name}, true, err
	}
	return occ, true, nil
}

// current reports whether the delivery belongs to the firing the record
// points at. Payloads or records without an epoch always match.
func (r record) current(occ occurrence) bool {
	return r.Epoch == "" || occ.Epoch == "" || r.Epoch == occ.Epoch
}

func backoffToMillis(delays []time.Duration) []int64 {
	if len(delays) == 0 {
		return nil
	}
	out := make([]int64, len(delays))
	for i, d := range delays {
		out[i] = d.Milliseconds()
	}
	return out
}

func backoffFromMillis(ms []int64) []time.Duration {
	if len(ms) == 0 {
		return nil
	}
	out := make([]time.Duration, len(ms))
	for i, v := range ms {
		out[i] = time.Duration(v) * time.Millisecond
	}
	return out
}
