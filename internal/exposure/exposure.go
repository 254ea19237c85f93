// Package exposure merges breach and broker-scan records into one
// chronological sequence, classifies each item's resolution status and
// summarizes the result for the dashboard. Everything here is pure.
package exposure

import (
	"strconv"
	"time"

	"exposurewatch/internal/domain"
)

// Kind is the origin of an Exposure.
type Kind uint8

const (
	KindBreach Kind = iota + 1
	KindScanRecord
)

func (k Kind) String() string {
	switch k {
	case KindBreach:
		return "breach"
	case KindScanRecord:
		return "scan_record"
	}
	return "unknown"
}

// Exposure is a tagged union over a breach and a broker-scan record. Exactly
// one payload is set, selected by Kind; use the constructors.
type Exposure struct {
	kind   Kind
	breach *domain.BreachRecord
	record *domain.ScanRecord
}

func FromBreach(b domain.BreachRecord) Exposure {
	return Exposure{kind: KindBreach, breach: &b}
}

func FromScanRecord(r domain.ScanRecord) Exposure {
	return Exposure{kind: KindScanRecord, record: &r}
}

func (e Exposure) Kind() Kind { return e.kind }

// Breach returns the breach payload when the exposure is a breach.
func (e Exposure) Breach() (domain.BreachRecord, bool) {
	if e.kind != KindBreach || e.breach == nil {
		return domain.BreachRecord{}, false
	}
	return *e.breach, true
}

// ScanRecord returns the record payload when the exposure is a broker listing.
func (e Exposure) ScanRecord() (domain.ScanRecord, bool) {
	if e.kind != KindScanRecord || e.record == nil {
		return domain.ScanRecord{}, false
	}
	return *e.record, true
}

// Timestamp is the instant the exposure was discovered: the added date for
// breaches and the created time for scan records, both in UTC.
func (e Exposure) Timestamp() time.Time {
	switch e.kind {
	case KindBreach:
		return e.breach.AddedDate.UTC()
	case KindScanRecord:
		return e.record.CreatedAt.UTC()
	}
	return time.Time{}
}

// Key is stable across reads and unique within one subscriber's exposures.
func (e Exposure) Key() string {
	switch e.kind {
	case KindBreach:
		return "breach-" + strconv.FormatInt(e.breach.ID, 10)
	case KindScanRecord:
		return "scan-" + string(e.record.Provider) + "-" + e.record.RemoteID
	}
	return ""
}
