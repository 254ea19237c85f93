package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"exposurewatch/internal/adapters/apiclient"
	"exposurewatch/internal/domain"
	"exposurewatch/internal/exposure"
	"exposurewatch/internal/remediation"
	"exposurewatch/internal/services/dashboard"
	"exposurewatch/internal/services/reconcile"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps service errors onto status codes. Persistence failures
// are reported as a non-fatal {"success":false} without internal detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		apiErr   *apiclient.APIError
		storeErr *reconcile.StoreError
	)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, reconcile.ErrInvalidProfile), errors.Is(err, domain.ErrUnknownProvider):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrNotEligible):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.As(err, &apiErr), errors.Is(err, apiclient.ErrNotConfigured):
		s.log.Warn().Err(err).Str("path", r.URL.Path).Msg("provider request failed")
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "provider unavailable"})
	case errors.As(err, &storeErr):
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("store failure")
		writeJSON(w, http.StatusInternalServerError, errorBody{})
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{})
	}
}

type syncResult struct {
	Provider       domain.Provider `json:"provider"`
	Skipped        bool            `json:"skipped,omitempty"`
	Stale          bool            `json:"stale"`
	ScansChanged   int             `json:"scansChanged"`
	RecordsChanged int             `json:"recordsChanged"`
}

type syncResponse struct {
	Success bool         `json:"success"`
	Results []syncResult `json:"results"`
}

func newSyncResponse(results []reconcile.Result) syncResponse {
	out := syncResponse{Success: true, Results: make([]syncResult, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, syncResult{
			Provider:       r.Key.Provider,
			Skipped:        r.Skipped,
			Stale:          r.Stale(),
			ScansChanged:   r.ScansChanged,
			RecordsChanged: r.RecordsChanged,
		})
	}
	return out
}

type progressResponse struct {
	Success   bool              `json:"success"`
	Provider  domain.Provider   `json:"provider"`
	ScanID    string            `json:"scanId"`
	Status    domain.ScanStatus `json:"status"`
	Refreshed bool              `json:"refreshed"`
}

type scanResponse struct {
	Success  bool              `json:"success"`
	Provider domain.Provider   `json:"provider"`
	ScanID   string            `json:"scanId"`
	Status   domain.ScanStatus `json:"status"`
}

type exposureItem struct {
	Key        string          `json:"key"`
	Kind       string          `json:"kind"`
	Status     exposure.Status `json:"status"`
	Timestamp  time.Time       `json:"timestamp"`
	DataPoints int             `json:"dataPoints"`

	// Breach fields.
	BreachName  string             `json:"breachName,omitempty"`
	Domain      string             `json:"domain,omitempty"`
	DataClasses []domain.DataClass `json:"dataClasses,omitempty"`

	// Broker listing fields.
	Provider   domain.Provider `json:"provider,omitempty"`
	RecordID   string          `json:"recordId,omitempty"`
	BrokerName string          `json:"brokerName,omitempty"`
	BrokerURL  string          `json:"brokerUrl,omitempty"`
	RecordURL  string          `json:"recordUrl,omitempty"`
	FullName   string          `json:"fullName,omitempty"`
	Age        string          `json:"age,omitempty"`
}

func newExposureItem(c exposure.Classified) exposureItem {
	item := exposureItem{
		Key:        c.Key(),
		Kind:       c.Kind().String(),
		Status:     c.Status,
		Timestamp:  c.Timestamp(),
		DataPoints: exposure.DataPointsOf(c.Exposure).Total(),
	}
	if b, ok := c.Breach(); ok {
		item.BreachName = b.Name
		item.Domain = b.Domain
		item.DataClasses = b.DataClasses
	}
	if rec, ok := c.ScanRecord(); ok {
		item.Provider = rec.Provider
		item.RecordID = rec.RemoteID
		item.BrokerName = rec.BrokerName
		item.BrokerURL = rec.BrokerURL
		item.RecordURL = rec.RecordURL
		item.FullName = rec.FullName
		item.Age = rec.Age
	}
	return item
}

type tabCounts struct {
	ActionNeeded int `json:"actionNeeded"`
	Fixed        int `json:"fixed"`
}

type dashboardResponse struct {
	SubscriberID  int64               `json:"subscriberId"`
	Tab           exposure.Tab        `json:"tab"`
	Stale         bool                `json:"stale"`
	Summary       exposure.Summary    `json:"summary"`
	TopCategories []exposure.Category `json:"topCategories"`
	Counts        tabCounts           `json:"counts"`
	Exposures     []exposureItem      `json:"exposures"`
	NextStep      remediation.Step    `json:"nextStep"`
}

func newDashboardResponse(v dashboard.View) dashboardResponse {
	out := dashboardResponse{
		SubscriberID:  v.SubscriberID,
		Tab:           v.Tab,
		Stale:         v.Stale,
		Summary:       v.Summary,
		TopCategories: v.TopCategories,
		Counts:        tabCounts{ActionNeeded: v.ActionNeededCount, Fixed: v.FixedCount},
		Exposures:     make([]exposureItem, 0, len(v.Exposures)),
		NextStep:      v.NextStep,
	}
	if out.TopCategories == nil {
		out.TopCategories = []exposure.Category{}
	}
	for _, c := range v.Exposures {
		out.Exposures = append(out.Exposures, newExposureItem(c))
	}
	return out
}
