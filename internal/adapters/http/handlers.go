package httpadapter

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime/types"

	"exposurewatch/internal/domain"
	"exposurewatch/internal/services/dashboard"
)

func (s *Server) GetHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) PostSubscriberSync(w http.ResponseWriter, r *http.Request, id int64) {
	results, err := s.reconciler.SyncSubscriber(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSyncResponse(results))
}

func (s *Server) GetScanProgress(w http.ResponseWriter, r *http.Request, id int64) {
	p, err := s.reconciler.RefreshLatest(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{
		Success:   true,
		Provider:  p.Key.Provider,
		ScanID:    p.ScanID,
		Status:    p.Status,
		Refreshed: p.Refreshed,
	})
}

type enrollRequest struct {
	FirstName   string     `json:"firstName"`
	MiddleName  string     `json:"middleName"`
	LastName    string     `json:"lastName"`
	NameSuffix  string     `json:"nameSuffix"`
	City        string     `json:"city"`
	State       string     `json:"state"`
	DateOfBirth types.Date `json:"dateOfBirth"`
}

func (s *Server) PostSubscriberScan(w http.ResponseWriter, r *http.Request, id int64, params CountryParams) {
	var body enrollRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid body: %v", err)})
		return
	}
	profile := domain.ScanProfile{
		FirstName:   strings.TrimSpace(body.FirstName),
		MiddleName:  strings.TrimSpace(body.MiddleName),
		LastName:    strings.TrimSpace(body.LastName),
		NameSuffix:  strings.TrimSpace(body.NameSuffix),
		City:        strings.TrimSpace(body.City),
		State:       strings.TrimSpace(body.State),
		DateOfBirth: body.DateOfBirth.Time,
	}
	scan, err := s.reconciler.Enroll(r.Context(), id, s.country(r, params.Country), profile)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, scanResponse{
		Success:  true,
		Provider: scan.Provider,
		ScanID:   scan.RemoteID,
		Status:   scan.Status,
	})
}

func (s *Server) GetDashboard(w http.ResponseWriter, r *http.Request, id int64, params GetDashboardParams) {
	req := dashboard.Request{
		SubscriberID: id,
		Country:      s.country(r, params.Country),
		Sync:         s.syncOnDashboard,
	}
	if params.Tab != nil {
		req.Tab = *params.Tab
	}
	if params.Sync != nil {
		req.Sync = *params.Sync
	}
	view, err := s.dashboards.Dashboard(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDashboardResponse(view))
}

func (s *Server) GetNextStep(w http.ResponseWriter, r *http.Request, id int64, params CountryParams) {
	step, err := s.dashboards.NextStep(r.Context(), id, s.country(r, params.Country))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) PostResolveRecord(w http.ResponseWriter, r *http.Request, id int64, provider string, recordID string) {
	p, err := domain.ParseProvider(provider)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	owned, err := s.resolutions.RecordBelongsTo(r.Context(), id, p, recordID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !owned {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}
	if err := s.resolutions.MarkRecordResolved(r.Context(), p, recordID, s.now()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, errorBody{Success: true})
}

// webhookEvent is the notification body both providers send when a
// subscriber's scan or records change. Only the identifier is used.
type webhookEvent struct {
	CustomerID string `json:"customerId"`
	ProfileID  *int64 `json:"profileId"`
}

type webhookResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
}

const webhookSecretHeader = "X-Webhook-Secret"

func (s *Server) PostWebhook(w http.ResponseWriter, r *http.Request, provider string) {
	if !s.webhookAuthorized(r) {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}
	p, err := domain.ParseProvider(provider)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var ev webhookEvent
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid body: %v", err)})
		return
	}
	key, err := webhookKey(p, ev)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if _, err := s.subscribers.SubscriberByProviderKey(r.Context(), key); err != nil {
		s.writeError(w, r, err)
		return
	}
	jobID, err := s.jobs.Enqueue(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jobMetrics.IncJobsEnqueued(string(p))
	s.log.Info().Str("provider", string(p)).Str("provider_key", key.Value).Str("job_id", jobID).Msg("sync job queued")
	writeJSON(w, http.StatusAccepted, webhookResponse{Success: true, JobID: jobID})
}

// webhookAuthorized accepts the shared secret in X-Webhook-Secret or as a
// bearer token. An empty secret disables the endpoint.
func (s *Server) webhookAuthorized(r *http.Request) bool {
	if s.webhookSecret == "" {
		return false
	}
	got := r.Header.Get(webhookSecretHeader)
	if got == "" {
		got, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookSecret)) == 1
}

func webhookKey(p domain.Provider, ev webhookEvent) (domain.ProviderKey, error) {
	switch p {
	case domain.ProviderBrokerScan:
		if ev.CustomerID == "" {
			return domain.ProviderKey{}, errors.New("customerId is required")
		}
		return domain.BrokerCustomerKey(ev.CustomerID), nil
	case domain.ProviderLegacyScan:
		if ev.ProfileID == nil {
			return domain.ProviderKey{}, errors.New("profileId is required")
		}
		return domain.LegacyProfileKey(*ev.ProfileID), nil
	}
	return domain.ProviderKey{}, domain.ErrUnknownProvider
}
