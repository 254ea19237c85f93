package httpadapter

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface lists one method per route, in the shape oapi-codegen
// emits for chi servers: path and query parameters arrive bound and typed.
type ServerInterface interface {
	// (GET /healthz)
	GetHealthz(w http.ResponseWriter, r *http.Request)
	// (POST /v1/subscribers/{id}/sync)
	PostSubscriberSync(w http.ResponseWriter, r *http.Request, id int64)
	// (GET /v1/subscribers/{id}/scan-progress)
	GetScanProgress(w http.ResponseWriter, r *http.Request, id int64)
	// (POST /v1/subscribers/{id}/scans)
	PostSubscriberScan(w http.ResponseWriter, r *http.Request, id int64, params CountryParams)
	// (GET /v1/subscribers/{id}/dashboard)
	GetDashboard(w http.ResponseWriter, r *http.Request, id int64, params GetDashboardParams)
	// (GET /v1/subscribers/{id}/next-step)
	GetNextStep(w http.ResponseWriter, r *http.Request, id int64, params CountryParams)
	// (POST /v1/subscribers/{id}/scan-records/{provider}/{recordID}/resolve)
	PostResolveRecord(w http.ResponseWriter, r *http.Request, id int64, provider string, recordID string)
	// (POST /v1/webhooks/{provider})
	PostWebhook(w http.ResponseWriter, r *http.Request, provider string)
}

type CountryParams struct {
	Country *string `form:"country,omitempty" json:"country,omitempty"`
}

type GetDashboardParams struct {
	Country *string `form:"country,omitempty" json:"country,omitempty"`
	Tab     *string `form:"tab,omitempty" json:"tab,omitempty"`
	Sync    *bool   `form:"sync,omitempty" json:"sync,omitempty"`
}

// InvalidParamError is a path or query parameter that failed to bind.
type InvalidParamError struct {
	Param string
	Err   error
}

func (e *InvalidParamError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %v", e.Param, e.Err)
}

func (e *InvalidParamError) Unwrap() error { return e.Err }

type wrapper struct {
	handler ServerInterface
	onError func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerFromMux mounts si's routes on r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	w := &wrapper{handler: si, onError: func(w http.ResponseWriter, _ *http.Request, err error) {
		writeJSON(w, http.StatusBadRequest, errorBody{Success: false, Error: err.Error()})
	}}
	r.Get("/healthz", w.handler.GetHealthz)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/subscribers/{id}/sync", w.PostSubscriberSync)
		r.Get("/subscribers/{id}/scan-progress", w.GetScanProgress)
		r.Post("/subscribers/{id}/scans", w.PostSubscriberScan)
		r.Get("/subscribers/{id}/dashboard", w.GetDashboard)
		r.Get("/subscribers/{id}/next-step", w.GetNextStep)
		r.Post("/subscribers/{id}/scan-records/{provider}/{recordID}/resolve", w.PostResolveRecord)
		r.Post("/webhooks/{provider}", w.PostWebhook)
	})
	return r
}

func pathParam(r *http.Request, name string, dest any) error {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false})
	if err != nil {
		return &InvalidParamError{Param: name, Err: err}
	}
	return nil
}

func queryParam(r *http.Request, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		return &InvalidParamError{Param: name, Err: err}
	}
	return nil
}

func (w *wrapper) subscriberID(rw http.ResponseWriter, r *http.Request) (int64, bool) {
	var id int64
	if err := pathParam(r, "id", &id); err != nil {
		w.onError(rw, r, err)
		return 0, false
	}
	return id, true
}

func (w *wrapper) countryParams(rw http.ResponseWriter, r *http.Request) (CountryParams, bool) {
	var params CountryParams
	if err := queryParam(r, "country", &params.Country); err != nil {
		w.onError(rw, r, err)
		return params, false
	}
	return params, true
}

func (w *wrapper) PostSubscriberSync(rw http.ResponseWriter, r *http.Request) {
	if id, ok := w.subscriberID(rw, r); ok {
		w.handler.PostSubscriberSync(rw, r, id)
	}
}

func (w *wrapper) GetScanProgress(rw http.ResponseWriter, r *http.Request) {
	if id, ok := w.subscriberID(rw, r); ok {
		w.handler.GetScanProgress(rw, r, id)
	}
}

func (w *wrapper) PostSubscriberScan(rw http.ResponseWriter, r *http.Request) {
	id, ok := w.subscriberID(rw, r)
	if !ok {
		return
	}
	if params, ok := w.countryParams(rw, r); ok {
		w.handler.PostSubscriberScan(rw, r, id, params)
	}
}

func (w *wrapper) GetDashboard(rw http.ResponseWriter, r *http.Request) {
	id, ok := w.subscriberID(rw, r)
	if !ok {
		return
	}
	var params GetDashboardParams
	for _, p := range []struct {
		name string
		dest any
	}{
		{"country", &params.Country},
		{"tab", &params.Tab},
		{"sync", &params.Sync},
	} {
		if err := queryParam(r, p.name, p.dest); err != nil {
			w.onError(rw, r, err)
			return
		}
	}
	w.handler.GetDashboard(rw, r, id, params)
}

func (w *wrapper) GetNextStep(rw http.ResponseWriter, r *http.Request) {
	id, ok := w.subscriberID(rw, r)
	if !ok {
		return
	}
	if params, ok := w.countryParams(rw, r); ok {
		w.handler.GetNextStep(rw, r, id, params)
	}
}

func (w *wrapper) PostResolveRecord(rw http.ResponseWriter, r *http.Request) {
	id, ok := w.subscriberID(rw, r)
	if !ok {
		return
	}
	var provider, recordID string
	if err := pathParam(r, "provider", &provider); err != nil {
		w.onError(rw, r, err)
		return
	}
	if err := pathParam(r, "recordID", &recordID); err != nil {
		w.onError(rw, r, err)
		return
	}
	w.handler.PostResolveRecord(rw, r, id, provider, recordID)
}

func (w *wrapper) PostWebhook(rw http.ResponseWriter, r *http.Request) {
	var provider string
	if err := pathParam(r, "provider", &provider); err != nil {
		w.onError(rw, r, err)
		return
	}
	w.handler.PostWebhook(rw, r, provider)
}
