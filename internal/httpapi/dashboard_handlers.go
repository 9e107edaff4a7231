package httpapi

import "net/http"

func (a *API) dashboard(w http.ResponseWriter, r *http.Request) {
	report, err := a.svc.Summary(r.Context())
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) dashboardForTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathID(r, "tenant")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	report, err := a.svc.SummaryForTenant(r.Context(), tenantID)
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
