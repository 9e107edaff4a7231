package httpapi

import (
	"net/http"
	"strconv"

	"clearbill.io/internal/claims"
	"clearbill.io/internal/ledger"
)

func (a *API) listStatuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Statuses())
}

func (a *API) listClaims(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.ListClaims(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getClaim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.svc.GetClaim(r.Context(), id)
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) createClaim(w http.ResponseWriter, r *http.Request) {
	var in claims.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.svc.CreateClaim(r.Context(), in)
	if err != nil {
		writeFault(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/claims/"+strconv.FormatInt(c.ID, 10))
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) updateClaim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var patch claims.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.UpdateClaim(r.Context(), id, patch); err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (a *API) deleteClaim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.DeleteClaim(r.Context(), id); err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) listPayments(w http.ResponseWriter, r *http.Request) {
	claimKey := r.URL.Query().Get("claim_key")
	if claimKey == "" {
		writeError(w, r, http.StatusBadRequest, "claim_key query parameter is required")
		return
	}
	var tenantID int64
	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "tenant_id must be an integer")
			return
		}
		tenantID = v
	}
	list, err := a.svc.ListPayments(r.Context(), tenantID, claimKey)
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) recordPayment(w http.ResponseWriter, r *http.Request) {
	var e ledger.Event
	if err := decodeJSON(w, r, &e); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	posted, err := a.svc.RecordPayment(r.Context(), e)
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, posted)
}

func (a *API) voidPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.VoidPayment(r.Context(), id); err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "voided"})
}
