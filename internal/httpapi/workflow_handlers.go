package httpapi

import (
	"net/http"
	"strconv"

	"clearbill.io/internal/files"
	"clearbill.io/internal/notes"
	"clearbill.io/internal/providers"
	"clearbill.io/internal/tracking"
)

func (a *API) listNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := a.svc.ListNotes(r.Context(), notes.Filter{
		ClaimKey: q.Get("claim_key"),
		Module:   q.Get("module"),
		RefID:    q.Get("ref_id"),
	})
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) appendNote(w http.ResponseWriter, r *http.Request) {
	var n notes.Note
	if err := decodeJSON(w, r, &n); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	appended, err := a.svc.AppendNote(r.Context(), n)
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appended)
}

func (a *API) deleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.DeleteNote(r.Context(), id); err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) listProviders(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.ListProviders(r.Context())
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) createProvider(w http.ResponseWriter, r *http.Request) {
	var p providers.Provider
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	created, err := a.svc.CreateProvider(r.Context(), p)
	if err != nil {
		writeFault(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/providers/"+strconv.FormatInt(created.ID, 10))
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) updateProvider(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var patch providers.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.UpdateProvider(r.Context(), id, patch); err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (a *API) deleteProvider(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.DeleteProvider(r.Context(), id); err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) listTracking(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.ListTracking(r.Context(), r.PathValue("kind"), r.URL.Query().Get("status"))
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) createTracking(w http.ResponseWriter, r *http.Request) {
	var rec tracking.Record
	if err := decodeJSON(w, r, &rec); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	created, err := a.svc.CreateTracking(r.Context(), r.PathValue("kind"), rec)
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) updateTracking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var patch tracking.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.UpdateTracking(r.Context(), r.PathValue("kind"), id, patch); err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (a *API) deleteTracking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.DeleteTracking(r.Context(), r.PathValue("kind"), id); err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) listFiles(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.ListFiles(r.Context())
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) registerFile(w http.ResponseWriter, r *http.Request) {
	var rec files.Record
	if err := decodeJSON(w, r, &rec); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	registered, err := a.svc.RegisterFile(r.Context(), rec)
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registered)
}

func (a *API) deleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.DeleteFile(r.Context(), id); err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
