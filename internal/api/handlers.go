package api

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/nexusacademy/inscriptio/internal/config"
	"github.com/nexusacademy/inscriptio/internal/ingest"
	"github.com/nexusacademy/inscriptio/internal/model"
)

const (
	msgSuccess      = "Félicitations ! Votre inscription a été enregistrée avec succès."
	msgProofMissing = "La preuve de paiement est obligatoire."
	msgStorageDown  = "Une erreur technique est survenue. Veuillez réessayer."
)

// handleFormationSubmit accepts the legacy multipart form: name/nom,
// whatsapp, optional baron-id/id_nexus, and the proof-upload file.
func (s *Server) handleFormationSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	if err := r.ParseMultipartForm(s.cfg.MaxFileSize); err != nil {
		s.respondForm(w, r, http.StatusBadRequest, "", "formulaire multipart attendu")
		return
	}
	fields := ingest.Fields{
		Nom:      firstValue(r, "name", "nom"),
		Whatsapp: r.FormValue("whatsapp"),
		IDNexus:  firstValue(r, "baron-id", "id_nexus"),
		Cohorte:  r.FormValue("cohorte"),
	}

	var payload *ingest.FilePayload
	file, header, err := r.FormFile("proof-upload")
	if err == nil {
		defer file.Close()
		data, readErr := io.ReadAll(file)
		if readErr != nil {
			s.respondForm(w, r, http.StatusBadRequest, "", "lecture du fichier impossible")
			return
		}
		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		payload = &ingest.FilePayload{
			Name:        header.Filename,
			ContentType: contentType,
			Data:        data,
		}
	}

	sub, err := s.formPipeline.Submit(r.Context(), fields, payload)
	if err != nil {
		status, msg := ingestErrorResponse(err)
		s.respondForm(w, r, status, "", msg)
		return
	}
	if s.OnIngest != nil && sub.ProofKey != nil {
		s.OnIngest(r.Context(), sub)
	}
	s.respondForm(w, r, http.StatusOK, msgSuccess, "")
}

// respondForm answers the form endpoint either as JSON or as a redirect back
// to the form page, depending on the configured deployment flavor.
func (s *Server) respondForm(w http.ResponseWriter, r *http.Request, status int, message, errMsg string) {
	if s.cfg.ResponseFormat == config.ResponseRedirect {
		q := url.Values{}
		if message != "" {
			q.Set("message", message)
		}
		if errMsg != "" {
			q.Set("error", errMsg)
		}
		http.Redirect(w, r, "/formation?"+q.Encode(), http.StatusSeeOther)
		return
	}
	if errMsg != "" {
		writeError(w, status, errMsg)
		return
	}
	writeJSON(w, status, map[string]any{"success": true, "message": message})
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	cle := r.URL.Query().Get("cle")
	if !hmac.Equal([]byte(cle), []byte(s.cfg.AdminKey)) {
		http.Error(w, "Accès interdit", http.StatusForbidden)
		return
	}
	subs, err := s.engine.List(r.Context(), "")
	if err != nil {
		// The dashboard degrades to an empty list rather than crashing.
		s.logger.Error("admin listing failed", "error", err)
		subs = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"inscriptions": s.withProofURLs(r.Context(), subs)})
}

type registerRequest struct {
	Nom      string `json:"nom"`
	Prenom   string `json:"prenom"`
	Whatsapp string `json:"whatsapp"`
	IDBE     string `json:"id_be"`
	Cohorte  string `json:"cohorte"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "corps JSON invalide")
		return
	}
	fields := ingest.Fields{
		Nom:      strings.TrimSpace(req.Nom + " " + req.Prenom),
		Whatsapp: req.Whatsapp,
		IDNexus:  req.IDBE,
		Cohorte:  req.Cohorte,
	}
	sub, err := s.apiPipeline.Submit(r.Context(), fields, nil)
	if err != nil {
		status, msg := ingestErrorResponse(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": sub})
}

func (s *Server) handleInscrits(w http.ResponseWriter, r *http.Request) {
	cohorte := r.URL.Query().Get("cohorte")
	if cohorte == "" {
		writeError(w, http.StatusBadRequest, "paramètre cohorte requis")
		return
	}
	subs, err := s.engine.List(r.Context(), cohorte)
	if err != nil {
		s.logger.Error("inscrits listing failed", "cohorte", cohorte, "error", err)
		writeError(w, http.StatusInternalServerError, "lecture des inscriptions impossible")
		return
	}
	writeJSON(w, http.StatusOK, s.withProofURLs(r.Context(), subs))
}

func (s *Server) handleCohortes(w http.ResponseWriter, r *http.Request) {
	labels, err := s.engine.Cohortes(r.Context())
	if err != nil {
		s.logger.Error("cohortes listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "lecture des cohortes impossible")
		return
	}
	if labels == nil {
		labels = []string{}
	}
	writeJSON(w, http.StatusOK, labels)
}

func (s *Server) handleExportExcel(w http.ResponseWriter, r *http.Request) {
	cohorte := r.URL.Query().Get("cohorte")
	if cohorte == "" {
		writeError(w, http.StatusBadRequest, "paramètre cohorte requis")
		return
	}
	data, err := s.engine.Excel(r.Context(), cohorte)
	if err != nil {
		s.logger.Error("excel export failed", "cohorte", cohorte, "error", err)
		writeError(w, http.StatusInternalServerError, "génération du fichier impossible")
		return
	}
	filename := fmt.Sprintf("inscriptions_%s.xlsx", cohorte)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// withProofURLs resolves each stored proof key to a retrievable URL. Rows are
// copied; the slice from the engine is never mutated in place. A resolution
// failure leaves that row's URL empty rather than failing the listing.
func (s *Server) withProofURLs(ctx context.Context, subs []model.Submission) []model.Submission {
	out := make([]model.Submission, 0, len(subs))
	for _, sub := range subs {
		if sub.ProofKey != nil && s.proofs != nil {
			link, err := s.proofs.ProofURL(ctx, *sub.ProofKey)
			if err != nil {
				s.logger.Warn("resolve proof url", "key", *sub.ProofKey, "error", err)
			} else {
				sub.ProofURL = link
			}
		}
		out = append(out, sub)
	}
	return out
}

// ingestErrorResponse maps the pipeline taxonomy onto HTTP status + message.
func ingestErrorResponse(err error) (int, string) {
	var ingestErr *ingest.Error
	if !errors.As(err, &ingestErr) {
		return http.StatusInternalServerError, msgStorageDown
	}
	switch ingestErr.Kind {
	case ingest.KindInvalidInput:
		return http.StatusBadRequest, "champs manquants: " + strings.Join(ingestErr.Missing, ", ")
	case ingest.KindMissingProof:
		return http.StatusBadRequest, msgProofMissing
	case ingest.KindStorageUnavailable, ingest.KindPersistenceFailed:
		return http.StatusInternalServerError, msgStorageDown
	default:
		return http.StatusInternalServerError, msgStorageDown
	}
}

func firstValue(r *http.Request, keys ...string) string {
	for _, key := range keys {
		if v := r.FormValue(key); v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
