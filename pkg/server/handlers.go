package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/nstogner/listingwriter/pkg/domain"
)

const maxUploadBytes = 64 << 20

// --- Session ---

type sessionInfo struct {
	Active    bool   `json:"active"`
	SessionID string `json:"session_id,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	Confirmed bool   `json:"confirmed,omitempty"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session()
	if err != nil {
		s.jsonResponse(w, http.StatusOK, sessionInfo{})
		return
	}
	s.jsonResponse(w, http.StatusOK, sessionInfo{
		Active:    true,
		SessionID: sess.ID,
		Provider:  sess.Provider.Name(),
		Model:     sess.Resolution.Model,
		Confirmed: sess.Resolution.Confirmed,
	})
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	req.APIKey = strings.TrimSpace(req.APIKey)
	if req.APIKey == "" {
		s.errorResponse(w, http.StatusBadRequest, errors.New("api_key is required"))
		return
	}

	// Swapping the session under a running job would change its model.
	if !s.busy.TryLock() {
		s.errorResponse(w, http.StatusConflict, ErrBusy)
		return
	}
	defer s.busy.Unlock()

	sess, err := s.open(r.Context(), req.APIKey)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("key setup failed: %w", err))
		return
	}
	s.SetSession(sess)
	s.handleGetSession(w, r)
}

// --- Models ---

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session()
	if err != nil {
		s.errorResponse(w, http.StatusPreconditionRequired, err)
		return
	}
	models, err := sess.Provider.List(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusBadGateway, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, models)
}

// --- Posts ---

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	// The session is read under busy so it cannot be replaced mid-job.
	if !s.busy.TryLock() {
		s.errorResponse(w, http.StatusConflict, ErrBusy)
		return
	}
	defer s.busy.Unlock()

	sess, err := s.session()
	if err != nil {
		s.errorResponse(w, http.StatusPreconditionRequired, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	listing := domain.Listing{
		Price:    r.FormValue("price"),
		Location: r.FormValue("location"),
		Features: r.FormValue("features"),
	}
	images, err := readImages(r.MultipartForm.File["images"])
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if len(images) == 0 {
		s.errorResponse(w, http.StatusBadRequest, errors.New("at least one image is required"))
		return
	}

	post := sess.Write(r.Context(), listing, images, nil)
	s.jsonResponse(w, http.StatusOK, post)
}

func readImages(headers []*multipart.FileHeader) ([]domain.Image, error) {
	images := make([]domain.Image, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}
		images = append(images, domain.NewImage(fh.Filename, data))
	}
	return images, nil
}
