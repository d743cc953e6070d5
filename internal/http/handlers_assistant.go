package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// handleAnalyzeStatement accepts a multipart "file" field or a raw body
// named by the filename query parameter. Nothing is saved.
func (s *Server) handleAnalyzeStatement(w http.ResponseWriter, r *http.Request, ownerID string) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	filename, content, err := readUpload(r)
	if err != nil {
		s.writeError(w, r, ownerID, log.OpImport, err, false)
		return
	}
	analysis, err := s.svc.Imports.Analyze(r.Context(), ownerID, filename, content)
	if err != nil {
		s.writeError(w, r, ownerID, log.OpImport, err, false)
		return
	}
	NewJSONResponse().Data(analysis).Write(w)
}

func readUpload(r *http.Request) (string, []byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, uploadError(err)
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			return "", nil, uploadError(err)
		}
		return header.Filename, content, nil
	}

	filename := sanitizeInput(r.URL.Query().Get("filename"))
	if filename == "" {
		return "", nil, fmt.Errorf("%w: filename query parameter is required", core.ErrInvalidArgument)
	}
	content, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, uploadError(err)
	}
	return filename, content, nil
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: file exceeds %d bytes", core.ErrInvalidArgument, tooLarge.Limit)
	}
	return fmt.Errorf("%w: could not read upload: %v", core.ErrInvalidArgument, err)
}

func (s *Server) handleConfirmImport(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req confirmRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, ownerID, log.OpImport, err, true)
		return
	}
	result, err := s.svc.Imports.Confirm(r.Context(), ownerID, req.Transactions)
	if err != nil {
		s.writeError(w, r, ownerID, log.OpImport, err, true)
		return
	}
	status := http.StatusCreated
	if result.Count == 0 {
		status = http.StatusOK
	}
	NewJSONResponse().Status(status).Data(result).Write(w)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req chatRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, ownerID, "chat", err, true)
		return
	}
	reply, err := s.svc.Chat.Reply(r.Context(), ownerID, strings.TrimSpace(req.Message), req.History)
	if err != nil {
		s.writeError(w, r, ownerID, "chat", err, true)
		return
	}
	NewJSONResponse().Data(map[string]string{"response": reply}).Write(w)
}
