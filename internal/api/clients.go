package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/viniciusnovato/finance-sub000/internal/models"
)

// maxImportBytes bounds uploaded client CSV files.
const maxImportBytes = 10 << 20

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ClientFilter{
		Status: models.ClientStatus(strings.ToLower(strings.TrimSpace(q.Get("status")))),
		Search: strings.TrimSpace(q.Get("search")),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		writeBadRequest(w, "invalid status")
		return
	}

	clients, page, err := s.svc.ListClients(r.Context(), filter, pageFromQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, clients, page)
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var in models.ClientCreate
	if !decodeJSON(w, r, &in) {
		return
	}

	client, err := s.svc.CreateClient(r.Context(), &in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, client)
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	client, err := s.svc.GetClient(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, client)
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := s.svc.DeleteClient(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Client deleted"})
}

// handleImportClients accepts a CSV either as a multipart "file" field or as
// the raw request body.
func (s *Server) handleImportClients(w http.ResponseWriter, r *http.Request) {
	content, source, err := readUpload(w, r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.svc.ImportClients(r.Context(), content, source)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if result.Inserted == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, Response{Success: false, Error: "No valid clients found in CSV", Data: result})
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Clients imported", Data: result})
}

func readUpload(w http.ResponseWriter, r *http.Request) (string, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", "", errUpload("No file uploaded")
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return "", "", errUpload("Failed to read file")
		}
		return string(data), header.Filename, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", "", errUpload("Failed to read request body")
	}
	return string(data), "api", nil
}

type errUpload string

func (e errUpload) Error() string { return string(e) }
