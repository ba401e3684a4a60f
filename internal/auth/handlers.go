package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ClientRequest is the body of client registration and token requests
type ClientRequest struct {
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

// TokenResponse is returned by the token endpoint
type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handlers holds the HTTP handlers for auth endpoints
type Handlers struct {
	service Service
}

// NewHandlers creates a new Handlers instance
func NewHandlers(service Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterClient handles POST /auth/clients
func (h *Handlers) RegisterClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Secret == "" {
		respondError(w, http.StatusBadRequest, "name and secret are required")
		return
	}

	if len(req.Secret) < 12 {
		respondError(w, http.StatusBadRequest, "secret must be at least 12 characters")
		return
	}

	client, err := h.service.RegisterClient(r.Context(), req.Name, req.Secret)
	if err != nil {
		if errors.Is(err, ErrClientExists) {
			respondError(w, http.StatusConflict, "client already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to register client")
		return
	}

	respondJSON(w, http.StatusCreated, client)
}

// Token handles POST /auth/token
func (h *Handlers) Token(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Secret == "" {
		respondError(w, http.StatusBadRequest, "name and secret are required")
		return
	}

	token, err := h.service.IssueToken(r.Context(), req.Name, req.Secret)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	respondJSON(w, http.StatusOK, TokenResponse{Token: token, TokenType: "Bearer"})
}

// Me handles GET /auth/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := GetClientFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"id":   claims.ClientID,
		"name": claims.Name,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
