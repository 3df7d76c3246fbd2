package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bytes-zone/beeps/pkg/apierr"
	"github.com/bytes-zone/beeps/pkg/auth"
	"github.com/google/uuid"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Email string `json:"email"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) error {
	if !s.AllowRegistration {
		return apierr.New(http.StatusForbidden, "registration closed")
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apierr.New(http.StatusBadRequest, "malformed request body")
	}

	_, err := s.Store.GetAccountByEmail(r.Context(), req.Email)
	if err == nil {
		return apierr.New(http.StatusBadRequest, "account already exists")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking existing account: %w", err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if err := s.Store.CreateAccount(r.Context(), uuid.NewString(), req.Email, hash); err != nil {
		return fmt.Errorf("creating account: %w", err)
	}

	return writeJSON(w, http.StatusOK, registerResponse{Email: req.Email})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	JWT string `json:"jwt"`
}

// badLoginMessage is returned for both "no such account" and "wrong
// password" so a caller cannot use the response to enumerate accounts.
const badLoginMessage = "incorrect email or password"

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apierr.New(http.StatusBadRequest, "malformed request body")
	}

	account, err := s.Store.GetAccountByEmail(r.Context(), req.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return apierr.New(http.StatusBadRequest, badLoginMessage)
	}
	if err != nil {
		return fmt.Errorf("looking up account: %w", err)
	}

	ok, err := auth.VerifyPassword(account.PasswordHash, req.Password)
	if err != nil {
		return fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return apierr.New(http.StatusBadRequest, badLoginMessage)
	}

	token, err := s.Issuer.Issue(account.Email)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}

	return writeJSON(w, http.StatusOK, loginResponse{JWT: token})
}

type whoamiResponse struct {
	Email string `json:"email"`
}

func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request) error {
	email, ok := emailFromContext(r.Context())
	if !ok {
		return apierr.New(http.StatusUnauthorized, unauthorizedMessage)
	}
	return writeJSON(w, http.StatusOK, whoamiResponse{Email: email})
}

type documentSummaryResponse struct {
	ID        int64  `json:"id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) error {
	email, ok := emailFromContext(r.Context())
	if !ok {
		return apierr.New(http.StatusUnauthorized, unauthorizedMessage)
	}

	account, err := s.Store.GetAccountByEmail(r.Context(), email)
	if err != nil {
		return fmt.Errorf("looking up account: %w", err)
	}

	docs, err := s.Store.ListDocuments(r.Context(), account.ID)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	out := make([]documentSummaryResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentSummaryResponse{
			ID:        d.ID,
			CreatedAt: d.CreatedAt.Format(rfc3339),
			UpdatedAt: d.UpdatedAt.Format(rfc3339),
		})
	}

	return writeJSON(w, http.StatusOK, out)
}

const rfc3339 = "2006-01-02T15:04:05Z07:00"

// documentNotFoundMessage is used for both "no such document" and "not
// yours": access to another account's document must look identical to
// the document not existing at all.
const documentNotFoundMessage = "Document not found"

func (s *Server) parseDocumentID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, apierr.New(http.StatusBadRequest, "invalid document id")
	}
	return id, nil
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) error {
	email, ok := emailFromContext(r.Context())
	if !ok {
		return apierr.New(http.StatusUnauthorized, unauthorizedMessage)
	}

	documentID, err := s.parseDocumentID(r)
	if err != nil {
		return err
	}

	owned, err := s.Store.DocumentOwnedBy(r.Context(), documentID, email)
	if err != nil {
		return fmt.Errorf("checking document ownership: %w", err)
	}
	if !owned {
		return apierr.New(http.StatusNotFound, documentNotFoundMessage)
	}

	var wire wireDocument
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		return apierr.New(http.StatusBadRequest, "malformed request body")
	}

	doc, err := wire.toDocument()
	if err != nil {
		return apierr.New(http.StatusBadRequest, err.Error())
	}

	if err := s.Store.PushParts(r.Context(), documentID, doc.Split()); err != nil {
		return fmt.Errorf("pushing document: %w", err)
	}

	return writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) error {
	email, ok := emailFromContext(r.Context())
	if !ok {
		return apierr.New(http.StatusUnauthorized, unauthorizedMessage)
	}

	documentID, err := s.parseDocumentID(r)
	if err != nil {
		return err
	}

	owned, err := s.Store.DocumentOwnedBy(r.Context(), documentID, email)
	if err != nil {
		return fmt.Errorf("checking document ownership: %w", err)
	}
	if !owned {
		return apierr.New(http.StatusNotFound, documentNotFoundMessage)
	}

	doc, err := s.Store.PullDocument(r.Context(), documentID)
	if err != nil {
		return fmt.Errorf("pulling document: %w", err)
	}

	return writeJSON(w, http.StatusOK, fromDocument(doc))
}
