package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/usecase"
)

type verifyRequest struct {
	Email         string            `json:"email" validate:"required,email"`
	InterviewID   string            `json:"interviewId" validate:"required,uuid"`
	InterviewType string            `json:"interviewType" validate:"required"`
	Metadata      map[string]string `json:"metadata"`
}

type resendOTPRequest struct {
	Email       string `json:"email" validate:"required,email"`
	InterviewID string `json:"interviewId" validate:"omitempty,uuid"`
}

type verifyOTPRequest struct {
	Email         string `json:"email" validate:"required,email"`
	OTP           string `json:"otp" validate:"required,len=6,numeric"`
	InterviewID   string `json:"interviewId" validate:"required,uuid"`
	InterviewType string `json:"interviewType"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type sessionView struct {
	SessionID    string    `json:"sessionId"`
	Stage        string    `json:"stage"`
	ReadyToStart bool      `json:"readyToStart"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

var allowedPhotoMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// VerifyHandler starts a verification session at email_verified.
func (s *Server) VerifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		sess, err := s.Gate.BeginSession(r.Context(), req.Email, req.InterviewID, req.InterviewType, req.Metadata)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"sessionId": sess.ID,
			"stage":     sess.Stage,
			"expiresAt": sess.ExpiresAt,
		})
	}
}

// UploadPhotoHandler stores the identity photo and advances to photo_captured,
// which mails the first OTP.
func (s *Server) UploadPhotoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, domain.FieldError("content-type", "must be multipart/form-data"), nil)
			return
		}
		maxBytes := s.Cfg.MaxPhotoMB << 20
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(64<<10))
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{
					Code: "INVALID_ARGUMENT", Message: "payload too large",
					Details: map[string]any{"max_mb": s.Cfg.MaxPhotoMB},
				}})
				return
			}
			writeError(w, r, domain.FieldError("body", "invalid multipart form"), nil)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()
		sess, err := s.Gate.SessionFor(r.Context(), r.FormValue("email"), r.FormValue("interviewId"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		f, _, err := r.FormFile("photo")
		if err != nil {
			writeError(w, r, domain.FieldError("photo", "is required"), nil)
			return
		}
		defer func() { _ = f.Close() }()
		data, err := io.ReadAll(f)
		if err != nil {
			writeError(w, r, domain.FieldError("photo", "could not be read"), nil)
			return
		}
		if len(data) == 0 {
			writeError(w, r, domain.FieldError("photo", "is empty"), nil)
			return
		}
		mt := mimetype.Detect(data).String()
		if !allowedPhotoMIME[mt] {
			writeError(w, r, domain.FieldError("photo", fmt.Sprintf("unsupported media type %s", mt)), nil)
			return
		}
		// Check the stage first so a late upload does not leave an orphan photo.
		if err := domain.CheckTransition(sess.Stage, domain.StagePhotoCaptured); err != nil {
			writeError(w, r, err, nil)
			return
		}
		ref, err := s.Photos.Create(r.Context(), domain.Photo{
			CandidateEmail: sess.CandidateEmail,
			InterviewID:    sess.InterviewID,
			MIME:           mt,
			Size:           int64(len(data)),
			Data:           data,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		next, err := s.Gate.Advance(r.Context(), sess.ID, domain.StagePhotoCaptured, usecase.AdvancePayload{PhotoRef: ref})
		if err != nil {
			// The session never referenced the photo, so drop it.
			if derr := s.Photos.Delete(context.WithoutCancel(r.Context()), ref); derr != nil {
				observability.LoggerFromContext(r.Context()).Warn("orphan photo not removed",
					slog.String("photo_id", ref), slog.Any("error", derr))
			}
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "stage": next.Stage})
	}
}

// ResendOTPHandler issues a new OTP. Without interviewId the candidate's most
// recent session is used.
func (s *Server) ResendOTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resendOTPRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		var (
			sess domain.VerificationSession
			err  error
		)
		if req.InterviewID != "" {
			sess, err = s.Gate.SessionFor(r.Context(), req.Email, req.InterviewID)
		} else {
			sess, err = s.Gate.LatestFor(r.Context(), req.Email)
		}
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Gate.ResendOTP(r.Context(), sess.ID); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// VerifyOTPHandler checks the emailed code.
func (s *Server) VerifyOTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyOTPRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		sess, err := s.Gate.SessionFor(r.Context(), req.Email, req.InterviewID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if req.InterviewType != "" && domain.InterviewType(req.InterviewType) != sess.InterviewType {
			writeError(w, r, domain.FieldError("interviewType", "does not match the session"), nil)
			return
		}
		ok, err := s.Gate.VerifyOTP(r.Context(), sess.ID, req.OTP)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if !ok {
			writeError(w, r, domain.FieldError("otp", "is invalid or expired"), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "stage": domain.StageOTPVerified})
	}
}

// LobbyHandler moves an otp_verified session into the lobby.
func (s *Server) LobbyHandler() http.HandlerFunc { return s.advanceHandler(domain.StageLobbyReady) }

// StartHandler starts the interview from the lobby.
func (s *Server) StartHandler() http.HandlerFunc { return s.advanceHandler(domain.StageStarted) }

func (s *Server) advanceHandler(target domain.Stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		sess, err := s.Gate.Advance(r.Context(), req.SessionID, target, usecase.AdvancePayload{})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "stage": sess.Stage})
	}
}

// SessionHandler returns the session state, sliding its expiry.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Gate.Session(r.Context(), chi.URLParam(r, "sessionId"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, sessionView{
			SessionID:    sess.ID,
			Stage:        string(sess.Stage),
			ReadyToStart: s.Gate.IsReadyToStart(r.Context(), sess.ID),
			ExpiresAt:    sess.ExpiresAt,
		})
	}
}

// LogoutHandler deletes the session.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Gate.Logout(r.Context(), chi.URLParam(r, "sessionId")); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
