package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-otp-service/internal/application/otp"
	"github.com/go-otp-service/internal/domain"
	"github.com/go-otp-service/internal/pkg/validate"
	"github.com/go-otp-service/internal/transport/http/middleware"
)

// maxBodyBytes caps request bodies; both payloads are a handful of short strings.
const maxBodyBytes = 16 << 10

const (
	msgSent          = "OTP sent successfully"
	msgVerified      = "OTP verified successfully"
	msgNotFound      = "OTP not found or expired"
	msgInvalid       = "Invalid OTP"
	msgExpired       = "OTP expired"
	msgExhausted     = "OTP expired or max attempts reached"
	msgMissingVerify = "Missing user_id or otp_code"
	msgEncryptFailed = "Failed to encrypt OTP"
	msgDecryptFailed = "Failed to decrypt OTP"
	msgStoreFailed   = "Failed to store OTP"
	msgSendFailed    = "Failed to send OTP"
	msgInternal      = "Internal server error"
)

// OTPHandler exposes issue and verify over HTTP.
type OTPHandler struct {
	svc otp.Service
	log *slog.Logger
}

func NewOTPHandler(svc otp.Service, log *slog.Logger) *OTPHandler {
	if log == nil {
		log = slog.Default()
	}
	return &OTPHandler{svc: svc, log: log}
}

func (h *OTPHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req otp.IssueRequest
	if msg, ok := decodeBody(w, r, &req); !ok {
		writeStatus(w, http.StatusBadRequest, msg)
		return
	}

	err := h.svc.Issue(r.Context(), req)
	if err == nil {
		writeStatus(w, http.StatusOK, msgSent)
		return
	}

	var verrs validate.Errors
	switch {
	case errors.As(err, &verrs):
		if missing := verrs.Failed("required"); len(missing) > 0 {
			writeStatus(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
			return
		}
		writeStatus(w, http.StatusBadRequest, fmt.Sprintf("Invalid delivery method: %s", req.Method))
	case errors.Is(err, domain.ErrInvalidChannel):
		writeStatus(w, http.StatusBadRequest, fmt.Sprintf("Invalid delivery method: %s", req.Method))
	case errors.Is(err, domain.ErrBadRequest):
		writeStatus(w, http.StatusBadRequest, fmt.Sprintf("Invalid recipient for %s delivery", req.Method))
	case errors.Is(err, domain.ErrEncryption):
		h.fail(r, w, err, msgEncryptFailed)
	case errors.Is(err, domain.ErrStore):
		h.fail(r, w, err, msgStoreFailed)
	case errors.Is(err, domain.ErrDelivery):
		h.fail(r, w, err, msgSendFailed)
	default:
		h.fail(r, w, err, msgInternal)
	}
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req otp.VerifyRequest
	if msg, ok := decodeBody(w, r, &req); !ok {
		writeStatus(w, http.StatusBadRequest, msg)
		return
	}

	outcome, err := h.svc.Verify(r.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrBadRequest):
		writeStatus(w, http.StatusBadRequest, msgMissingVerify)
		return
	case errors.Is(err, domain.ErrDecryption):
		h.fail(r, w, err, msgDecryptFailed)
		return
	default:
		h.fail(r, w, err, msgInternal)
		return
	}

	switch outcome {
	case otp.OutcomeVerified:
		writeStatus(w, http.StatusOK, msgVerified)
	case otp.OutcomeNotFound:
		writeStatus(w, http.StatusBadRequest, msgNotFound)
	case otp.OutcomeInvalid:
		writeStatus(w, http.StatusBadRequest, msgInvalid)
	case otp.OutcomeExpired:
		writeStatus(w, http.StatusBadRequest, msgExpired)
	case otp.OutcomeExhausted:
		writeStatus(w, http.StatusBadRequest, msgExhausted)
	default:
		h.fail(r, w, fmt.Errorf("unhandled outcome %d", outcome), msgInternal)
	}
}

// fail logs the underlying cause and answers 500 with a fixed message.
func (h *OTPHandler) fail(r *http.Request, w http.ResponseWriter, err error, msg string) {
	var caller string
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		caller = claims.CallerName()
	}
	h.log.ErrorContext(r.Context(), "otp request failed",
		"path", r.URL.Path,
		"caller", caller,
		"request_id", chimiddleware.GetReqID(r.Context()),
		"err", err,
	)
	writeStatus(w, http.StatusInternalServerError, msg)
}

// decodeBody reads a single JSON object into dst. On failure it returns the client-facing message.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) (string, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return "Missing request body", false
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	switch {
	case err == nil:
		return "", true
	case errors.Is(err, io.EOF):
		return "Empty request body", false
	default:
		return "Invalid JSON in request body", false
	}
}
