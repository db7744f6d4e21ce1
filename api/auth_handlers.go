package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nkomarek/atelier/auth"
)

// HandleAuth handles POST /auth, dispatching on the action discriminator.
func (a *API) HandleAuth(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[AuthRequest](w, r, maxBodySize)
	if !ok {
		return
	}

	switch req.Action {
	case "check":
		a.handleCheck(w, r)
	case "generate":
		a.handleGenerate(w, r)
	case "setup":
		a.handleSetup(w, r, req)
	case "verify":
		a.handleVerify(w, r, req)
	case "validate_session":
		a.handleValidateSession(w, r, req)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

// handleCheck reports whether a secret exists, never the secret itself.
func (a *API) handleCheck(w http.ResponseWriter, r *http.Request) {
	configured, err := a.auth.Configured()
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckResponse{Configured: configured})
}

// handleGenerate returns a fresh candidate secret for enrollment display,
// with its otpauth:// payload for QR rendering.
func (a *API) handleGenerate(w http.ResponseWriter, r *http.Request) {
	secret, err := a.auth.GenerateSecret()
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, GenerateResponse{
		Secret:     secret,
		OTPAuthURL: auth.OTPAuthURL(secret, "admin"),
	})
}

func (a *API) handleSetup(w http.ResponseWriter, r *http.Request, req AuthRequest) {
	token, err := a.auth.Setup(req.Secret, req.Code)
	if err != nil {
		a.audit.logFailure(AuditSetupFailure, r, err.Error())
		a.mapError(w, err)
		return
	}
	a.audit.log(AuditSetup, r)
	writeJSON(w, http.StatusOK, SetupResponse{Success: true, SessionToken: token})
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request, req AuthRequest) {
	identity := a.clientIdentity(r)
	outcome, err := a.auth.Verify(identity, req.Code)
	if err != nil {
		if !errors.Is(err, auth.ErrMissingInput) {
			a.audit.logFailure(AuditVerifyFailure, r, err.Error())
		}
		a.mapError(w, err)
		return
	}
	if outcome.RateLimited {
		a.audit.logFailure(AuditVerifyLimited, r, "rate limited",
			slog.String("identity", identity))
		writeRateLimited(w)
		return
	}
	if !outcome.Valid {
		a.audit.logFailure(AuditVerifyFailure, r, "invalid code",
			slog.String("identity", identity))
		writeJSON(w, http.StatusOK, VerifyResponse{Valid: false})
		return
	}
	a.audit.log(AuditVerifySuccess, r, slog.String("identity", identity))
	writeJSON(w, http.StatusOK, VerifyResponse{Valid: true, SessionToken: outcome.Token})
}

func (a *API) handleValidateSession(w http.ResponseWriter, r *http.Request, req AuthRequest) {
	valid, err := a.auth.ValidateSession(req.SessionToken)
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidateSessionResponse{Valid: valid})
}
