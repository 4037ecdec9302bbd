// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package httpapi

import (
	"context"
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
)

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	res, err := a.auth.Register(r.Context(), auth.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IPAddress: clientIP(r),
	})
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	w.Header().Set("Location", "/api/auth/me")
	writeJSON(w, http.StatusCreated, newAuthResponse(res))
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	res, err := a.auth.Login(r.Context(), auth.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: clientIP(r),
	})
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newAuthResponse(res))
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(w, r, &req); err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	res, err := a.auth.Refresh(r.Context(), auth.RefreshRequest{
		RefreshToken: req.RefreshToken,
		IPAddress:    clientIP(r),
	})
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newAuthResponse(res))
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	account, err := a.auth.GetAccount(r.Context(), p.AccountID)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(w, r, &req); err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	p, _ := PrincipalFrom(r.Context())
	account, err := a.auth.UpdateProfile(r.Context(), p.AccountID, req.toUpdate())
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(w, r, &req); err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	if err := a.auth.Logout(r.Context(), req.RefreshToken, clientIP(r)); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) logoutAll(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	n, err := a.auth.LogoutAll(r.Context(), p.AccountID, clientIP(r))
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decode(w, r, &req); err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	p, _ := PrincipalFrom(r.Context())
	err := a.auth.ChangePassword(r.Context(), auth.ChangePasswordRequest{
		AccountID:       p.AccountID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		IPAddress:       clientIP(r),
	})
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) adminGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	account, err := a.auth.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

func (a *API) adminUnlock(w http.ResponseWriter, r *http.Request) {
	a.adminCommand(w, r, a.auth.Unlock)
}

func (a *API) adminActivate(w http.ResponseWriter, r *http.Request) {
	a.adminCommand(w, r, a.auth.Activate)
}

func (a *API) adminVerifyEmail(w http.ResponseWriter, r *http.Request) {
	a.adminCommand(w, r, a.auth.VerifyEmail)
}

func (a *API) adminDeactivate(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decode(w, r, &req); err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	if err := a.auth.Deactivate(r.Context(), id, req.Reason); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) adminChangeRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decode(w, r, &req); err != nil {
		a.writeRequestError(w, r, err)
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	a.adminCommand(w, r, func(ctx context.Context, id ulid.ULID) error {
		return a.auth.ChangeRole(ctx, id, role)
	})
}

func (a *API) adminCommand(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id ulid.ULID) error) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	if err := fn(r.Context(), id); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
