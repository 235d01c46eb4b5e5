package dispatcher

import (
	"context"
	"encoding/json"

	"github.com/quietfen/chessd/pkg/chessproto"
)

func (d *Dispatcher) handleVerifySession(ctx context.Context, connID string, raw []byte) []byte {
	var req chessproto.VerifySessionRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" {
		return d.errJSON("missing_field", "session_id is required")
	}

	if !d.Sessions.Verify(ctx, req.SessionID) {
		return mustMarshal(chessproto.SessionInvalid{
			Type: "SESSION_INVALID", Reason: "expired",
			Message: "Session expired. Please log in again.",
		})
	}

	if !d.Sessions.BindSocket(req.SessionID, connID) {
		return mustMarshal(chessproto.DuplicateSession{
			Type: "DUPLICATE_SESSION", SessionID: req.SessionID, Reason: "already_connected",
			Message: "Multiple connections with the same session are not allowed. Please close the existing connection first.",
		})
	}

	userID, username, ok := d.resolveSession(ctx, req.SessionID)
	if !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}
	u := d.Users.ByID(ctx, userID)

	resp := chessproto.SessionValid{
		Type: "SESSION_VALID", SessionID: req.SessionID, UserID: userID, Username: username,
		Message: "Session restored successfully",
	}
	if u != nil {
		resp.Wins, resp.Losses, resp.Draws, resp.Rating = u.Wins, u.Losses, u.Draws, u.Rating
	}
	if gameID, inGame := d.Matches.GetGameIDByPlayer(userID); inGame {
		resp.ActiveGameID = gameID
	}
	return mustMarshal(resp)
}

func (d *Dispatcher) handleLogin(ctx context.Context, connID, ip string, raw []byte) []byte {
	var req chessproto.LoginRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.Username == "" || req.Password == "" {
		return d.errJSON("missing_field", "username and password are required")
	}

	userID := d.Users.Authenticate(ctx, req.Username, req.Password)
	if userID <= 0 {
		return mustMarshal(chessproto.LoginResponse{
			Type: "LOGIN_RESPONSE", Status: "failure", Message: "Invalid username or password",
		})
	}

	if d.SessionDB.HasActive(ctx, userID) {
		return mustMarshal(chessproto.LoginResponse{
			Type: "LOGIN_RESPONSE", Status: "failure",
			Message: "User already connected from another device",
		})
	}

	u := d.Users.ByID(ctx, userID)
	if u == nil {
		return mustMarshal(chessproto.LoginResponse{
			Type: "LOGIN_RESPONSE", Status: "failure", Message: "Failed to retrieve user data",
		})
	}

	sessionID, ok := d.Sessions.Create(ctx, userID, req.Username, ip)
	if !ok {
		return mustMarshal(chessproto.LoginResponse{
			Type: "LOGIN_RESPONSE", Status: "failure", Message: "Failed to create session",
		})
	}
	d.Sessions.BindSocket(sessionID, connID)

	return mustMarshal(chessproto.LoginResponse{
		Type: "LOGIN_RESPONSE", Status: "success", SessionID: sessionID,
		UserID: u.ID, Username: u.Username, Wins: u.Wins, Losses: u.Losses, Draws: u.Draws,
		Rating: u.Rating, Message: "Login successful",
	})
}

func (d *Dispatcher) handleRegister(ctx context.Context, raw []byte) []byte {
	var req chessproto.RegisterRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.Username == "" || req.Password == "" {
		return d.errJSON("missing_field", "username and password are required")
	}

	if d.Users.Exists(ctx, req.Username) {
		return mustMarshal(chessproto.RegisterResponse{
			Type: "REGISTER_RESPONSE", Status: "failure", Message: "Username already exists",
		})
	}

	userID := d.Users.Create(ctx, req.Username, req.Password, req.Email)
	if userID <= 0 {
		return mustMarshal(chessproto.RegisterResponse{
			Type: "REGISTER_RESPONSE", Status: "failure", Message: "Failed to create user account",
		})
	}

	return mustMarshal(chessproto.RegisterResponse{
		Type: "REGISTER_RESPONSE", Status: "success", UserID: userID, Message: "Registration successful",
	})
}

func (d *Dispatcher) handleLogout(ctx context.Context, raw []byte) []byte {
	var req chessproto.LogoutRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" {
		return d.errJSON("missing_field", "session_id is required")
	}
	if _, _, ok := d.resolveSession(ctx, req.SessionID); !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}

	d.Sessions.Remove(ctx, req.SessionID)

	return mustMarshal(chessproto.LogoutResponse{
		Type: "LOGOUT_RESPONSE", Status: "success", Message: "Logged out successfully",
	})
}
