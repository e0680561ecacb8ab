package server

import (
	"chat-rooms/auth"
	"chat-rooms/services"
	"net/http"
	"time"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	user, err := s.auth.Register(r.Context(), auth.RegisterRequest{Username: body.Username, Email: body.Email, Password: body.Password})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserView(user))
}

// login also sets the auth cookie so that browsers can open the websocket
// without handling the token.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.tokenTTL / time.Second),
	})
	writeJSON(w, http.StatusOK, sessionView{Token: session.Token, Username: session.User.Username, ID: session.User.ID})
}

// token is login without the cookie, for scripts and non browser clients.
func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionView{Token: session.Token, Username: session.User.Username, ID: session.User.ID})
}

func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (services.Session, bool) {
	var body credentialsRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, s.log, err)
		return services.Session{}, false
	}
	result, err := s.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, r, s.log, err)
		return services.Session{}, false
	}
	return result, true
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserViews(users))
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r, "id")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	user, err := s.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(user))
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r, "id")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var body updateUserRequest
	if err = decodeJSON(w, r, &body); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	user, err := s.users.Update(r.Context(), identity(r), id, auth.UpdateUserRequest{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(user))
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r, "id")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err = s.users.Delete(r.Context(), identity(r), id); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
