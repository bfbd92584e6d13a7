package admin

import (
	"log"
	"net/http"
	"strings"

	"ntes/internal/apperr"
	"ntes/internal/auth"
	"ntes/internal/ui"
)

func (h *Handler) loginView(r *http.Request) loginView {
	v := loginView{
		SiteName:      h.deps.SiteName,
		Next:          r.URL.Query().Get("next"),
		DemoEnabled:   h.deps.Auth.DemoEnabled(),
		SignupAllowed: h.deps.Auth.SignupAllowed(),
	}
	if v.DemoEnabled {
		v.DemoEmail, v.DemoPassword = h.deps.Auth.DemoCredentials()
	}
	return v
}

func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	if token, ok := auth.ReadCookie(r); ok {
		if _, err := h.deps.Auth.Verify(token); err == nil {
			http.Redirect(w, r, safeNext(r.URL.Query().Get("next")), http.StatusSeeOther)
			return
		}
	}
	v := h.loginView(r)
	v.Error = r.URL.Query().Get("err")
	ui.Serve(w, r, http.StatusOK, loginPage(v))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	token, err := h.deps.Auth.SignIn(r.Context(), email, r.PostForm.Get("password"))
	if err != nil {
		h.loginFailed(w, r, email, err)
		return
	}
	auth.WriteCookie(w, r, token)
	http.Redirect(w, r, safeNext(r.PostForm.Get("next")), http.StatusSeeOther)
}

func (h *Handler) loginFailed(w http.ResponseWriter, r *http.Request, email string, err error) {
	logFailure("sign in", err)
	v := h.loginView(r)
	v.Next = r.PostForm.Get("next")
	v.Email = email
	v.Error = apperr.UserMessage(err)
	ui.Serve(w, r, apperr.HTTPStatus(err), loginPage(v))
}

func (h *Handler) demoLogin(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	token, err := h.deps.Auth.DemoSignIn(r.Context())
	if err != nil {
		h.loginFailed(w, r, "", err)
		return
	}
	log.Printf("admin: demo sign in")
	auth.WriteCookie(w, r, token)
	http.Redirect(w, r, safeNext(r.PostForm.Get("next")), http.StatusSeeOther)
}

func (h *Handler) signupPage(w http.ResponseWriter, r *http.Request) {
	if !h.deps.Auth.SignupAllowed() {
		http.NotFound(w, r)
		return
	}
	ui.Serve(w, r, http.StatusOK, signupPage(h.loginView(r)))
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	if !h.deps.Auth.SignupAllowed() {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	token, err := h.deps.Auth.SignUp(r.Context(), email, r.PostForm.Get("password"))
	if err != nil {
		logFailure("sign up", err)
		v := h.loginView(r)
		v.Email = email
		v.Error = apperr.UserMessage(err)
		ui.Serve(w, r, apperr.HTTPStatus(err), signupPage(v))
		return
	}
	log.Printf("admin: account created")
	auth.WriteCookie(w, r, token)
	http.Redirect(w, r, Prefix+"/", http.StatusSeeOther)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearCookie(w, r)
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}
