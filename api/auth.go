package api

import (
	goerrors "errors"
	"net/http"

	"github.com/vocdoni/flatauth/api/apicommon"
	"github.com/vocdoni/flatauth/db"
	"github.com/vocdoni/flatauth/errors"
	"go.vocdoni.io/dvote/log"
)

const (
	invalidCredentialsMsg = "Invalid ID or password."
	duplicatedUserMsg     = "This ID already exists."
	registeredMsg         = "Registration successful."
)

// loginHandler checks the id and password provided against the storage. On
// success form clients are redirected to the home page and JSON clients get
// the user id back. Wrong credentials are answered with an alert that sends
// the browser back, or with an unauthorized error for JSON clients.
func (a *API) loginHandler(w http.ResponseWriter, r *http.Request) {
	asJSON := isJSONRequest(r)
	loginInfo, err := userInfoFromRequest(r)
	if err != nil {
		errors.ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	user, err := a.db.UserByCredentials(loginInfo.ID, loginInfo.Password)
	if err != nil {
		if goerrors.Is(err, db.ErrNotFound) {
			log.Debugw("login refused", "id", loginInfo.ID)
			if asJSON {
				errors.ErrUnauthorized.Write(w)
				return
			}
			apicommon.HTTPWriteAlert(w, invalidCredentialsMsg, "")
			return
		}
		errors.ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	log.Debugw("user logged in", "id", user.ID)
	if asJSON {
		apicommon.HTTPWriteJSON(w, &apicommon.LoginResponse{ID: user.ID})
		return
	}
	http.Redirect(w, r, homeEndpoint, http.StatusFound)
}

// registerHandler stores a new user with the id and password provided. The
// duplicate check and the insert happen in a single storage call, so two
// concurrent registrations of the same id cannot both succeed.
func (a *API) registerHandler(w http.ResponseWriter, r *http.Request) {
	asJSON := isJSONRequest(r)
	userInfo, err := userInfoFromRequest(r)
	if err != nil {
		errors.ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	err = a.db.RegisterUser(&db.User{
		ID:       userInfo.ID,
		Password: userInfo.Password,
	})
	switch {
	case err == nil:
	case goerrors.Is(err, db.ErrUserExists):
		log.Debugw("register refused, duplicated id", "id", userInfo.ID)
		if asJSON {
			errors.ErrDuplicatedUser.Write(w)
			return
		}
		apicommon.HTTPWriteAlert(w, duplicatedUserMsg, "")
		return
	case goerrors.Is(err, db.ErrPersistFailure):
		errors.ErrStorePersist.WithErr(err).Write(w)
		return
	default:
		errors.ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	log.Infow("user registered", "id", userInfo.ID)
	if asJSON {
		apicommon.HTTPWriteOK(w)
		return
	}
	apicommon.HTTPWriteAlert(w, registeredMsg, loginEndpoint)
}
