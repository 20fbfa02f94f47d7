package apicommon

// UserInfo holds the credentials sent to the login and register endpoints,
// either as form fields or as a JSON object.
type UserInfo struct {
	// User identifier chosen at registration
	ID string `json:"id"`
	// User's password, compared as is
	Password string `json:"password"`
}

// LoginResponse is returned to JSON clients after a successful login.
type LoginResponse struct {
	// Identifier of the authenticated user
	ID string `json:"id"`
}
