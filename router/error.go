package router

// Error is a router-stage failure carrying enough structure for Handle
// to pick the right HTTP status and body shape, the typed equivalent of
// backend.py's ad-hoc WebResponse(401/404/500, ...) returns.
type Error struct {
	Kind      string // "not_login", "invalid_token", "func_not_found", "func_failed", "no_perms"
	Message   string
	Exception string
}

func (e *Error) Error() string { return e.Message }

func notLoginError() *Error {
	return &Error{
		Kind:    "not_login",
		Message: "You need to first log in the device by starting the frontend.",
	}
}

func invalidTokenError(provided bool) *Error {
	msg := "No token provided"
	if provided {
		msg = "The token provided is not valid"
	}
	return &Error{Kind: "invalid_token", Message: msg}
}

func funcNotFoundError(dotted string) *Error {
	return &Error{Kind: "func_not_found", Message: "API function `" + dotted + "` not found!"}
}

func noPermsError(dotted string) *Error {
	return &Error{Kind: "no_perms", Message: "You don't have the permissions to call `" + dotted + "`!"}
}

func funcFailedError(dotted, exception string) *Error {
	return &Error{
		Kind:      "func_failed",
		Message:   "Function `" + dotted + "` failed!",
		Exception: exception,
	}
}

// StatusCode maps an Error's Kind onto the HTTP status/message pair
// backend.py returns for it.
func (e *Error) StatusCode() (int, string) {
	switch e.Kind {
	case "not_login":
		return 401, "NOT_LOGIN"
	case "invalid_token":
		return 401, "INVALID_TOK"
	case "func_not_found":
		return 404, "FUNC_NOT_FOUND"
	case "no_perms":
		return 403, "NO_PERMS"
	case "func_failed":
		return 500, "FUNC_FAILED"
	default:
		return 500, "ERROR"
	}
}
