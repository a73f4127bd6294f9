package shared

const (
	UserID    = "user_id"
	SessionID = "session_id"
	RequestID = "request_id"

	// Routing targets
	RouteHome           = "/"
	RouteLogin          = "/user/account/login"
	RouteRegister       = "/user/account/register"
	RouteForgotPassword = "/user/account/forgotpassword"
	RouteVerify         = "/user/account/verify"
	RouteLogout         = "/__/out"
	RouteSettings       = "/user/settings"
	RouteLibraries      = "/user/libraries"

	RedirectParam = "next"
	NotifyParam   = "notify"

	// Notification IDs surfaced to the UI via query param
	NotifyLoginRequired    = "login-required"
	NotifyLogoutSuccess    = "logout-success"
	NotifyAPIConnectFailed = "api-connect-failed"
	NotifyVerifySuccess    = "verify-account-success"
	NotifyVerifyFailed     = "verify-account-failed"
	NotifyVerifyWasValid   = "verify-account-was-valid"

	// Stable machine-readable error codes
	ErrCodeUnauthorized        = "unauthorized"
	ErrCodeMethodNotAllowed    = "method-not-allowed"
	ErrCodeMissingSessionID    = "missing-session-id"
	ErrCodeCannotRevokeCurrent = "cannot-revoke-current-session"
	ErrCodeSessionNotFound     = "session-not-found"
	ErrCodeRevocationFailed    = "revocation-failed"
	ErrCodeSessionMgmtDisabled = "session-management-unavailable"
	ErrCodeInternalError       = "internal-error"
	ErrCodeLogoutFailed        = "logout-failed"
	ErrCodeRateLimited         = "rate-limit-exceeded"
)
