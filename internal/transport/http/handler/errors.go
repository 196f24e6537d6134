package handler

const (
	errInternalServer     = "Internal server error"
	errInvalidInput       = "Invalid input"
	errUnauthorized       = "Unauthorized access"
	errInvalidCredentials = "Invalid email or password"
	errDuplicateEmail     = "An account with this email already exists"
	errUnconfirmed        = "Email is not confirmed. Please check your email and confirm your account before you can login."
	errInvalidConfToken   = "Invalid or expired token. Please request another confirmation email."
	errInvalidOTP         = "Invalid OTP"

	msgRegistered       = "Account created. Please check your email to confirm your account."
	msgConfirmationSent = "If the account exists and is unconfirmed, a confirmation email has been sent."
	msgConfirmed        = "Account confirmed successfully."
	msgLoggedOut        = "Logged out successfully."
)
