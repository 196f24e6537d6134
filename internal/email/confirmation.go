package email

import (
	"fmt"
	"strings"
)

const confirmationSubject = "Confirm Your Account – Action Required"

// NewConfirmationMessage renders the account-confirmation email. The link
// section is always present; the OTP section is omitted when otp is empty,
// since the code expires long before the link does.
func NewConfirmationMessage(name, confirmationURL, otp string, otpValidityMinutes int) Message {
	var b strings.Builder

	fmt.Fprintf(&b, `Dear %s,

Thank you for signing up! To complete your registration, click the link
below to verify your email address:
%s
`, name, confirmationURL)

	if otp != "" {
		fmt.Fprintf(&b, `
Alternatively, enter the One-Time Password (OTP) below when prompted in
the mobile app:
Your OTP: %s
The OTP is valid for the next %d minutes.
`, otp, otpValidityMinutes)
	}

	b.WriteString("\nIf you didn't sign up for this account, you can safely ignore this email.\n")

	text := b.String()
	return Message{
		Subject: confirmationSubject,
		HTML:    strings.ReplaceAll(text, "\n", "<br>"),
		Text:    text,
	}
}
