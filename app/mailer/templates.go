package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type verifySignupData struct {
	FullName   string
	OTP        string
	TTLMinutes int
}

type welcomeData struct {
	FullName     string
	DashboardURL string
}

type resetPasswordData struct {
	FullName string
	Link     string
	Token    string
}

func VerifySignup(to, fullName, otp string, ttl time.Duration) (Message, error) {
	data := verifySignupData{FullName: fullName, OTP: otp, TTLMinutes: int(ttl / time.Minute)}
	html, err := render("verify-signup.html", data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		ToName:  fullName,
		Subject: "Verify your account",
		HTML:    html,
		Text: fmt.Sprintf("Hi %s,\n\nYour verification code is %s. It expires in %d minutes.\n",
			fullName, otp, data.TTLMinutes),
	}, nil
}

func Welcome(to, fullName, dashboardURL string) (Message, error) {
	html, err := render("welcome.html", welcomeData{FullName: fullName, DashboardURL: dashboardURL})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		ToName:  fullName,
		Subject: "Welcome to Inventory",
		HTML:    html,
		Text:    fmt.Sprintf("Hi %s,\n\nYour account is verified. Open your dashboard: %s\n", fullName, dashboardURL),
	}, nil
}

func ResetPassword(to, fullName, link, token string) (Message, error) {
	html, err := render("reset-password.html", resetPasswordData{FullName: fullName, Link: link, Token: token})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		ToName:  fullName,
		Subject: "Reset your password",
		HTML:    html,
		Text:    fmt.Sprintf("Hi %s,\n\nReset your password by opening this link:\n\n%s\n", fullName, link),
	}, nil
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
