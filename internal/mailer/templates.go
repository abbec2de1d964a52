package mailer

import (
	"bytes"
	"html/template"
	"net/url"
)

var (
	verificationTmpl = template.Must(template.New("verify").Parse(
		`<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>` +
			`<p>Click <a href="{{.Link}}">here</a> to confirm your email.</p>`))
	resetTmpl = template.Must(template.New("reset").Parse(
		`<p>Click <a href="{{.Link}}">here</a> to reset your password. The link expires in one hour.</p>`))
)

// VerificationMessage renders the email confirmation message.
func VerificationMessage(baseURL, to, name, token string) (Message, error) {
	link := baseURL + "/verify-email?token=" + url.QueryEscape(token)
	body, err := render(verificationTmpl, map[string]string{"Name": name, "Link": link})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "Confirm your email",
		HTML:    body,
		Text:    "Confirm your email: " + link,
	}, nil
}

// PasswordResetMessage renders the password reset message.
func PasswordResetMessage(baseURL, to, token string) (Message, error) {
	link := baseURL + "/reset-password?token=" + url.QueryEscape(token)
	body, err := render(resetTmpl, map[string]string{"Link": link})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "Reset your password",
		HTML:    body,
		Text:    "Reset your password: " + link,
	}, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
