package email

import (
	"bytes"
	"context"
	"html/template"
	"net/url"
	"strings"
	texttpl "text/template"
	"time"
)

// Link kinds rendered by the Mailer.
const (
	KindPasswordReset = "reset_password"
	KindActivation    = "activation"
	KindInvitation    = "invitation"
)

type linkVars struct {
	Name string
	Link string
	TTL  string
}

type pair struct {
	subject string
	html    *template.Template
	text    *texttpl.Template
}

// Mailer renders link emails and hands them to a Sender.
type Mailer struct {
	sender  Sender
	baseURL string
	tpl     map[string]pair
}

func NewMailer(sender Sender, baseURL string) *Mailer {
	return &Mailer{sender: sender, baseURL: strings.TrimRight(baseURL, "/"), tpl: builtin()}
}

// Link builds the client URL for kind carrying token.
func (m *Mailer) Link(kind, token string) string {
	q := url.Values{"token": {token}}
	switch kind {
	case KindPasswordReset:
		return m.baseURL + "/reset-password?" + q.Encode()
	case KindActivation:
		return m.baseURL + "/set-password?" + q.Encode()
	default:
		return m.baseURL + "/register?" + q.Encode()
	}
}

// Send renders kind for to and delivers it. It returns the link it embedded.
func (m *Mailer) Send(ctx context.Context, kind, to, name, token string, ttl time.Duration) (string, error) {
	link := m.Link(kind, token)
	p := m.tpl[kind]
	vars := linkVars{Name: name, Link: link, TTL: ttl.String()}

	var h, t bytes.Buffer
	if err := p.html.Execute(&h, vars); err != nil {
		return link, err
	}
	if err := p.text.Execute(&t, vars); err != nil {
		return link, err
	}
	return link, m.sender.Send(ctx, Message{To: to, Subject: p.subject, HTML: h.String(), Text: t.String()})
}

func builtin() map[string]pair {
	mk := func(subject, intro string) pair {
		body := `Hi{{if .Name}} {{.Name}}{{end}},

` + intro + `

{{.Link}}

The link expires in {{.TTL}}.`
		html := `<p>Hi{{if .Name}} {{.Name}}{{end}},</p><p>` + intro + `</p><p><a href="{{.Link}}">{{.Link}}</a></p><p>The link expires in {{.TTL}}.</p>`
		return pair{
			subject: subject,
			html:    template.Must(template.New(subject).Parse(html)),
			text:    texttpl.Must(texttpl.New(subject).Parse(body)),
		}
	}
	return map[string]pair{
		KindPasswordReset: mk("Reset your password", "Someone asked to reset the password for your account. Use the link below to choose a new one."),
		KindActivation:    mk("Activate your account", "An account was created for you. Use the link below to set your password."),
		KindInvitation:    mk("You are invited", "You have been invited to create an account. Use the link below to register."),
	}
}
