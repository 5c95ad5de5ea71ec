package notify

import (
	"bytes"
	"fmt"
	"text/template"
)

// Template names a notification message.
type Template string

const (
	TemplateApplicationReceived Template = "application_received"
	TemplateApplicationAccepted Template = "application_accepted"
	TemplateApplicationRejected Template = "application_rejected"
	TemplateContactReceived     Template = "contact_received"
)

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(name, subject, body string) mailTemplate {
	return mailTemplate{
		subject: template.Must(template.New(name + ".subject").Option("missingkey=error").Parse(subject)),
		body:    template.Must(template.New(name + ".body").Option("missingkey=error").Parse(body)),
	}
}

var templates = map[Template]mailTemplate{
	TemplateApplicationReceived: mustTemplate(string(TemplateApplicationReceived),
		`Confirmation de votre demande de stage`,
		`Bonjour {{.Name}},

Votre demande de stage pour "{{.OfferTitle}}" a bien été reçue. Nous vous contacterons bientôt.
`),
	TemplateApplicationAccepted: mustTemplate(string(TemplateApplicationAccepted),
		`Statut de votre demande de stage - acceptée`,
		`Bonjour {{.Name}},

Votre demande de stage pour "{{.OfferTitle}}" a été acceptée. Nous vous contacterons pour la suite.
`),
	TemplateApplicationRejected: mustTemplate(string(TemplateApplicationRejected),
		`Statut de votre demande de stage - refusée`,
		`Bonjour {{.Name}},

Votre demande de stage pour "{{.OfferTitle}}" a été refusée. Nous vous remercions de votre intérêt.
`),
	TemplateContactReceived: mustTemplate(string(TemplateContactReceived),
		`Nouveau message de contact: {{.Subject}}`,
		`Nouveau message de contact reçu :

Nom: {{.Name}}
Email: {{.Email}}
Sujet: {{.Subject}}
Message:
{{.Message}}

Date: {{.CreatedAt}}
`),
}

// Render produces the subject and body of t for data.
func Render(t Template, data any) (subject, body string, err error) {
	tpl, ok := templates[t]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", t)
	}

	var sb, bb bytes.Buffer
	if err := tpl.subject.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", t, err)
	}
	if err := tpl.body.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", t, err)
	}
	return sb.String(), bb.String(), nil
}
