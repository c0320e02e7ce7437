package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/gatherly-dev/gatherly/internal/models"
)

var subjects = map[models.NotificationKind]string{
	models.NotificationRSVPConfirmation:  "RSVP Confirmation",
	models.NotificationAccountActivation: "Activate your account",
}

var bodies = map[models.NotificationKind]*template.Template{
	models.NotificationRSVPConfirmation: template.Must(template.New("rsvp").Parse(
		`Hello {{.Name}},

You have successfully RSVP'd to {{index .Data "event_name"}}.
{{- with index .Data "event_date"}}
Date: {{.}}{{end}}
{{- with index .Data "event_time"}}
Time: {{.}}{{end}}
{{- with index .Data "location"}}
Location: {{.}}{{end}}

See you there!
`)),
	models.NotificationAccountActivation: template.Must(template.New("activation").Parse(
		`Hello {{.Name}},

Please confirm your account by opening the link below:

{{.Link}}

If you did not sign up, you can ignore this message.
`)),
}

type view struct {
	Name string
	Link string
	Data map[string]interface{}
}

// Render builds the outbox row for kind addressed to recipient.
func Render(kind models.NotificationKind, recipient *models.User, data map[string]interface{}, frontendURL string) (*models.Notification, error) {
	tmpl, ok := bodies[kind]
	if !ok {
		return nil, fmt.Errorf("unknown notification kind %q", kind)
	}
	if recipient == nil || recipient.Email == "" {
		return nil, fmt.Errorf("notification %s has no recipient address", kind)
	}

	v := view{Name: recipient.DisplayName(), Data: data}
	if kind == models.NotificationAccountActivation {
		v.Link = ActivationLink(frontendURL, fmt.Sprint(data["user_id"]), fmt.Sprint(data["token"]))
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, v); err != nil {
		return nil, fmt.Errorf("render %s: %w", kind, err)
	}

	return &models.Notification{
		Kind:      kind,
		UserID:    recipient.ID,
		Recipient: recipient.Email,
		Subject:   subjects[kind],
		Body:      body.String(),
		Context:   data,
		Status:    models.NotificationStatusPending,
	}, nil
}

// ActivationLink is the URL the user follows to activate an account.
func ActivationLink(frontendURL, userID, token string) string {
	return fmt.Sprintf("%s/users/activate/%s/%s/", strings.TrimRight(frontendURL, "/"), userID, token)
}
