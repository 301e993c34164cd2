package mail

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/taskdeck/taskdeck/internal/domain"
)

var invitationTmpl = template.Must(template.New("invitation").Parse(`<p>{{.Inviter}} invited you to join the workspace <strong>{{.Workspace}}</strong> on Taskdeck.</p>
<p><a href="{{.AcceptURL}}">Accept the invitation</a></p>
<p>This invitation expires on {{.Expires}}.</p>`))

var digestTmpl = template.Must(template.New("digest").Parse(`<p>Hi {{.Name}}, you have {{len .Tasks}} task{{if ne (len .Tasks) 1}}s{{end}} due in the next 24 hours:</p>
<ul>
{{- range .Tasks}}
<li><strong>{{.Title}}</strong>{{if .DueDate}} (due {{.DueDate.Format "Jan 2 15:04"}}){{end}}</li>
{{- end}}
</ul>`))

// Invitation renders the workspace invitation email.
func Invitation(to, inviter, workspace, acceptURL string, expires time.Time) (Message, error) {
	var html strings.Builder
	err := invitationTmpl.Execute(&html, map[string]any{
		"Inviter":   inviter,
		"Workspace": workspace,
		"AcceptURL": acceptURL,
		"Expires":   expires.Format("Jan 2, 2006"),
	})
	if err != nil {
		return Message{}, fmt.Errorf("render invitation: %w", err)
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("You've been invited to %s", workspace),
		HTML:    html.String(),
		Text:    fmt.Sprintf("%s invited you to join %s on Taskdeck. Accept: %s", inviter, workspace, acceptURL),
	}, nil
}

// Digest renders the daily due-task summary email.
func Digest(to, name string, tasks []domain.Task) (Message, error) {
	var html strings.Builder
	if err := digestTmpl.Execute(&html, map[string]any{"Name": name, "Tasks": tasks}); err != nil {
		return Message{}, fmt.Errorf("render digest: %w", err)
	}
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		line := "- " + t.Title
		if t.DueDate != nil {
			line += " (due " + t.DueDate.Format("Jan 2 15:04") + ")"
		}
		lines = append(lines, line)
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("%d tasks due today", len(tasks)),
		HTML:    html.String(),
		Text:    fmt.Sprintf("Tasks due in the next 24 hours:\n%s", strings.Join(lines, "\n")),
	}, nil
}
