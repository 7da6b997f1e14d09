package worker

import (
	"fmt"
	"strings"

	"solicitudes/internal/model"
)

// ComposeBody renders the plaintext and HTML bodies for a request email.
func ComposeBody(req *model.Request, kind model.NotificationKind, recipientName string) (string, string) {
	return composeText(req, kind, recipientName), composeHTML(req, kind, recipientName)
}

func intro(kind model.NotificationKind) string {
	switch kind {
	case model.KindRequestCreated:
		return "A new request needs your attention:"
	case model.KindRequestApproved:
		return "Your request has been approved:"
	case model.KindRequestRejected:
		return "Your request has been rejected:"
	case model.KindRequestUpdated:
		return "Your request has been updated:"
	case model.KindReminder:
		return "You have a request pending review:"
	}
	return "Request details:"
}

func titleCase(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func composeText(req *model.Request, kind model.NotificationKind, recipientName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", recipientName)
	b.WriteString(intro(kind) + "\n\n")
	fmt.Fprintf(&b, "Type: %s\n", titleCase(string(req.Type)))
	fmt.Fprintf(&b, "Title: %s\n", req.Title)
	fmt.Fprintf(&b, "Description: %s\n", req.Description)
	fmt.Fprintf(&b, "Status: %s\n", titleCase(string(req.Status)))
	fmt.Fprintf(&b, "Priority: %s\n", titleCase(string(req.Priority)))

	if req.Approver != nil {
		fmt.Fprintf(&b, "Processed by: %s\n", req.Approver.FullName())
	}
	if req.Comments != "" {
		fmt.Fprintf(&b, "\nComments:\n%s\n", req.Comments)
	}

	b.WriteString("\n---\n")
	b.WriteString("Internal Request Management System\n")
	b.WriteString("This is an automated message, please do not reply.\n")
	return b.String()
}

// accent colors per notification kind, used in the HTML header.
var kindColors = map[model.NotificationKind]string{
	model.KindRequestCreated:  "#3498db",
	model.KindRequestApproved: "#2ecc71",
	model.KindRequestRejected: "#e74c3c",
	model.KindRequestUpdated:  "#f39c12",
	model.KindReminder:        "#9b59b6",
}

func composeHTML(req *model.Request, kind model.NotificationKind, recipientName string) string {
	color, ok := kindColors[kind]
	if !ok {
		color = "#34495e"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<div style="background-color: %s; color: white; padding: 20px; text-align: center;"><h2>Request Management</h2></div>
<div style="background-color: #f9f9f9; padding: 20px; border: 1px solid #ddd;">
<p>Hello %s,</p>
<p>%s</p>
`, color, recipientName, intro(kind))

	row := func(label, value string) {
		fmt.Fprintf(&b, `<div style="margin: 10px 0;"><strong>%s:</strong> %s</div>`+"\n", label, value)
	}
	row("Type", titleCase(string(req.Type)))
	row("Title", req.Title)
	row("Description", req.Description)
	row("Status", titleCase(string(req.Status)))
	row("Priority", titleCase(string(req.Priority)))
	if req.Approver != nil {
		row("Processed by", req.Approver.FullName())
	}
	if req.Comments != "" {
		row("Comments", req.Comments)
	}

	b.WriteString(`</div>
<div style="text-align: center; padding: 20px; color: #777; font-size: 12px;">
<p>Internal Request Management System</p>
<p>This is an automated message, please do not reply.</p>
</div>
</div>
</body>
</html>`)
	return b.String()
}
