package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

var subjects = map[string]string{
	models.NotifyWelcome:        "Добро пожаловать в FitCourses",
	models.NotifyPasswordReset:  "Сброс пароля",
	models.NotifyPurchase:       "Доступ к курсу открыт",
	models.NotifyAccessExpiring: "Доступ к курсу скоро закончится",
	models.NotifyWorkoutToday:   "Тренировка на сегодня",
	models.NotifyFreeze:         "Доступ заморожен",
}

// Renderer собирает письма из встроенных шаблонов.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer разбирает все шаблоны писем.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("mail.NewRenderer: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

type templateData struct {
	Username string
	Data     map[string]string
}

// Render возвращает письмо для уведомления n.
func (r *Renderer) Render(n models.Notification) (Message, error) {
	const op = "mail.Render"
	subject, ok := subjects[n.Kind]
	if !ok {
		return Message{}, fmt.Errorf("%s: unknown notification kind %q", op, n.Kind)
	}
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, n.Kind+".html", templateData{Username: n.Username, Data: n.Data}); err != nil {
		return Message{}, fmt.Errorf("%s: %w", op, err)
	}
	return Message{To: n.Email, Subject: subject, HTML: buf.String()}, nil
}
