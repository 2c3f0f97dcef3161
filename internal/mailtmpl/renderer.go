// Package mailtmpl renders the HTML bodies of outbound emails. All
// user-supplied values are escaped by html/template.
package mailtmpl

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	campaignTemplate            = "campaign.html"
	welcomeTemplate             = "welcome.html"
	contactConfirmationTemplate = "contact_confirmation.html"
	contactNotificationTemplate = "contact_notification.html"

	genericGreeting = "Hi there,"
)

// Message is a rendered subject and body pair.
type Message struct {
	Subject string
	HTML    string
}

// Renderer builds personalized messages and the links embedded in them.
type Renderer struct {
	siteURL   string
	brandName string
	templates *template.Template
}

func NewRenderer(siteURL string, brandName string) (*Renderer, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(siteURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("site url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid site url: %w", err)
	}
	if strings.TrimSpace(brandName) == "" {
		return nil, fmt.Errorf("brand name is required")
	}

	tmpl, err := template.New("mail").
		Funcs(template.FuncMap{"lines": splitLines}).
		ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse mail templates: %w", err)
	}

	return &Renderer{
		siteURL:   trimmed,
		brandName: strings.TrimSpace(brandName),
		templates: tmpl,
	}, nil
}

func (r *Renderer) SiteURL() string { return r.siteURL }

func (r *Renderer) UnsubscribeURL(token string) string {
	return r.siteURL + "/unsubscribe?token=" + url.QueryEscape(token)
}

func (r *Renderer) ContentURL(slug string) string {
	return r.siteURL + "/blog/" + url.PathEscape(slug)
}

// Greeting uses the first name when there is one.
func Greeting(firstName *string) string {
	if firstName == nil || strings.TrimSpace(*firstName) == "" {
		return genericGreeting
	}
	return fmt.Sprintf("Hi %s,", strings.TrimSpace(*firstName))
}

type campaignData struct {
	Brand          string
	Greeting       string
	Title          string
	Excerpt        string
	ContentURL     string
	UnsubscribeURL string
}

func (r *Renderer) Campaign(c domain.Campaign, s domain.Subscriber) (Message, error) {
	body, err := r.execute(campaignTemplate, campaignData{
		Brand:          r.brandName,
		Greeting:       Greeting(s.FirstName),
		Title:          c.Title,
		Excerpt:        c.Excerpt,
		ContentURL:     r.ContentURL(c.Slug),
		UnsubscribeURL: r.UnsubscribeURL(s.UnsubscribeToken),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: "New Article: " + c.Title, HTML: body}, nil
}

type welcomeData struct {
	Brand          string
	Greeting       string
	BlogURL        string
	ServicesURL    string
	ContactURL     string
	UnsubscribeURL string
}

// Welcome renders the greeting sent after a subscription. Without a token
// the unsubscribe line is left out rather than pointing at a dead link.
func (r *Renderer) Welcome(firstName *string, token string) (Message, error) {
	var unsubscribeURL string
	if strings.TrimSpace(token) != "" {
		unsubscribeURL = r.UnsubscribeURL(token)
	}

	body, err := r.execute(welcomeTemplate, welcomeData{
		Brand:          r.brandName,
		Greeting:       Greeting(firstName),
		BlogURL:        r.siteURL + "/blog",
		ServicesURL:    r.siteURL + "/services",
		ContactURL:     r.siteURL + "/contact",
		UnsubscribeURL: unsubscribeURL,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: fmt.Sprintf("Welcome to %s Newsletter!", r.brandName), HTML: body}, nil
}

type contactAnswer struct {
	Question string
	Answer   string
}

type contactData struct {
	Brand      string
	SiteURL    string
	Submission domain.ContactSubmission
	Answers    []contactAnswer
}

func (r *Renderer) ContactConfirmation(sub domain.ContactSubmission) (Message, error) {
	body, err := r.execute(contactConfirmationTemplate, contactData{
		Brand:      r.brandName,
		SiteURL:    r.siteURL,
		Submission: sub,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: fmt.Sprintf("Thank You for Contacting %s", r.brandName), HTML: body}, nil
}

func (r *Renderer) ContactNotification(sub domain.ContactSubmission) (Message, error) {
	body, err := r.execute(contactNotificationTemplate, contactData{
		Brand:      r.brandName,
		SiteURL:    r.siteURL,
		Submission: sub,
		Answers:    contactAnswers(sub),
	})
	if err != nil {
		return Message{}, err
	}
	subject := fmt.Sprintf("New Contact: %s - %s", sub.FullName(), sub.ProjectType)
	return Message{Subject: subject, HTML: body}, nil
}

func contactAnswers(sub domain.ContactSubmission) []contactAnswer {
	pairs := []struct {
		question string
		answer   *string
	}{
		{"What aspect of your business could we help simplify right now?", sub.AIQuestion},
		{"Where would AI save you or your team the most time?", sub.AIQuestion1},
		{"What aspect of your business needs the most improvement?", sub.AIQuestion2},
		{"What frustrating task would you want AI to solve?", sub.AIQuestion3},
		{"If you are looking for consultation, describe the problem you need help resolving?", sub.AIQuestion4},
	}

	answers := make([]contactAnswer, 0, len(pairs))
	for _, p := range pairs {
		if p.answer == nil || strings.TrimSpace(*p.answer) == "" {
			continue
		}
		answers = append(answers, contactAnswer{Question: p.question, Answer: *p.answer})
	}
	return answers
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
