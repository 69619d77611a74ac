package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/haivivi/studio/pkg/conversation"
	"github.com/haivivi/studio/pkg/encoding"
)

// Theme defines the color scheme for rendered conversations.
type Theme struct {
	Primary lipgloss.Color // Assistant accent color
	User    lipgloss.Color // User turn color
	Error   lipgloss.Color
	Dim     lipgloss.Color // Dimmed/help text color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	User:    lipgloss.Color("#58a6ff"),
	Error:   lipgloss.Color("#ff5f56"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title lipgloss.Style
	User  lipgloss.Style
	Label lipgloss.Style
	Error lipgloss.Style
	Help  lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		User:  lipgloss.NewStyle().Bold(true).Foreground(t.User),
		Label: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Error: lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		Help:  lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Renderer formats conversation records for the terminal.
type Renderer struct {
	Styles Styles

	// Width truncates single-line payloads such as media references.
	// Zero disables truncation.
	Width int
}

// NewRenderer returns a renderer using DefaultTheme.
func NewRenderer(width int) *Renderer {
	return &Renderer{Styles: NewStyles(DefaultTheme), Width: width}
}

// Session renders a session header line.
func (r *Renderer) Session(s *conversation.Session) string {
	title := r.Styles.Title.Render(s.Title)
	meta := r.Styles.Help.Render(fmt.Sprintf("[%s · %d records]", s.ID, s.Records))
	return title + " " + meta
}

// Record renders one record as a labeled block.
func (r *Renderer) Record(rec *conversation.Record) string {
	switch rec.Kind {
	case conversation.KindUser:
		body := rec.Data
		if rec.UserImage != "" {
			body += "\n" + r.Styles.Help.Render(r.media("image", rec.UserImage))
		}
		return r.Styles.User.Render("you") + "\n" + body
	case conversation.KindError:
		return r.Styles.Error.Render("error") + "\n" + rec.Data
	case conversation.KindSources:
		lines := make([]string, 0, len(rec.Citations))
		for i, c := range rec.Citations {
			lines = append(lines, fmt.Sprintf("%d. %s %s", i+1, c.Title, r.Styles.Help.Render(c.URI)))
		}
		return r.label(rec, "sources") + "\n" + strings.Join(lines, "\n")
	case conversation.KindText:
		return r.label(rec, "assistant") + "\n" + rec.Data
	default:
		return r.label(rec, string(rec.Kind)) + "\n" + r.media(string(rec.Kind), rec.Data)
	}
}

// Records renders records separated by blank lines.
func (r *Renderer) Records(recs []*conversation.Record) string {
	blocks := make([]string, len(recs))
	for i, rec := range recs {
		blocks[i] = r.Record(rec)
	}
	return strings.Join(blocks, "\n\n")
}

func (r *Renderer) label(rec *conversation.Record, name string) string {
	l := r.Styles.Label.Render(name)
	if rec.Capability != "" {
		l += " " + r.Styles.Help.Render("("+strings.ToLower(rec.Capability)+")")
	}
	return l
}

// media describes a media payload without dumping inline data.
func (r *Renderer) media(kind, payload string) string {
	if encoding.IsDataURI(payload) {
		if mime, data, err := encoding.ParseDataURI(payload); err == nil {
			return fmt.Sprintf("<%s %s, %s>", kind, mime, FormatBytes(len(data)))
		}
	}
	if r.Width > 1 && lipgloss.Width(payload) > r.Width {
		return truncateString(payload, r.Width-1) + "…"
	}
	return payload
}

// truncateString safely truncates a string to the given width,
// handling multi-byte characters correctly.
func truncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	currentWidth := 0
	for i, r := range runes {
		w := lipgloss.Width(string(r))
		if currentWidth+w > width {
			return string(runes[:i])
		}
		currentWidth += w
	}
	return s
}
