// Package discord shapes and delivers Discord webhook messages.
package discord

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/citydesk/emergency-portal/internal/domain"
)

// Discord rejects embeds over these limits.
const (
	maxFieldValue  = 1024
	maxDescription = 4096
	maxContent     = 2000
)

const (
	ColorCritical = 0xFF0000
	ColorHigh     = 0xFF8000
	ColorMedium   = 0xFFFF00
	ColorLow      = 0x00FF00
	ColorDefault  = 0x0099FF

	ColorAccepted = 0x00FF00
	ColorDenied   = 0xFF0000
	ColorClosed   = 0x808080
)

// Message is the webhook request body.
type Message struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds"`
}

// Embed is a single rich embed.
type Embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color"`
	Fields      []Field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp"`
	Footer      *Footer `json:"footer,omitempty"`
}

// Field is an embed name/value pair.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Footer is the embed footer line.
type Footer struct {
	Text string `json:"text"`
}

// Builder renders ticket events into messages.
type Builder struct {
	Footer string
}

// NewBuilder returns a builder using footer as the embed footer text.
func NewBuilder(footer string) Builder {
	if footer == "" {
		footer = "Emergency Services Portal"
	}
	return Builder{Footer: footer}
}

// PriorityColor maps a ticket priority to the embed colour.
func PriorityColor(p domain.TicketPriority) int {
	switch p {
	case domain.TicketPriorityCritical:
		return ColorCritical
	case domain.TicketPriorityHigh:
		return ColorHigh
	case domain.TicketPriorityMedium:
		return ColorMedium
	case domain.TicketPriorityLow:
		return ColorLow
	default:
		return ColorDefault
	}
}

// Mention renders the configured service role. A bare numeric id becomes a role
// mention; anything else (e.g. "@Fire") is sent as written.
func Mention(role string) string {
	role = strings.TrimSpace(role)
	if role == "" {
		return ""
	}
	if isSnowflake(role) {
		return "<@&" + role + ">"
	}
	return truncate(role, maxContent)
}

func isSnowflake(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// TicketCreated builds the new-ticket announcement.
func (b Builder) TicketCreated(ticket domain.Ticket, svc domain.Service, at time.Time) Message {
	return Message{
		Content: Mention(svc.DiscordRole),
		Embeds: []Embed{{
			Title: "🚨 New Emergency Ticket",
			Color: PriorityColor(ticket.Priority),
			Fields: []Field{
				field("🏷️ Ticket ID", ticketRef(ticket.ID), true),
				field("🚑 Service", svc.Name, true),
				field("⚠️ Priority", strings.ToUpper(string(ticket.Priority)), true),
				field("📋 Description", ticket.Description, false),
				field("📍 Location", ticket.Location, false),
				field("👤 Created By", displayName(ticket.CreatedBy), true),
			},
			Timestamp: at.UTC().Format(time.RFC3339),
			Footer:    &Footer{Text: b.Footer},
		}},
	}
}

// TicketTransitioned builds the accept/deny/close announcement.
func (b Builder) TicketTransitioned(ticket domain.Ticket, svc domain.Service, action domain.TicketAction, actor domain.Identity, notes string, at time.Time) Message {
	title, color := actionStyle(action)
	fields := []Field{
		field("🏷️ Ticket ID", ticketRef(ticket.ID), true),
		field("🚑 Service", svc.Name, true),
		field("👤 Action By", displayName(actor), true),
	}
	if strings.TrimSpace(notes) != "" {
		fields = append(fields, field("📝 Notes", notes, false))
	}
	return Message{
		Content: Mention(svc.DiscordRole),
		Embeds: []Embed{{
			Title:     title,
			Color:     color,
			Fields:    fields,
			Timestamp: at.UTC().Format(time.RFC3339),
			Footer:    &Footer{Text: b.Footer},
		}},
	}
}

// WebhookTest builds the canned admin test message.
func (b Builder) WebhookTest(svc domain.Service, at time.Time) Message {
	return Message{
		Embeds: []Embed{{
			Title:       "🧪 Webhook Test",
			Description: truncate(fmt.Sprintf("This is a test message from the %s for %s", b.Footer, svc.Name), maxDescription),
			Color:       ColorDefault,
			Timestamp:   at.UTC().Format(time.RFC3339),
			Footer:      &Footer{Text: b.Footer + " - Test Message"},
		}},
	}
}

func actionStyle(action domain.TicketAction) (string, int) {
	switch action {
	case domain.TicketActionAccept:
		return "✅ Ticket Accepted", ColorAccepted
	case domain.TicketActionDeny:
		return "❌ Ticket Denied", ColorDenied
	case domain.TicketActionClose:
		return "🔒 Ticket Closed", ColorClosed
	default:
		return "Ticket Updated", ColorDefault
	}
}

func field(name, value string, inline bool) Field {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	return Field{Name: name, Value: truncate(value, maxFieldValue), Inline: inline}
}

func ticketRef(id int64) string {
	return fmt.Sprintf("#%d", id)
}

func displayName(id domain.Identity) string {
	if id.DisplayName != "" {
		return id.DisplayName
	}
	if id.ExternalID != "" {
		return id.ExternalID
	}
	return "Unknown"
}

// truncate cuts s to at most limit runes, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
