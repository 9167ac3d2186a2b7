// Package digest builds the expiry digest: the list of inventory rows at
// or past their expiry window for one company/branch, formatted for email.
//
// Delivery mechanics live behind the Sender interface; the gateway ships a
// log-backed sender and leaves transport selection to the deployment.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jdcruz/wmsgate/internal/backend"
	"github.com/jdcruz/wmsgate/internal/inventory"
)

// Message is one rendered digest ready for delivery.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers a digest message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes digests to the log instead of delivering them. Used in
// development and as the default when no transport is configured.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements Sender.
func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Info("digest rendered (log sender, not delivered)",
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
		"bytes", len(msg.Body),
	)
	return nil
}

// EventEmitter receives notification after a digest is delivered.
type EventEmitter interface {
	EmitDigestSent(company, branch string, flagged int)
}

// Service composes the inventory fetch with digest rendering and delivery.
type Service struct {
	client *backend.Client
	sender Sender
	events EventEmitter
}

// NewService creates a digest service.
func NewService(client *backend.Client, sender Sender) *Service {
	return &Service{client: client, sender: sender}
}

// WithEvents attaches an event emitter. Returns the service for chaining.
func (s *Service) WithEvents(events EventEmitter) *Service {
	s.events = events
	return s
}

// Build fetches the inventory for the scope and keeps only rows that are
// near expiry or expired. The backend result is passed through untouched
// on failure so the handler can translate it.
func (s *Service) Build(ctx context.Context, company, branch string) ([]map[string]any, backend.Result) {
	res := s.client.Call(ctx, backend.Command{
		Type: "getinventory",
		Params: map[string]any{
			"company": company,
			"branch":  branch,
		},
	})
	if !res.OK {
		return nil, res
	}

	var flagged []map[string]any
	for _, row := range inventory.TableRows(res.Parsed) {
		if row["expiryStatus"] != inventory.ExpiryGood {
			flagged = append(flagged, row)
		}
	}
	return flagged, res
}

// Render formats the flagged rows as a plain-text digest body.
func Render(company, branch string, rows []map[string]any) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Expiry digest for %s / %s\n\n", company, branch)

	if len(rows) == 0 {
		b.WriteString("No items near expiry. Nothing to do.\n")
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "- [%v] %v %v (batch %v, loc %v) qty %v, expires %v\n",
			row["expiryStatus"], row["itemNo"], row["itemName"],
			row["batch"], row["location"], row["quantity"], row["ed"],
		)
	}

	return Message{
		Subject: fmt.Sprintf("Expiry digest: %d item(s) flagged (%s/%s)", len(rows), company, branch),
		Body:    b.String(),
	}
}

// BuildAndSend runs the whole pipeline. Returns the number of flagged rows
// and, on backend failure, the raw result for the handler to translate.
func (s *Service) BuildAndSend(ctx context.Context, company, branch string, recipients []string) (int, backend.Result, error) {
	rows, res := s.Build(ctx, company, branch)
	if !res.OK {
		return 0, res, nil
	}

	msg := Render(company, branch, rows)
	msg.To = recipients

	if err := s.sender.Send(ctx, msg); err != nil {
		return len(rows), res, fmt.Errorf("send digest: %w", err)
	}
	if s.events != nil {
		s.events.EmitDigestSent(company, branch, len(rows))
	}
	return len(rows), res, nil
}
