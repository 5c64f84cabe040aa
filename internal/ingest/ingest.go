// Package ingest defines the Collector contract — fetch, normalize, and
// store — that any mail or calendar source implements, plus a concrete
// IMAP-backed email collector and vCard contact import. The Gmail/Google
// Calendar OAuth adapters themselves are out of scope (spec.md §1); what
// lives here is the normalized shape and storage path a real adapter
// plugs into, grounded on the IMAP polling idiom in the teacher's
// internal/email package.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message"
	"github.com/emersion/go-vcard"
	"golang.org/x/net/html"

	"github.com/omnibrain/omnibrain/internal/events"
	"github.com/omnibrain/omnibrain/internal/store"
)

// NormalizedEvent is the source-agnostic shape a Collector produces.
// StoreEvents converts it to a store.Event.
type NormalizedEvent struct {
	Source    string // "gmail", "imap", "calendar", ...
	SourceID  string // the source's native id (IMAP UID, Google event id, ...)
	EventType string
	Title     string
	Body      string
	Timestamp time.Time
	Metadata  map[string]any
}

// Collector fetches new items from an external source and returns them
// normalized. Implementations poll on whatever cadence their caller
// chooses; Collector itself is stateless about timing.
type Collector interface {
	Name() string
	Poll(ctx context.Context) ([]NormalizedEvent, error)
}

// StoreEvents persists normalized events and publishes a topic notifying
// subscribers of new data. InsertEvent's (source, event_type, title, ts)
// uniqueness already makes repeated polls idempotent, so StoreEvents does
// not track its own high-water mark — that is the Collector's job.
func StoreEvents(s *store.Store, bus *events.Bus, topic string, evs []NormalizedEvent) (int, error) {
	stored := 0
	for _, e := range evs {
		meta := e.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		if e.SourceID != "" {
			meta["source_id"] = e.SourceID
		}
		if _, err := s.InsertEvent(store.Event{
			Timestamp: e.Timestamp,
			Source:    e.Source,
			EventType: e.EventType,
			Title:     e.Title,
			Body:      e.Body,
			Metadata:  meta,
		}); err != nil {
			return stored, fmt.Errorf("store event %s: %w", e.SourceID, err)
		}
		stored++
	}
	if stored > 0 && bus != nil && topic != "" {
		bus.Publish(topic, map[string]any{"count": stored})
	}
	return stored, nil
}

// IMAPConfig configures a single-account IMAP collector.
type IMAPConfig struct {
	Account  string
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	Folder   string // defaults to INBOX
}

// IMAPCollector polls one IMAP mailbox for messages newer than a
// persisted high-water mark (the highest UID seen so far), exactly the
// never-decreasing high-water-mark scheme the teacher's email.Poller
// uses — generalized here to the Collector interface and to
// store.Store-backed preference persistence instead of an opstate file.
type IMAPCollector struct {
	cfg IMAPConfig
	s   *store.Store
	log *slog.Logger
}

// NewIMAPCollector creates a collector for one configured account.
func NewIMAPCollector(cfg IMAPConfig, s *store.Store, log *slog.Logger) *IMAPCollector {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	if log == nil {
		log = slog.Default()
	}
	return &IMAPCollector{cfg: cfg, s: s, log: log.With("collector", "imap", "account", cfg.Account)}
}

func (c *IMAPCollector) Name() string { return "imap:" + c.cfg.Account }

func (c *IMAPCollector) highWaterKey() string {
	return "imap_highwater:" + c.cfg.Account + ":" + c.cfg.Folder
}

// Poll connects, selects the configured folder, fetches everything newer
// than the stored high-water mark, advances the mark to the highest UID
// seen (never decreasing it), and returns the normalized messages.
func (c *IMAPCollector) Poll(ctx context.Context) ([]NormalizedEvent, error) {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	var opts imapclient.Options
	var client *imapclient.Client
	var err error
	if c.cfg.TLS {
		client, err = imapclient.DialTLS(addr, &opts)
	} else {
		client, err = imapclient.DialInsecure(addr, &opts)
	}
	if err != nil {
		return nil, fmt.Errorf("dial IMAP %s: %w", addr, err)
	}
	defer client.Close()

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		return nil, fmt.Errorf("login as %s: %w", c.cfg.Username, err)
	}
	if _, err := client.Select(c.cfg.Folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("select %s: %w", c.cfg.Folder, err)
	}

	storedUID, _ := c.s.GetPreference(c.highWaterKey(), "0").(string)
	lastUID, err := strconv.ParseUint(storedUID, 10, 32)
	if err != nil {
		lastUID = 0
	}

	criteria := &imap.SearchCriteria{}
	if lastUID > 0 {
		criteria.UID = []imap.UIDSet{{imap.UIDRange{Start: imap.UID(lastUID + 1), Stop: 0}}}
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.cfg.Folder, err)
	}
	allUIDs := searchData.AllUIDs()
	if len(allUIDs) == 0 {
		return nil, nil
	}
	if lastUID == 0 {
		// First run: seed the high-water mark from the current mailbox
		// state without reporting the whole inbox as new.
		c.advanceHighWater(highestUID(allUIDs))
		return nil, nil
	}

	uidSet := imap.UIDSet{}
	for _, uid := range allUIDs {
		uidSet.AddNum(uid)
	}

	fetchCmd := client.Fetch(uidSet, &imap.FetchOptions{
		UID: true, Envelope: true, BodySection: []*imap.FetchItemBodySection{{}},
	})

	var out []NormalizedEvent
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		ev, ok := c.parseMessage(msg)
		if ok {
			out = append(out, ev)
		}
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	c.advanceHighWater(highestUID(allUIDs))
	return out, nil
}

func highestUID(uids []imap.UID) uint32 {
	var highest uint32
	for _, u := range uids {
		if uint32(u) > highest {
			highest = uint32(u)
		}
	}
	return highest
}

func (c *IMAPCollector) advanceHighWater(uid uint32) {
	if uid == 0 {
		return
	}
	if err := c.s.SetPreference(c.highWaterKey(), strconv.FormatUint(uint64(uid), 10), 1.0, "imap_poll"); err != nil {
		c.log.Warn("failed to advance high-water mark", "error", err)
	}
}

func (c *IMAPCollector) parseMessage(msg *imapclient.FetchMessageData) (NormalizedEvent, bool) {
	var ev NormalizedEvent
	ev.Source = "gmail"
	ev.EventType = "email_received"
	ev.Metadata = map[string]any{"account": c.cfg.Account, "folder": c.cfg.Folder}

	var uid uint32
	var bodyText string
	for {
		item := msg.Next()
		if item == nil {
			break
		}
		switch data := item.(type) {
		case imapclient.FetchItemDataUID:
			uid = uint32(data.UID)
		case imapclient.FetchItemDataEnvelope:
			if data.Envelope != nil {
				ev.Timestamp = data.Envelope.Date
				ev.Title = data.Envelope.Subject
				if len(data.Envelope.From) > 0 {
					ev.Metadata["from"] = formatAddress(data.Envelope.From[0])
				}
			}
		case imapclient.FetchItemDataBodySection:
			raw, _ := io.ReadAll(data.Literal)
			bodyText = extractPlainText(raw)
		}
	}
	if uid == 0 {
		return ev, false
	}
	ev.SourceID = strconv.FormatUint(uint64(uid), 10)
	ev.Body = truncateBody(bodyText, 4000)
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	return ev, true
}

func formatAddress(addr imap.Address) string {
	email := addr.Addr()
	if addr.Name != "" {
		return addr.Name + " <" + email + ">"
	}
	return email
}

// extractPlainText MIME-decodes a raw RFC 822 message and returns its
// text/plain part, falling back to a stripped text/html part, falling
// back to the raw bytes if MIME parsing fails entirely (e.g. a
// malformed or non-MIME message).
func extractPlainText(raw []byte) string {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil {
		return fallbackText(raw)
	}

	mr := entity.MultipartReader()
	if mr == nil {
		return partText(entity)
	}

	var htmlPart string
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		mediaType, _, _ := part.Header.ContentType()
		switch {
		case strings.HasPrefix(mediaType, "text/plain"):
			return partText(part)
		case strings.HasPrefix(mediaType, "text/html") && htmlPart == "":
			htmlPart = partText(part)
		}
	}
	if htmlPart != "" {
		return stripHTML(htmlPart)
	}
	return fallbackText(raw)
}

func partText(e *message.Entity) string {
	b, err := io.ReadAll(e.Body)
	if err != nil {
		return ""
	}
	mediaType, _, _ := e.Header.ContentType()
	text := string(b)
	if strings.HasPrefix(mediaType, "text/html") {
		return stripHTML(text)
	}
	return text
}

// fallbackText handles raw bytes that failed MIME parsing: strip markup
// if it looks like HTML, otherwise return as-is.
func fallbackText(raw []byte) string {
	s := string(raw)
	if looksLikeHTML(s) {
		return stripHTML(s)
	}
	return s
}

// looksLikeHTML sniffs for an HTML document so plain-text bodies are never
// run through the tokenizer needlessly.
func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<body") || strings.Contains(lower, "<div")
}

// stripHTML extracts visible text from an HTML body so indexing (FTS,
// Memory) never stores markup — grounded on the teacher's
// internal/fetch.stripTags tokenizer fallback, generalized from web-page
// extraction to email-body extraction.
func stripHTML(s string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return collapseWhitespace(b.String())
		case html.TextToken:
			b.WriteString(tokenizer.Token().Data)
			b.WriteString(" ")
		}
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateBody(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// ImportVCard decodes a vCard stream into upsertable contacts — the bulk
// contact-sync path the distilled spec didn't mention but the original
// Gmail contact sync implies (SPEC_FULL.md domain stack). Each decoded
// card is upserted immediately so a partial/corrupt stream still commits
// everything read before the failure.
func ImportVCard(s *store.Store, r io.Reader) (int, error) {
	dec := vcard.NewDecoder(r)
	imported := 0
	for {
		card, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("decode vcard entry %d: %w", imported, err)
		}
		email := firstValue(card, vcard.FieldEmail)
		if email == "" {
			continue
		}
		name := firstValue(card, vcard.FieldFormattedName)
		org := firstValue(card, vcard.FieldOrganization)
		notes := firstValue(card, vcard.FieldNote)
		if _, err := s.UpsertContact(store.Contact{
			Email:        strings.ToLower(email),
			Name:         name,
			Organization: org,
			Notes:        notes,
		}); err != nil {
			return imported, fmt.Errorf("upsert contact %s: %w", email, err)
		}
		imported++
	}
	return imported, nil
}

func firstValue(card vcard.Card, field string) string {
	if vs := card[field]; len(vs) > 0 {
		return vs[0].Value
	}
	return ""
}
