package mail

import (
	"context"
	"fmt"
	"io"
	"net/textproto"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	gomail "github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"

	"github.com/billsync/billsync/config"
	"github.com/billsync/billsync/internal/apperror"
)

// IMAPSource fetches notification mail over IMAP with TLS. Each call
// opens a fresh session; the bank sends at most a handful of messages a
// day, so holding a connection open buys nothing.
type IMAPSource struct {
	conf config.MailConfig
}

func NewIMAPSource(conf config.MailConfig) *IMAPSource {
	return &IMAPSource{conf: conf}
}

func (s *IMAPSource) connect(ctx context.Context) (*client.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.New(apperror.ErrConnection, "Fetch cancelled", err)
	}
	addr := fmt.Sprintf("%s:%d", s.conf.Host, s.conf.Port)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, apperror.New(apperror.ErrConnection, fmt.Sprintf("Failed to connect to mail server %s", addr), err)
	}
	if err := c.Login(s.conf.Username, s.conf.AuthCode); err != nil {
		_ = c.Logout()
		return nil, apperror.New(apperror.ErrAuthentication, "Mail server rejected the credentials", err)
	}
	return c, nil
}

// Ping verifies connectivity and credentials without touching messages.
func (s *IMAPSource) Ping(ctx context.Context) error {
	c, err := s.connect(ctx)
	if err != nil {
		return err
	}
	return c.Logout()
}

// FetchMessages returns messages received within [since, until]. The IMAP
// SINCE criterion is date-granular, so the window is re-checked here
// against the envelope timestamp before a message is returned.
func (s *IMAPSource) FetchMessages(ctx context.Context, since, until time.Time) ([]Message, error) {
	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = c.Logout()
	}()

	if _, err := c.Select(s.conf.Folder, true); err != nil {
		return nil, apperror.New(apperror.ErrConnection, fmt.Sprintf("Failed to select folder '%s'", s.conf.Folder), err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, apperror.New(apperror.ErrConnection, "Mailbox search failed", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	var fetched []Message
	for msg := range messages {
		if msg.Envelope == nil {
			continue
		}
		if msg.Envelope.Date.Before(since) || msg.Envelope.Date.After(until) {
			continue
		}
		body := ""
		if r := msg.GetBody(section); r != nil {
			body, err = extractBody(r)
			if err != nil {
				logrus.WithField("uid", msg.Uid).Debugf("failed to extract mail body: %v", err)
			}
		}
		fetched = append(fetched, Message{
			ID:      messageID(msg),
			Subject: msg.Envelope.Subject,
			Sender:  senderAddress(msg.Envelope),
			Date:    msg.Envelope.Date,
			Body:    body,
		})
	}
	if err := <-done; err != nil {
		return nil, apperror.New(apperror.ErrConnection, "Message fetch failed", err)
	}
	return fetched, nil
}

// MarkRead flags the given messages as seen, looked up by Message-ID.
func (s *IMAPSource) MarkRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	c, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Logout()
	}()

	if _, err := c.Select(s.conf.Folder, false); err != nil {
		return apperror.New(apperror.ErrConnection, fmt.Sprintf("Failed to select folder '%s'", s.conf.Folder), err)
	}

	seqset := new(imap.SeqSet)
	for _, id := range ids {
		criteria := imap.NewSearchCriteria()
		criteria.Header = textproto.MIMEHeader{"Message-Id": {id}}
		uids, err := c.UidSearch(criteria)
		if err != nil {
			return apperror.New(apperror.ErrConnection, "Mailbox search failed", err)
		}
		if len(uids) > 0 {
			seqset.AddNum(uids...)
		}
	}
	if seqset.Empty() {
		return nil
	}

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := c.UidStore(seqset, item, flags, nil); err != nil {
		return apperror.New(apperror.ErrConnection, "Failed to mark messages as read", err)
	}
	return nil
}

func messageID(msg *imap.Message) string {
	if msg.Envelope.MessageId != "" {
		return msg.Envelope.MessageId
	}
	return fmt.Sprintf("uid-%d", msg.Uid)
}

func senderAddress(envelope *imap.Envelope) string {
	if len(envelope.From) == 0 {
		return ""
	}
	return envelope.From[0].Address()
}

// extractBody pulls the text content out of a raw message. A text/plain
// part wins; text/html is kept as a fallback and reduced to plain text.
func extractBody(r io.Reader) (string, error) {
	mr, err := gomail.CreateReader(r)
	if err != nil {
		return "", err
	}

	var plain, html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		h, ok := p.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := h.ContentType()
		if err != nil {
			continue
		}
		switch contentType {
		case "text/plain":
			if plain == "" {
				content, err := io.ReadAll(p.Body)
				if err != nil {
					return "", err
				}
				plain = string(content)
			}
		case "text/html":
			if html == "" {
				content, err := io.ReadAll(p.Body)
				if err != nil {
					return "", err
				}
				html = string(content)
			}
		}
	}

	if plain != "" {
		return plain, nil
	}
	return htmlToText(html), nil
}

// htmlToText strips tags from an HTML body, turning block boundaries into
// newlines so the extraction regexes still see line structure.
func htmlToText(html string) string {
	if html == "" {
		return ""
	}
	replacer := strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n", "</div>", "\n", "</tr>", "\n")
	html = replacer.Replace(html)

	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	text := b.String()
	for _, entity := range [][2]string{{"&nbsp;", " "}, {"&amp;", "&"}, {"&lt;", "<"}, {"&gt;", ">"}, {"&quot;", "\""}, {"&#39;", "'"}} {
		text = strings.ReplaceAll(text, entity[0], entity[1])
	}
	return strings.TrimSpace(text)
}
