package mail

import (
	"encoding/base64"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
)

// FromGmail converts a full-format Gmail message into the domain Message.
func FromGmail(msg *gmail.Message) Message {
	m := Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		LabelIDs: append([]string(nil), msg.LabelIds...),
	}

	for _, id := range msg.LabelIds {
		switch id {
		case LabelUnread:
			m.Unread = true
		case LabelStarred:
			m.Starred = true
		case LabelImportant:
			m.Important = true
		}
	}

	if msg.InternalDate > 0 {
		m.Date = time.UnixMilli(msg.InternalDate).UTC()
	}

	if msg.Payload != nil {
		decodeHeaders(msg.Payload.Headers, &m)

		textBody, htmlBody := extractBodies(msg.Payload)
		if htmlBody == "" {
			htmlBody = textBody
		}
		m.Body = htmlBody

		m.Attachments = extractAttachments(msg.Payload)
	}

	return m
}

func decodeHeaders(headers []*gmail.MessagePartHeader, m *Message) {
	for _, header := range headers {
		switch header.Name {
		case "From":
			m.From = ParseAddress(header.Value)
		case "To":
			m.To = ParseAddressList(header.Value)
		case "Cc":
			m.CC = ParseAddressList(header.Value)
		case "Subject":
			m.Subject = header.Value
		case "Date":
			if m.Date.IsZero() {
				if t, err := parseDateHeader(header.Value); err == nil {
					m.Date = t
				}
			}
		}
	}
}

func parseDateHeader(value string) (time.Time, error) {
	layouts := []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05 -0700",
	}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// ParseAddress parses a "Display Name <addr@host>" header value.
func ParseAddress(from string) Address {
	addr := Address{}

	if idx := strings.Index(from, "<"); idx != -1 {
		addr.Name = strings.TrimSpace(from[:idx])
		if endIdx := strings.Index(from[idx:], ">"); endIdx != -1 {
			addr.Email = strings.TrimSpace(from[idx+1 : idx+endIdx])
		}
	} else {
		addr.Email = strings.TrimSpace(from)
	}

	addr.Name = strings.Trim(addr.Name, "\"")

	return addr
}

// ParseAddressList parses a comma-separated address header value.
func ParseAddressList(addresses string) []Address {
	if addresses == "" {
		return nil
	}

	parts := strings.Split(addresses, ",")
	result := make([]Address, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, ParseAddress(trimmed))
		}
	}

	return result
}

func extractBodies(payload *gmail.MessagePart) (textBody, htmlBody string) {
	textBody, htmlBody = bodyFromPart(payload)

	for _, part := range payload.Parts {
		partText, partHTML := bodyFromPart(part)

		if textBody == "" {
			textBody = partText
		}
		if htmlBody == "" {
			htmlBody = partHTML
		}

		if len(part.Parts) > 0 {
			nestedText, nestedHTML := extractBodies(part)
			if textBody == "" {
				textBody = nestedText
			}
			if htmlBody == "" {
				htmlBody = nestedHTML
			}
		}
	}

	return textBody, htmlBody
}

func bodyFromPart(part *gmail.MessagePart) (textBody, htmlBody string) {
	if part.Body == nil || part.Body.Data == "" {
		return "", ""
	}

	switch part.MimeType {
	case "text/plain":
		return DecodeBase64URL(part.Body.Data), ""
	case "text/html":
		return "", DecodeBase64URL(part.Body.Data)
	default:
		return "", ""
	}
}

// DecodeBase64URL decodes Gmail body data, falling back to the raw (unpadded)
// alphabet and finally to the input itself when decoding fails.
func DecodeBase64URL(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return data
		}
	}
	return string(decoded)
}

func extractAttachments(payload *gmail.MessagePart) []Attachment {
	var attachments []Attachment

	if payload.Body != nil && payload.Body.AttachmentId != "" {
		attachments = append(attachments, Attachment{
			Name:         payload.Filename,
			MimeType:     payload.MimeType,
			Size:         payload.Body.Size,
			AttachmentID: payload.Body.AttachmentId,
			PartID:       payload.PartId,
		})
	}

	for _, part := range payload.Parts {
		if part.Body != nil && part.Body.AttachmentId != "" {
			attachments = append(attachments, Attachment{
				Name:         part.Filename,
				MimeType:     part.MimeType,
				Size:         part.Body.Size,
				AttachmentID: part.Body.AttachmentId,
				PartID:       part.PartId,
			})
		}

		if len(part.Parts) > 0 {
			attachments = append(attachments, extractAttachments(part)...)
		}
	}

	return attachments
}
