package thread

import (
	"regexp"
	"strings"

	"github.com/inboxcore/inboxcore/internal/mail"
)

var cidRe = regexp.MustCompile(`(?i)src=["']cid:([^"']+)["']`)

// AttachmentURLResolver turns a (messageID, attachmentID) pair into a URL
// the renderer can load.
type AttachmentURLResolver func(messageID, attachmentID string) string

// ResolveInlineImages rewrites cid: image references to resolvable URLs by
// matching the content ID against the message's attachments: exact
// attachment-ID equality first, then name containment as a best-effort
// fallback. Unresolved references are left as-is for the renderer's
// broken-image fallback.
func ResolveInlineImages(body, messageID string, attachments []mail.Attachment, resolve AttachmentURLResolver) string {
	if resolve == nil || len(attachments) == 0 {
		return body
	}

	return cidRe.ReplaceAllStringFunc(body, func(match string) string {
		cid := cidRe.FindStringSubmatch(match)[1]
		att, ok := matchAttachment(cid, attachments)
		if !ok {
			return match
		}
		return `src="` + resolve(messageID, att.AttachmentID) + `"`
	})
}

func matchAttachment(cid string, attachments []mail.Attachment) (mail.Attachment, bool) {
	for _, att := range attachments {
		if att.AttachmentID != "" && att.AttachmentID == cid {
			return att, true
		}
	}
	// The provider does not always supply a clean content ID; fall back to
	// name containment either way round.
	lower := strings.ToLower(cid)
	for _, att := range attachments {
		name := strings.ToLower(att.Name)
		if name == "" {
			continue
		}
		if strings.Contains(lower, name) || strings.Contains(name, lower) {
			return att, true
		}
	}
	return mail.Attachment{}, false
}

type attachmentKey struct {
	name     string
	size     int64
	mimeType string
}

// DedupAttachments collapses attachments across the whole thread by
// equality of (name, size, mimeType). Same-named forwarded signatures and
// logos are the common case being collapsed.
func DedupAttachments(msgs []mail.Message) []mail.Attachment {
	seen := make(map[attachmentKey]struct{})
	var out []mail.Attachment

	for i := range msgs {
		for _, att := range msgs[i].Attachments {
			key := attachmentKey{name: att.Name, size: att.Size, mimeType: att.MimeType}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, att)
		}
	}
	return out
}

// FilterNoise drops attachments below minSize bytes or whose name matches a
// known logo/icon/signature pattern, keeping "N attachments" honest.
func FilterNoise(attachments []mail.Attachment, minSize int64, noisePatterns []string) []mail.Attachment {
	var out []mail.Attachment

	for _, att := range attachments {
		if att.Size > 0 && att.Size < minSize {
			continue
		}
		if isNoiseName(att.Name, noisePatterns) {
			continue
		}
		out = append(out, att)
	}
	return out
}

func isNoiseName(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
