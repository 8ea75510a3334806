package orchestrator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"tradedesk/internal/domain"
)

// Attachment is one uploaded file accompanying a user message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// buildParts assembles the model input for a turn: the user text first,
// then one part per attachment. Images and PDFs pass through as inline
// binary; text-like files are framed with their filename; anything
// unreadable degrades to a placeholder note so the turn still proceeds.
func buildParts(text string, attachments []Attachment) []domain.Part {
	parts := []domain.Part{}
	if text != "" {
		parts = append(parts, domain.TextPart(text))
	}
	for _, att := range attachments {
		parts = append(parts, attachmentPart(att))
	}
	if len(parts) == 0 {
		parts = append(parts, domain.TextPart(" "))
	}
	return parts
}

func attachmentPart(att Attachment) domain.Part {
	ct := strings.ToLower(att.ContentType)
	switch {
	case strings.HasPrefix(ct, "image/"), ct == "application/pdf":
		if len(att.Data) == 0 {
			return domain.TextPart(fmt.Sprintf("\n[Error processing file %s]\n", att.Name))
		}
		return domain.Part{MIMEType: att.ContentType, Data: att.Data}
	case strings.HasPrefix(ct, "text/"), ct == "application/json":
		return textFilePart(att)
	default:
		// Code files and the like often arrive with a generic content
		// type; take them as text when the bytes allow it.
		if utf8.Valid(att.Data) && len(att.Data) > 0 {
			return textFilePart(att)
		}
		return domain.TextPart(fmt.Sprintf("\n[File: %s] (Unsupported format)\n", att.Name))
	}
}

func textFilePart(att Attachment) domain.Part {
	if !utf8.Valid(att.Data) {
		return domain.TextPart(fmt.Sprintf("\n[File: %s] (Unsupported format)\n", att.Name))
	}
	return domain.TextPart(fmt.Sprintf("\n[File: %s]\n%s\n", att.Name, att.Data))
}
