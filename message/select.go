package message

// DisplayFormat is the text format preferred for showing a message.
type DisplayFormat string

const (
	DisplayPlain DisplayFormat = "plain"
	DisplayHTML  DisplayFormat = "html"
)

// DisplayablePart returns the text part to show for the message, or nil if it has none.
// Inside multipart/alternative the part matching format wins; otherwise the first inline plain or html text is used.
func DisplayablePart(root Part, format DisplayFormat) *TextPart {
	switch part := root.(type) {
	case *TextPart:
		if isBodyText(part) {
			return part
		}

	case *MultiPart:
		if part.Header().Subtype == "alternative" {
			return chooseAlternative(part, format)
		}

		for _, child := range part.Children {
			if text := DisplayablePart(child, format); text != nil {
				return text
			}
		}
	}

	return nil
}

func chooseAlternative(part *MultiPart, format DisplayFormat) *TextPart {
	var fallback *TextPart

	for _, child := range part.Children {
		text := DisplayablePart(child, format)
		if text == nil {
			continue
		}

		if text.Header().Subtype == string(format) {
			return text
		}

		if fallback == nil {
			fallback = text
		}
	}

	return fallback
}

func isBodyText(part *TextPart) bool {
	header := part.Header()

	if header.IsAttachment() {
		return false
	}

	return header.Subtype == "plain" || header.Subtype == "html"
}

// Attachments returns the leaves shown as attachments: explicit text attachments, text that is neither plain nor
// html, and every non-text leaf. The displayable part is never included.
func Attachments(root Part, format DisplayFormat) []Leaf {
	displayable := DisplayablePart(root, format)

	var attachments []Leaf

	Walk(root, func(part Part) {
		switch part := part.(type) {
		case *TextPart:
			if part != displayable && !isBodyText(part) {
				attachments = append(attachments, part)
			}

		case *ImagePart, *ApplicationPart, *AudioPart, *VideoPart, *MessagePart:
			attachments = append(attachments, part.(Leaf))
		}
	})

	return attachments
}
