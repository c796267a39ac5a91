package telegram

import (
	"fmt"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DescribeAttachments renders the media of a message as text lines. Files
// are not downloaded; the completion request carries text only.
func DescribeAttachments(msg *tgbotapi.Message) []string {
	parts := make([]string, 0, 8)

	if msg.Document != nil {
		parts = append(parts, describeDocument(msg.Document))
	}
	if len(msg.Photo) > 0 {
		parts = append(parts, describePhoto(msg.Photo))
	}
	if msg.Audio != nil {
		parts = append(parts, describeAudio(msg.Audio))
	}
	if msg.Voice != nil {
		parts = append(parts, describeVoice(msg.Voice))
	}
	if msg.Video != nil {
		parts = append(parts, describeVideo(msg.Video))
	}
	if msg.VideoNote != nil {
		parts = append(parts, describeVideoNote(msg.VideoNote))
	}
	if msg.Sticker != nil {
		parts = append(parts, fmt.Sprintf(
			"Sticker received: set %s, emoji %s",
			msg.Sticker.SetName, msg.Sticker.Emoji,
		))
	}
	if msg.Animation != nil {
		parts = append(parts, describeAnimation(msg.Animation))
	}
	if msg.ForwardFrom != nil {
		parts = append(parts, "Forwarded from "+userLabel(msg.ForwardFrom)+".")
	}

	return parts
}

func describeDocument(doc *tgbotapi.Document) string {
	return fmt.Sprintf(
		"Document: %s (%d bytes, mime %s).",
		doc.FileName, doc.FileSize, doc.MimeType,
	)
}

// describePhoto reports the largest size Telegram sent.
func describePhoto(photos []tgbotapi.PhotoSize) string {
	best := photos[len(photos)-1]
	return fmt.Sprintf(
		"Photo: resolution %dx%d (%d bytes).",
		best.Width, best.Height, best.FileSize,
	)
}

func describeAudio(audio *tgbotapi.Audio) string {
	return fmt.Sprintf(
		"Audio: %s (%d sec, %d bytes, mime %s).",
		audio.Title, audio.Duration, audio.FileSize, audio.MimeType,
	)
}

func describeVoice(voice *tgbotapi.Voice) string {
	return fmt.Sprintf(
		"Voice message: duration %d sec (%d bytes, mime %s).",
		voice.Duration, voice.FileSize, voice.MimeType,
	)
}

func describeVideo(video *tgbotapi.Video) string {
	return fmt.Sprintf(
		"Video: resolution %dx%d (%d sec, %d bytes, mime %s).",
		video.Width, video.Height, video.Duration,
		video.FileSize, video.MimeType,
	)
}

func describeVideoNote(note *tgbotapi.VideoNote) string {
	return fmt.Sprintf(
		"Video note: resolution %dx%d (%d sec, %d bytes).",
		note.Length, note.Length, note.Duration, note.FileSize,
	)
}

func describeAnimation(animation *tgbotapi.Animation) string {
	name := animation.FileName
	if name == "" {
		name = filepath.Base(animation.FileID)
	}
	return fmt.Sprintf(
		"Animation: %s (%d bytes, mime %s).",
		name, animation.FileSize, animation.MimeType,
	)
}
