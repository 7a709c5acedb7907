package helper

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/spance/dermascan-go/constants"
	"github.com/spance/dermascan-go/pipeline/definitions"
)

func CreateSystemMessage(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: content,
	}
}

// CreateUserMessage builds a text message with the bitmap attached as a JPEG
// data URL.
func CreateUserMessage(text string, bitmap *definitions.Bitmap) (openai.ChatCompletionMessage, error) {
	msg := openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: text,
			},
		},
	}
	if bitmap == nil || bitmap.Image == nil {
		return msg, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, bitmap.Image, &jpeg.Options{Quality: 85}); err != nil {
		return msg, fmt.Errorf("encode result image: %w", err)
	}
	msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
			Detail: openai.ImageURLDetailLow,
		},
	})
	return msg, nil
}

func PrintChatMessage(msg *openai.ChatCompletionMessage) {
	if msg.Role == openai.ChatMessageRoleSystem {
		return
	}
	if msg.Role == openai.ChatMessageRoleUser {
		for _, part := range msg.MultiContent {
			if part.Type == openai.ChatMessagePartTypeText {
				log.Debug().Msgf("👤 user message: %s", part.Text)
			}
		}
	}
	if msg.Role == openai.ChatMessageRoleAssistant {
		log.Debug().Msgf("🌐 assistant message: %s", msg.Content)
	}
}

func GetMessage(key string, lang string) string {
	if lang == "en" {
		return constants.MESSAGES_EN_MAP[key]
	}
	return constants.MESSAGES_ZH_MAP[key]
}

// FailureBanner renders the banner of a failed run in lang.
func FailureBanner(err *definitions.PipelineError, lang string) string {
	return err.Banner(GetMessage(err.MessageKey(), lang))
}

// LangName is the language name the advisor prompt asks for.
func LangName(lang string) string {
	if lang == "cn" {
		return "中文"
	}
	return "English"
}

// PhaseLine renders a snapshot as one status line.
func PhaseLine(phase definitions.Phase, lang string) string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(GetMessage("phase_"+string(phase.Kind), lang))
	sb.WriteString("] ")

	switch phase.Camera {
	case definitions.CameraBound:
		sb.WriteString(GetMessage("camera_bound", lang))
	case definitions.CameraPermissionDenied:
		sb.WriteString(GetMessage("camera_denied", lang))
	case definitions.CameraFailed:
		sb.WriteString(GetMessage("camera_error", lang))
	default:
		sb.WriteString(GetMessage("camera_unbound", lang))
	}
	sb.WriteString(", lens=")
	sb.WriteString(string(phase.Lens))

	view := phase.View()
	if view.Banner != "" {
		sb.WriteString(" | ")
		sb.WriteString(FailureBanner(phase.Err, lang))
	}
	if view.ShowResult {
		fmt.Fprintf(&sb, " | %dx%d %s", phase.Bitmap.Width, phase.Bitmap.Height, phase.Bitmap.Format)
	}
	if phase.Kind.Busy() {
		fmt.Fprintf(&sb, " (%s)", time.Since(phase.Since).Round(100*time.Millisecond))
	}
	return sb.String()
}
