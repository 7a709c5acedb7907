package advisor

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/valyala/fasttemplate"

	"github.com/spance/dermascan-go/constants"
	"github.com/spance/dermascan-go/pipeline/definitions"
	"github.com/spance/dermascan-go/pipeline/helper"
	"github.com/spance/dermascan-go/utils"
)

// Advisor asks an OpenAI-compatible vision model for care notes on a
// diagnosis result image.
type Advisor struct {
	config *definitions.AdvisorConfig
	client *openai.Client
}

func NewAdvisor(cfg *definitions.AdvisorConfig) *Advisor {
	if cfg == nil {
		cfg = &definitions.AdvisorConfig{}
	}
	copied := *cfg
	cfg = &copied
	if cfg.ModelName == "" {
		cfg.ModelName = constants.DefaultAdvisorModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = constants.DefaultAdvisorMaxTokens
	}
	openaiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openaiCfg.BaseURL = cfg.BaseURL
	}
	return &Advisor{
		config: cfg,
		client: openai.NewClientWithConfig(openaiCfg),
	}
}

type Advice struct {
	Text             string
	TimeToFirstToken *float64
	TotalTime        float64
}

// SystemPrompt renders the prompt template for today's date and the
// configured language.
func (a *Advisor) SystemPrompt(now time.Time) string {
	tpl := constants.AdvisorPrompt_EN
	if a.config.Lang == "cn" {
		tpl = constants.AdvisorPrompt_ZH
	}
	return fasttemplate.ExecuteString(tpl, "{{ ", " }}", map[string]interface{}{
		"date": now.Format("2006-01-02"),
		"lang": helper.LangName(a.config.Lang),
	})
}

// Advise streams care notes for bitmap.
func (a *Advisor) Advise(ctx context.Context, bitmap *definitions.Bitmap) (*Advice, error) {
	if bitmap == nil {
		return nil, errors.New("no result to advise on")
	}
	startTime := time.Now()

	userMsg, err := helper.CreateUserMessage(helper.GetMessage("advice", a.config.Lang), bitmap)
	if err != nil {
		return nil, err
	}
	messages := []openai.ChatCompletionMessage{
		helper.CreateSystemMessage(a.SystemPrompt(startTime)),
		userMsg,
	}
	helper.PrintChatMessage(&messages[len(messages)-1])

	req := openai.ChatCompletionRequest{
		Model:               a.config.ModelName,
		Messages:            messages,
		MaxCompletionTokens: a.config.MaxTokens,
		Temperature:         a.config.Temperature,
		Stream:              true,
	}

	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		log.Error().Err(err).Msg("CreateChatCompletionStream failed")
		return nil, err
	}
	defer stream.Close()

	var (
		content          strings.Builder
		timeToFirstToken *float64
	)
	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			log.Error().Err(err).Msg("advisor stream failed")
			return nil, err
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		if timeToFirstToken == nil {
			t := time.Since(startTime).Seconds()
			timeToFirstToken = &t
		}
		content.WriteString(resp.Choices[0].Delta.Content)
	}

	advice := &Advice{
		Text:             strings.TrimSpace(content.String()),
		TimeToFirstToken: timeToFirstToken,
		TotalTime:        time.Since(startTime).Seconds(),
	}
	log.Trace().Str("advice", utils.JsonString(advice)).Msg("💭 model response")
	return advice, nil
}
