package anthropic

import (
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/flemzord/aether/internal/provider"
)

// convertRequest builds Messages API parameters. System messages go to the
// dedicated System field wherever they appear; the API has no inline system
// role.
func convertRequest(req provider.CompletionRequest, cfg *Config) sdkanthropic.MessageNewParams {
	params := sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(cfg.Model),
		MaxTokens: int64(cfg.MaxTokens),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if req.Temperature != nil {
		// Anthropic accepts [0, 1]; OpenAI-style values above 1 are clamped.
		params.Temperature = sdkanthropic.Float(min(*req.Temperature, 1))
	}

	for _, m := range req.Messages {
		switch m.Role {
		case provider.MessageRoleSystem:
			params.System = append(params.System, sdkanthropic.TextBlockParam{Text: m.Content})
		case provider.MessageRoleUser:
			params.Messages = appendTurn(params.Messages, sdkanthropic.MessageParamRoleUser, m.Content)
		case provider.MessageRoleAssistant:
			params.Messages = appendTurn(params.Messages, sdkanthropic.MessageParamRoleAssistant, m.Content)
		}
	}
	return params
}

// appendTurn adds a text turn, merging it into the previous message when the
// role repeats (the API requires alternating roles).
func appendTurn(msgs []sdkanthropic.MessageParam, role sdkanthropic.MessageParamRole, text string) []sdkanthropic.MessageParam {
	block := sdkanthropic.NewTextBlock(text)
	if n := len(msgs); n > 0 && msgs[n-1].Role == role {
		msgs[n-1].Content = append(msgs[n-1].Content, block)
		return msgs
	}
	return append(msgs, sdkanthropic.MessageParam{
		Role:    role,
		Content: []sdkanthropic.ContentBlockParamUnion{block},
	})
}

// convertResponse joins the text blocks of msg.
func convertResponse(msg *sdkanthropic.Message) provider.CompletionResponse {
	var parts []string
	for _, block := range msg.Content {
		if v, ok := block.AsAny().(sdkanthropic.TextBlock); ok {
			parts = append(parts, v.Text)
		}
	}

	return provider.CompletionResponse{
		Content:      strings.Join(parts, "\n"),
		FinishReason: convertStopReason(msg.StopReason),
		Usage: provider.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

func convertStopReason(reason sdkanthropic.StopReason) provider.FinishReason {
	switch reason {
	case sdkanthropic.StopReasonMaxTokens:
		return provider.FinishReasonLength
	case sdkanthropic.StopReasonRefusal:
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonStop
	}
}
