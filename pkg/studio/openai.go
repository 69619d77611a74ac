package studio

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

var _ TextGenerator = (*OpenAIText)(nil)

// OpenAIText is a TextGenerator backed by an OpenAI-compatible chat
// completions endpoint. It does not support grounding.
type OpenAIText struct {
	Client *openai.Client

	// Model overrides TextRequest.Model when set.
	Model string
}

// NewOpenAIText creates an OpenAIText. baseURL is optional.
func NewOpenAIText(apiKey, baseURL, model string) *OpenAIText {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIText{Client: &client, Model: model}
}

func (o *OpenAIText) GenerateText(ctx context.Context, req *TextRequest) (*TextResponse, error) {
	if req.Grounding {
		return nil, errors.New("studio: openai backend does not support search grounding")
	}
	model := o.Model
	if model == "" {
		model = req.Model
	}
	params := openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "response",
					Schema: req.Schema,
					Strict: param.NewOpt(false),
				},
			},
		}
	}
	resp, err := o.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrEmptyResult)
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, fmt.Errorf("studio: openai refused: %s", choice.Message.Refusal)
	}
	return &TextResponse{Text: choice.Message.Content}, nil
}
