package studio

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ImprovePrompt asks gen to rewrite text into a more detailed, specific
// prompt without fulfilling it.
func ImprovePrompt(ctx context.Context, gen TextGenerator, model, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("studio: nothing to improve")
	}
	prompt := "You are a prompt-enhancing assistant. Rewrite the user's prompt so it is more detailed, specific and clear, " +
		"to get the best possible result from a generative model. Do not fulfill the prompt; only improve it. " +
		"Return only the improved prompt. User's prompt: " + strconv.Quote(text)
	resp, err := gen.GenerateText(ctx, &TextRequest{Model: model, Prompt: prompt})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// GenerateTitle asks gen for a short conversation title for the first
// message of a session. Quotes are stripped from the answer.
func GenerateTitle(ctx context.Context, gen TextGenerator, model, firstMessage string) (string, error) {
	prompt := "Create a very short, concise title (4-5 words max) for a chat conversation that starts with this prompt: " +
		strconv.Quote(firstMessage) + ". Just return the title, nothing else."
	resp, err := gen.GenerateText(ctx, &TextRequest{Model: model, Prompt: prompt})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ReplaceAll(resp.Text, `"`, "")), nil
}
