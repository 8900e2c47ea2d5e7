package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/at-ishikawa/mindbank/internal/config"
	"github.com/at-ishikawa/mindbank/internal/inference"
	"github.com/at-ishikawa/mindbank/internal/metrics"
)

var errEmptyContent = errors.New("empty response content")

type Client struct {
	httpClient  *resty.Client
	model       string
	speechModel string
	hasAPIKey   bool
	recorder    metrics.Recorder
}

func NewClient(cfg config.OpenAIConfig, recorder metrics.Recorder) *Client {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	return &Client{
		httpClient:  client,
		model:       cfg.Model,
		speechModel: cfg.SpeechModel,
		hasAPIKey:   cfg.APIKey != "",
		recorder:    recorder,
	}
}

func (client *Client) Close() error {
	return client.httpClient.Close()
}

func (client *Client) metricsRecorder() metrics.Recorder {
	if client.recorder == nil {
		return metrics.Nop{}
	}
	return client.recorder
}

// GetModel returns the model name configured for this client
func (client *Client) GetModel() string {
	return client.model
}

type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int           `json:"index"`
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type ChoiceMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// complete sends one chat completion and returns the assistant content.
func (client *Client) complete(ctx context.Context, service string, requestBody ChatCompletionRequest) (content string, err error) {
	start := time.Now()
	defer func() {
		metrics.Since(client.metricsRecorder(), service, start, err)
	}()

	response, err := client.httpClient.R().
		SetContext(ctx).
		SetBody(requestBody).
		SetResult(&ChatCompletionResponse{}).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("httpClient.Post > %w", err)
	}
	if response.IsError() {
		return "", fmt.Errorf("response error %d: %s", response.StatusCode(), response.String())
	}

	responseBody, _ := response.Result().(*ChatCompletionResponse)
	if responseBody == nil || len(responseBody.Choices) == 0 {
		return "", fmt.Errorf("empty response body or choices: %s", response.String())
	}

	content = responseBody.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", errEmptyContent
	}
	slog.Default().Debug("openai response content",
		"service", service,
		"request", requestBody,
		"response", content,
	)
	return content, nil
}

func (client *Client) chat(systemPrompt, userMessage string, temperature float32) ChatCompletionRequest {
	return ChatCompletionRequest{
		Model:       client.model,
		Temperature: temperature,
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: userMessage},
		},
	}
}

const classifySystemPrompt = `You sort text a user captured into a personal knowledge bank.

Decide whether the text is a single word or short idiom to be defined ("word"), or a quote or thought ("quote").

For a quote, the user often speaks the attribution aloud, as in "... by Marcus Aurelius" or "... from Meditations".
Remove any such attribution phrase from the quoted content and report it separately in "author" and "source".
Return the quotation body without the attribution as "cleaned_text".
Give a one or two sentence "meaning" explaining its significance.

For a word, give a dictionary-style "definition", its "partOfSpeech" and an "example" sentence.
"cleaned_text" is the word itself.

Always give exactly 3 short lowercase topical "tags".

Return ONLY a JSON object with this schema:
{
  "type": "word" | "quote",
  "cleaned_text": "...",
  "definition": "dictionary definition if word",
  "partOfSpeech": "noun/verb/etc if word",
  "example": "example sentence if word",
  "meaning": "explanation of the quote's significance if quote",
  "author": "author name if known, else null",
  "source": "book title or other source if known, else null",
  "tags": ["tag", "tag", "tag"]
}`

// Classify implements the inference.Client interface
func (client *Client) Classify(ctx context.Context, params inference.ClassifyRequest) (inference.Classification, error) {
	text := strings.TrimSpace(params.Text)
	if text == "" {
		return inference.Classification{}, &inference.ClassificationError{Reason: "empty input"}
	}

	userMessage := fmt.Sprintf("Text: %q", text)
	if params.Context != nil {
		userMessage += fmt.Sprintf("\nThe user is reading %q", params.Context.Title)
		if params.Context.Author != "" {
			userMessage += fmt.Sprintf(" by %s", params.Context.Author)
		}
		userMessage += "."
	}

	content, err := client.complete(ctx, "openai_classify", client.chat(classifySystemPrompt, userMessage, 0.2))
	if err != nil {
		return inference.Classification{}, &inference.ClassificationError{Reason: "request failed", Err: err}
	}

	var decoded inference.Classification
	if err := inference.DecodeJSONObject(content, &decoded); err != nil {
		slog.Default().Error("Failed to parse classification response",
			"content", content,
			"error", err)
		return inference.Classification{}, &inference.ClassificationError{Reason: "malformed response", Err: err}
	}
	if decoded.Type != "word" && decoded.Type != "quote" {
		return inference.Classification{}, &inference.ClassificationError{Reason: fmt.Sprintf("unexpected type %q", decoded.Type)}
	}

	if strings.TrimSpace(decoded.CleanedText) == "" {
		decoded.CleanedText = text
	}
	decoded.CleanedText = strings.TrimSpace(decoded.CleanedText)
	if params.Context != nil {
		decoded.Source = params.Context.Title
		decoded.Author = params.Context.Author
	}
	return decoded, nil
}

const translateSystemPrompt = `You translate entries of a personal knowledge bank.

Return ONLY a JSON object.
For a word: {"word": "<translated word>", "definition": "<translated definition>", "lang": "<target language>"}
For anything else: {"text": "<translated text>", "lang": "<target language>"}`

// Translate implements the inference.Client interface
func (client *Client) Translate(ctx context.Context, params inference.TranslateRequest) (inference.Translation, error) {
	if strings.TrimSpace(params.Text) == "" {
		return inference.Translation{}, &inference.TranslationError{Reason: "empty input"}
	}
	if strings.TrimSpace(params.TargetLanguage) == "" {
		return inference.Translation{}, &inference.TranslationError{Reason: "target language is required"}
	}

	payload, err := json.Marshal(params)
	if err != nil {
		return inference.Translation{}, &inference.TranslationError{Reason: "encode request", Err: err}
	}

	content, err := client.complete(ctx, "openai_translate", client.chat(translateSystemPrompt, string(payload), 0.2))
	if err != nil {
		return inference.Translation{}, &inference.TranslationError{Reason: "request failed", Err: err}
	}

	var decoded inference.Translation
	if err := inference.DecodeJSONObject(content, &decoded); err != nil {
		return inference.Translation{}, &inference.TranslationError{Reason: "malformed response", Err: err}
	}
	if params.IsWord && decoded.Word == "" {
		return inference.Translation{}, &inference.TranslationError{Reason: "response has no word"}
	}
	if !params.IsWord && decoded.Text == "" {
		return inference.Translation{}, &inference.TranslationError{Reason: "response has no text"}
	}
	if decoded.Lang == "" {
		decoded.Lang = params.TargetLanguage
	}
	return decoded, nil
}

const insightSystemPrompt = `You read the quotes a user saved from one book and write a short thematic insight.

Return ONLY a JSON object:
{"summary": "<two to four sentences on the themes connecting the quotes>", "tags": ["tag", "tag", "tag"]}`

// GenerateInsight implements the inference.Client interface
func (client *Client) GenerateInsight(ctx context.Context, params inference.InsightRequest) (inference.Insight, error) {
	if len(params.Quotes) == 0 {
		return inference.Insight{}, &inference.InsightError{Reason: "no quotes"}
	}

	var userMessage strings.Builder
	fmt.Fprintf(&userMessage, "Book: %s\n", params.Title)
	if params.Author != "" {
		fmt.Fprintf(&userMessage, "Author: %s\n", params.Author)
	}
	userMessage.WriteString("Quotes:\n")
	for _, quote := range params.Quotes {
		fmt.Fprintf(&userMessage, "- %s\n", quote)
	}

	content, err := client.complete(ctx, "openai_insight", client.chat(insightSystemPrompt, userMessage.String(), 0.7))
	if err != nil {
		return inference.Insight{}, &inference.InsightError{Reason: "request failed", Err: err}
	}

	var decoded inference.Insight
	if err := inference.DecodeJSONObject(content, &decoded); err != nil {
		return inference.Insight{}, &inference.InsightError{Reason: "malformed response", Err: err}
	}
	if strings.TrimSpace(decoded.Summary) == "" {
		return inference.Insight{}, &inference.InsightError{Reason: "response has no summary"}
	}
	return decoded, nil
}
