package negotiate

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/cobrex/cobrex/pkg/models"
)

const systemPrompt = "You are a debt collection negotiator. Draft one short, " +
	"polite opening message proposing a settlement to the debtor. Stay factual, " +
	"respectful and compliant with consumer protection rules. Reply with the " +
	"message text only."

// OpenAIAssistant drafts negotiation messages with the OpenAI chat API.
type OpenAIAssistant struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAIAssistant creates an assistant backed by OpenAI. An empty
// model selects gpt-4o-mini.
func NewOpenAIAssistant(apiKey string, model string) (*OpenAIAssistant, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key must be provided")
	}

	if model == "" {
		model = openai.ChatModelGPT4oMini
	}

	return &OpenAIAssistant{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// Draft asks the model for one negotiation opener.
func (a *OpenAIAssistant) Draft(ctx context.Context, objective string, snapshot *models.DebtorSnapshot) (string, error) {
	user := fmt.Sprintf(
		"Debtor: %s. Outstanding amount: %.2f. Due since: %s. Objective: %s.",
		snapshot.Name,
		snapshot.DebtValue,
		snapshot.DueDate.Format("2006-01-02"),
		objective,
	)

	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return completion.Choices[0].Message.Content, nil
}

// TemplateAssistant drafts a fixed settlement opener without calling a
// model. It is used in development when no OpenAI key is configured.
type TemplateAssistant struct{}

// Draft produces a deterministic opener from the snapshot.
func (TemplateAssistant) Draft(_ context.Context, objective string, snapshot *models.DebtorSnapshot) (string, error) {
	if objective == "" {
		objective = "settle the outstanding amount"
	}

	return fmt.Sprintf(
		"Hello %s, we would like to %s. Your outstanding amount is %.2f. Reply to this message to talk to us.",
		snapshot.Name, objective, snapshot.DebtValue,
	), nil
}
