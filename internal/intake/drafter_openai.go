package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/emmaduprey09/Health-Appointment-App/pkg/logging"
)

const defaultDraftTimeout = 10 * time.Second

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIDrafter produces email drafts with an OpenAI chat model. Failures of
// any kind surface as ErrModelUnavailable so the orchestrator can substitute
// the static template.
type OpenAIDrafter struct {
	client      chatClient
	model       string
	timeout     time.Duration
	clinicName  string
	clinicEmail string
	logger      *logging.Logger
}

// NewOpenAIDrafter returns a model-backed drafter.
func NewOpenAIDrafter(client chatClient, model, clinicName, clinicEmail string, timeout time.Duration, logger *logging.Logger) *OpenAIDrafter {
	if client == nil {
		panic("intake: chat client cannot be nil")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = defaultDraftTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OpenAIDrafter{
		client:      client,
		model:       model,
		timeout:     timeout,
		clinicName:  clinicName,
		clinicEmail: clinicEmail,
		logger:      logger,
	}
}

// DraftEmail invokes the model once with a bounded deadline.
func (d *OpenAIDrafter) DraftEmail(ctx context.Context, intent Intent, slots map[string]string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	system := fmt.Sprintf("You are drafting a short, professional email on behalf of a patient to %s. "+
		"Return ONLY the email body, no subject line, no extra commentary. "+
		"Sign off with the patient's name.", d.clinicName)

	var user strings.Builder
	fmt.Fprintf(&user, "Draft an email to %s to %s.\n", d.clinicEmail, intentAction(intent))
	fmt.Fprintf(&user, "Patient name: %s\n", slots[SlotFullName])
	fmt.Fprintf(&user, "Patient phone: %s\n", slots[SlotPhone])
	fmt.Fprintf(&user, "Day: %s\n", slots[SlotDay])
	fmt.Fprintf(&user, "Time: %s\n", slots[SlotTime])
	fmt.Fprintf(&user, "Clinic: %s", d.clinicName)

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user.String()},
		},
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		d.logger.Warn("draft model call failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrModelUnavailable)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
