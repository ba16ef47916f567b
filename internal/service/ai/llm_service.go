package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/persona-studio/backend/internal/config"
	"github.com/zhouzirui/persona-studio/backend/internal/logging"
	"github.com/zhouzirui/persona-studio/backend/internal/model/message"
	"github.com/zhouzirui/persona-studio/backend/internal/model/persona"
	"github.com/zhouzirui/persona-studio/backend/internal/model/simulation"
)

const historyLimit = 10

// Service generates messages and customer replies with an LLM chain.
type Service struct {
	prompts *PromptManager
	logger  *zap.Logger
	chain   compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates a Service backed by the configured Ark model.
func NewService(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, logger)
}

// NewServiceWithModel compiles the prompt chain around chatModel.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, logger *zap.Logger) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		prompts: NewPromptManager(),
		logger:  logging.Or(logger).Named("ai"),
		chain:   runnable,
	}, nil
}

// Generate writes a new promotional message.
func (s *Service) Generate(ctx context.Context, p persona.Persona, req message.Request) (string, error) {
	query := fmt.Sprintf("%s님에게 보낼 %s 메시지를 작성해 주세요.", p.Name, req.Goal.DisplayLabel())
	return s.invoke(ctx, "generate", map[string]any{
		"system": s.prompts.BuildGenerationPrompt(p, req),
		"query":  query,
	})
}

// Refine rewrites prior according to instruction.
func (s *Service) Refine(ctx context.Context, p persona.Persona, prior message.Generated, instruction string) (string, error) {
	return s.invoke(ctx, "refine", map[string]any{
		"system": s.prompts.BuildRefinePrompt(p, prior.Request),
		"history": []*schema.Message{
			schema.AssistantMessage(prior.Text, nil),
		},
		"query": "수정 요청：" + strings.TrimSpace(instruction),
	})
}

// Reply answers as the virtual customer. The most recent user turn is
// the query; every other turn becomes chat history, so replies that
// already landed after it are still visible to the model.
func (s *Service) Reply(ctx context.Context, in simulation.ReplyInput) (string, error) {
	idx := in.LastUserIndex()
	if idx < 0 {
		return "", fmt.Errorf("reply needs at least one user turn")
	}
	rest := make([]simulation.Turn, 0, len(in.Transcript)-1)
	rest = append(rest, in.Transcript[:idx]...)
	rest = append(rest, in.Transcript[idx+1:]...)
	return s.invoke(ctx, "reply", map[string]any{
		"system":  s.prompts.BuildCustomerPrompt(in.PersonaLabel),
		"history": buildHistoryMessages(rest),
		"query":   in.Transcript[idx].Text,
	})
}

func (s *Service) invoke(ctx context.Context, op string, input map[string]any) (string, error) {
	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	text := strings.TrimSpace(response.Content)
	if text == "" {
		return "", fmt.Errorf("AI chain returned an empty %s response", op)
	}
	s.logger.Debug("chain completed", zap.String("op", op), zap.Int("length", len(text)))
	return text, nil
}

// buildHistoryMessages maps transcript turns onto chat roles from the
// customer's point of view: the marketer speaks as the user.
func buildHistoryMessages(turns []simulation.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	startIdx := 0
	if len(turns) > historyLimit {
		startIdx = len(turns) - historyLimit
	}

	history := make([]*schema.Message, 0, len(turns)-startIdx)
	for _, turn := range turns[startIdx:] {
		switch turn.Speaker {
		case simulation.SpeakerUser:
			history = append(history, schema.UserMessage(turn.Text))
		case simulation.SpeakerVirtualCustomer:
			history = append(history, schema.AssistantMessage(turn.Text, nil))
		}
	}
	return history
}
