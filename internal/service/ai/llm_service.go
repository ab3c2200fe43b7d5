package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/qinyuanli/bubblechat/backend/internal/config"
	"github.com/qinyuanli/bubblechat/backend/internal/model/character"
	"github.com/qinyuanli/bubblechat/backend/internal/model/sticker"
)

// Service is the model-invocation side of a chat turn: it owns the compiled
// eino chain and turns (character, history, query) into a completion or a
// token stream. Splitting and classification of the reply happen upstream in
// the chat service.
type Service struct {
	chatModel model.ChatModel
	stickers  sticker.Store
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the AI service instance.
func NewService(ctx context.Context, stickers sticker.Store, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

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
		chatModel: chatModel,
		stickers:  stickers,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// StreamingEnabled 指示是否开启流式输出。
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// GenerateReply runs one turn to completion and returns the whole reply text
// in a single message.
func (s *Service) GenerateReply(ctx context.Context, char *character.Character, history []*schema.Message, query string) (*schema.Message, error) {
	input := s.buildChainInput(char, history, query)

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", err)
	}

	log.Printf("[ai] generated reply for character=%s, length=%d", char.ID, len(response.Content))
	return response, nil
}

// StreamReply opens a token stream for one turn via the configured chain.
func (s *Service) StreamReply(ctx context.Context, char *character.Character, history []*schema.Message, query string) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	input := s.buildChainInput(char, history, query)

	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}

	return stream, nil
}

func (s *Service) buildChainInput(char *character.Character, history []*schema.Message, query string) map[string]any {
	return map[string]any{
		"system":  buildSystemInstruction(char, s.stickers.List()),
		"history": history,
		"query":   query,
	}
}
