package ai

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/persona-studio/backend/internal/model/message"
	"github.com/zhouzirui/persona-studio/backend/internal/model/simulation"
)

type fakeChatModel struct {
	mu     sync.Mutex
	reply  string
	err    error
	inputs [][]*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) BindTools([]*schema.ToolInfo) error { return nil }

func (f *fakeChatModel) last() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs[len(f.inputs)-1]
}

func newTestService(t *testing.T, chatModel *fakeChatModel) *Service {
	t.Helper()
	svc, err := NewServiceWithModel(context.Background(), chatModel, nil)
	require.NoError(t, err)
	return svc
}

func TestServiceGenerateBuildsPersonaPrompt(t *testing.T) {
	fake := &fakeChatModel{reply: "  Kim님, Water Bank Cream 어떠세요?  "}
	svc := newTestService(t, fake)

	text, err := svc.Generate(context.Background(), kim(), message.Request{
		PersonaID: "p-1",
		Goal:      message.GoalPromotion,
		Product:   "Water Bank Cream",
		Tone:      "친근하게",
	})
	require.NoError(t, err)
	assert.Equal(t, "Kim님, Water Bank Cream 어떠세요?", text)

	input := fake.last()
	require.Len(t, input, 2)
	assert.Equal(t, schema.System, input[0].Role)
	assert.Contains(t, input[0].Content, "Water Bank Cream")
	assert.Contains(t, input[0].Content, "이름：Kim")
	assert.Contains(t, input[0].Content, "친근하게")
	assert.Contains(t, input[0].Content, "핵심 고민：")
	assert.Equal(t, schema.User, input[1].Role)
}

func TestServiceRefineSendsPriorTextAsHistory(t *testing.T) {
	fake := &fakeChatModel{reply: "짧아진 메시지"}
	svc := newTestService(t, fake)

	prior := message.Generated{Text: "원래 메시지", Request: message.Request{Goal: message.GoalCartReminder, Product: "Cream"}}
	text, err := svc.Refine(context.Background(), kim(), prior, "더 짧게")
	require.NoError(t, err)
	assert.Equal(t, "짧아진 메시지", text)

	input := fake.last()
	require.Len(t, input, 3)
	assert.Equal(t, schema.Assistant, input[1].Role)
	assert.Equal(t, "원래 메시지", input[1].Content)
	assert.Contains(t, input[2].Content, "더 짧게")
}

func TestServiceReplyMapsTranscriptRoles(t *testing.T) {
	fake := &fakeChatModel{reply: "성분이 궁금해요"}
	svc := newTestService(t, fake)

	text, err := svc.Reply(context.Background(), simulation.ReplyInput{
		PersonaLabel: "Kim/30s/dry",
		Transcript: []simulation.Turn{
			{Speaker: simulation.SpeakerUser, Text: "20% 할인 중이에요"},
			{Speaker: simulation.SpeakerVirtualCustomer, Text: "좋네요"},
			{Speaker: simulation.SpeakerUser, Text: "시카 성분이에요"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "성분이 궁금해요", text)

	input := fake.last()
	require.Len(t, input, 4)
	assert.Contains(t, input[0].Content, "Kim/30s/dry")
	assert.Equal(t, schema.User, input[1].Role)
	assert.Equal(t, schema.Assistant, input[2].Role)
	assert.Equal(t, "시카 성분이에요", input[3].Content)
}

func TestServiceReplyAnswersLatestUserTurnWhenTranscriptEndsWithReply(t *testing.T) {
	fake := &fakeChatModel{reply: "가격이 궁금해요"}
	svc := newTestService(t, fake)

	_, err := svc.Reply(context.Background(), simulation.ReplyInput{
		PersonaLabel: "Kim",
		Transcript: []simulation.Turn{
			{Speaker: simulation.SpeakerUser, Text: "hi"},
			{Speaker: simulation.SpeakerVirtualCustomer, Text: "안녕하세요"},
			{Speaker: simulation.SpeakerUser, Text: "a"},
			{Speaker: simulation.SpeakerUser, Text: "b"},
			{Speaker: simulation.SpeakerVirtualCustomer, Text: "좋네요"},
		},
	})
	require.NoError(t, err)

	input := fake.last()
	require.Len(t, input, 6)
	assert.Equal(t, schema.Assistant, input[4].Role)
	assert.Equal(t, "좋네요", input[4].Content)
	assert.Equal(t, schema.User, input[5].Role)
	assert.Equal(t, "b", input[5].Content)
}

func TestServiceReplyRejectsEmptyTranscript(t *testing.T) {
	svc := newTestService(t, &fakeChatModel{reply: "x"})
	_, err := svc.Reply(context.Background(), simulation.ReplyInput{})
	assert.Error(t, err)

	_, err = svc.Reply(context.Background(), simulation.ReplyInput{
		Transcript: []simulation.Turn{{Speaker: simulation.SpeakerVirtualCustomer, Text: "혼잣말"}},
	})
	assert.Error(t, err)
}

func TestServiceSurfacesModelErrors(t *testing.T) {
	boom := errors.New("boom")
	svc := newTestService(t, &fakeChatModel{err: boom})

	_, err := svc.Generate(context.Background(), kim(), message.Request{Product: "Cream", Goal: message.GoalPromotion})
	assert.ErrorContains(t, err, boom.Error())
}

func TestServiceRejectsEmptyResponse(t *testing.T) {
	svc := newTestService(t, &fakeChatModel{reply: "   "})
	_, err := svc.Generate(context.Background(), kim(), message.Request{Product: "Cream", Goal: message.GoalPromotion})
	assert.Error(t, err)
}

func TestBuildHistoryMessagesKeepsRecentTurns(t *testing.T) {
	turns := make([]simulation.Turn, 0, historyLimit+5)
	for i := 0; i < historyLimit+5; i++ {
		turns = append(turns, simulation.Turn{Speaker: simulation.SpeakerUser, Text: string(rune('a' + i))})
	}
	history := buildHistoryMessages(turns)
	require.Len(t, history, historyLimit)
	assert.Equal(t, string(rune('a'+5)), history[0].Content)
}
