package tone

import (
	"context"
	"errors"
	"strings"
	"testing"

	"agent-chat-go/internal/config"
	"agent-chat-go/internal/model"
	apperrors "agent-chat-go/pkg/errors"
	"agent-chat-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	calls    int
	messages []llm.Message
	reply    string
	err      error
}

func (f *fakeClient) Complete(_ context.Context, messages []llm.Message, _ *llm.GenerationParams) (string, error) {
	f.calls++
	f.messages = messages
	return f.reply, f.err
}

func TestTransform_FixedTemplate(t *testing.T) {
	client := &fakeClient{reply: "Good day to you."}
	tr := NewTransformer(client, config.LLMConfig{})

	out, err := tr.Transform(context.Background(), "hey", model.ToneConfig{Tone: model.ToneProfessional})
	require.NoError(t, err)
	assert.Equal(t, "Good day to you.", out)
	assert.Equal(t, 1, client.calls)
	require.Len(t, client.messages, 2)
	assert.Equal(t, defaultSystemPrompt, client.messages[0].Content)
	assert.True(t, strings.HasPrefix(client.messages[1].Content, templates[model.ToneProfessional]))
	assert.True(t, strings.HasSuffix(client.messages[1].Content, "hey"))
}

func TestTransform_CustomInstruction(t *testing.T) {
	client := &fakeClient{reply: "Ahoy"}
	tr := NewTransformer(client, config.LLMConfig{Prompt: config.LLMPromptConfig{System: "only output text"}})

	out, err := tr.Transform(context.Background(), "hi", model.ToneConfig{Tone: model.ToneCustom, Custom: "talk like a pirate"})
	require.NoError(t, err)
	assert.Equal(t, "Ahoy", out)
	assert.Equal(t, "only output text", client.messages[0].Content)
	assert.Equal(t, "talk like a pirate: hi", client.messages[1].Content)
}

func TestTransform_CustomInstructionSentVerbatim(t *testing.T) {
	client := &fakeClient{reply: "Arr"}
	tr := NewTransformer(client, config.LLMConfig{})
	custom := "  Talk like a pirate.\n"

	instr, ok := Instruction(model.ToneConfig{Tone: model.ToneCustom, Custom: custom})
	require.True(t, ok)
	assert.Equal(t, custom, instr)

	_, err := tr.Transform(context.Background(), "hi", model.ToneConfig{Tone: model.ToneCustom, Custom: custom})
	require.NoError(t, err)
	assert.Equal(t, custom+": hi", client.messages[1].Content)
}

func TestTransform_IdentityFallbacks(t *testing.T) {
	cases := []model.ToneConfig{
		{Tone: model.ToneCustom},
		{Tone: model.ToneCustom, Custom: "   "},
		{Tone: model.Tone("whispering")},
	}
	for _, cfg := range cases {
		client := &fakeClient{reply: "should not be used"}
		tr := NewTransformer(client, config.LLMConfig{})

		out, err := tr.Transform(context.Background(), "unchanged text", cfg)
		require.NoError(t, err)
		assert.Equal(t, "unchanged text", out)
		assert.Zero(t, client.calls)
	}
}

func TestTransform_FailureHasNoOutput(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	tr := NewTransformer(client, config.LLMConfig{})

	out, err := tr.Transform(context.Background(), "hey", model.ToneConfig{Tone: model.ToneAngry})
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Equal(t, apperrors.CodeTransformationFailed, apperrors.CodeOf(err))
}

func TestInstruction_EveryFixedToneHasTemplate(t *testing.T) {
	for _, tn := range model.Tones {
		if tn == model.ToneCustom {
			continue
		}
		instr, ok := Instruction(model.ToneConfig{Tone: tn})
		assert.True(t, ok, tn)
		assert.NotEmpty(t, instr, tn)
	}
}
