// Package tone 负责按发送者的语气配置改写消息文本。
package tone

import (
	"context"
	"strings"

	"agent-chat-go/internal/config"
	"agent-chat-go/internal/model"
	apperrors "agent-chat-go/pkg/errors"
	"agent-chat-go/pkg/llm"
	"agent-chat-go/pkg/log"
)

// defaultSystemPrompt 限制模型只输出改写后的消息。
const defaultSystemPrompt = "You are a message transformer. Transform the given message according to the instruction. " +
	"Output ONLY the transformed message without any introduction, explanation, or quotation marks. " +
	"Do not say 'Here is' or similar phrases. Just output the transformed message directly."

// templates 每种非 custom 语气对应一条固定指令。
var templates = map[model.Tone]string{
	model.ToneSmarter:      "Transform to sophisticated vocabulary and intelligent phrasing (output only the message)",
	model.ToneProfessional: "Transform to formal professional business tone (output only the message)",
	model.ToneNicer:        "Transform to be warmer and friendlier (output only the message)",
	model.ToneMeaner:       "Transform to be colder and more critical (output only the message)",
	model.ToneSarcastic:    "Transform the given message to be a message with subtle sarcasm and wit (output only the message)",
	model.ToneLoving:       "Transform to express warmth and affection (output only the message)",
	model.ToneAngry:        "Transform to express frustration and anger civilly (output only the message)",
}

// Transformer 把原文改写成指定语气。
type Transformer interface {
	Transform(ctx context.Context, text string, cfg model.ToneConfig) (string, error)
}

type llmTransformer struct {
	client       llm.Client
	systemPrompt string
	gen          *llm.GenerationParams
}

// NewTransformer 基于 LLM 客户端创建改写器。
func NewTransformer(client llm.Client, cfg config.LLMConfig) Transformer {
	system := strings.TrimSpace(cfg.Prompt.System)
	if system == "" {
		system = defaultSystemPrompt
	}
	var gen *llm.GenerationParams
	if cfg.Generation.Temperature != 0 || cfg.Generation.MaxTokens != 0 {
		gen = &llm.GenerationParams{}
		if cfg.Generation.Temperature != 0 {
			t := cfg.Generation.Temperature
			gen.Temperature = &t
		}
		if cfg.Generation.MaxTokens != 0 {
			m := cfg.Generation.MaxTokens
			gen.MaxTokens = &m
		}
	}
	return &llmTransformer{client: client, systemPrompt: system, gen: gen}
}

// Instruction 返回语气配置对应的指令；第二个返回值为 false 时表示原样返回文本。
func Instruction(cfg model.ToneConfig) (string, bool) {
	if cfg.Tone == model.ToneCustom {
		return cfg.Custom, strings.TrimSpace(cfg.Custom) != ""
	}
	tmpl, ok := templates[cfg.Tone]
	return tmpl, ok
}

func (t *llmTransformer) Transform(ctx context.Context, text string, cfg model.ToneConfig) (string, error) {
	instruction, ok := Instruction(cfg)
	if !ok {
		return text, nil
	}

	messages := []llm.Message{
		{Role: "system", Content: t.systemPrompt},
		{Role: "user", Content: instruction + ": " + text},
	}
	out, err := t.client.Complete(ctx, messages, t.gen)
	if err != nil {
		log.Warnw("tone transformation failed", "tone", cfg.Tone, "error", err)
		return "", apperrors.ErrTransformationFailed(err)
	}
	return out, nil
}
