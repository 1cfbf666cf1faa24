package model

import "strings"

// Tone 是发送者为自己的消息选择的改写语气。
type Tone string

const (
	ToneSmarter      Tone = "smarter"
	ToneProfessional Tone = "professional"
	ToneNicer        Tone = "nicer"
	ToneMeaner       Tone = "meaner"
	ToneSarcastic    Tone = "sarcastic"
	ToneLoving       Tone = "loving"
	ToneAngry        Tone = "angry"
	ToneCustom       Tone = "custom"
)

// DefaultTone 是新会话中双方的初始语气。
const DefaultTone = ToneNicer

// Tones 按展示顺序列出所有语气。
var Tones = []Tone{
	ToneSmarter, ToneProfessional, ToneNicer, ToneMeaner,
	ToneSarcastic, ToneLoving, ToneAngry, ToneCustom,
}

// ParseTone 解析客户端传入的语气，兼容旧值 "sarcasm"。
func ParseTone(s string) (Tone, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "sarcasm" {
		return ToneSarcastic, true
	}
	t := Tone(s)
	return t, t.Valid()
}

// Valid 判断语气是否属于已知枚举。
func (t Tone) Valid() bool {
	for _, known := range Tones {
		if t == known {
			return true
		}
	}
	return false
}

// ToneConfig 是会话中某一方的语气配置。
// Custom 只有在 Tone 为 ToneCustom 时才有意义。
type ToneConfig struct {
	Tone   Tone   `json:"tone"`
	Custom string `json:"custom_prompt,omitempty"`
}
