// Package gateway 提供 LLM 网关服务
package gateway

import (
	"strings"
)

// billedUsageRoute 计费技能的用量路由，固定为 /skills/ask，
// 与具体技能无关，沿用既有计费口径。
const billedUsageRoute = "/skills/ask"

// Skill 预设技能，包装系统提示词
type Skill struct {
	Name   string
	System string
}

// BuildPrompt 组装用户提示词
func (s *Skill) BuildPrompt(input string) string {
	return strings.TrimSpace(input)
}

// SkillRegistry 技能注册表
type SkillRegistry struct {
	skills map[string]*Skill
}

// NewSkillRegistry 创建带默认技能的注册表
func NewSkillRegistry() *SkillRegistry {
	r := &SkillRegistry{skills: make(map[string]*Skill)}
	r.Register(&Skill{
		Name:   "ask",
		System: "You are a helpful assistant. Answer the user's question directly and concisely.",
	})
	r.Register(&Skill{
		Name:   "summarize",
		System: "Summarize the user's text. Keep the summary short and preserve the key facts.",
	})
	r.Register(&Skill{
		Name:   "translate",
		System: "Translate the user's text into English. Return only the translation.",
	})
	return r
}

// Register 注册技能
func (r *SkillRegistry) Register(s *Skill) {
	r.skills[s.Name] = s
}

// Get 获取技能
func (r *SkillRegistry) Get(name string) (*Skill, bool) {
	s, ok := r.skills[name]
	return s, ok
}

// Names 返回全部技能名
func (r *SkillRegistry) Names() []string {
	out := make([]string, 0, len(r.skills))
	for name := range r.skills {
		out = append(out, name)
	}
	return out
}
