package upstream

import (
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// Family 上游协议族
// 决定请求路径、鉴权位置、请求体结构以及响应文本的解析路径
type Family string

const (
	FamilyGemini  Family = "gemini"
	FamilyOpenAI  Family = "openai"
	FamilyGroq    Family = "groq"
	FamilyGeneric Family = "generic" // 未识别的 OpenAI 兼容接口
)

// Target 单次调用的目标参数
type Target struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float64
	MaxTokens   *int
}

// request 协议族构造出的 HTTP 请求
type request struct {
	URL     string
	Headers map[string]string
	Query   map[string]string
	Body    map[string]any
}

// Spec 协议族描述
type Spec struct {
	Family         Family
	DefaultBaseURL string
	DefaultModel   string
	Endpoint       string // 写入调用日志的端点标签
	hostMarker     string
	textPaths      []string
	build          func(t Target, prompt string) request
}

var specs = map[Family]*Spec{
	FamilyGemini: {
		Family:         FamilyGemini,
		DefaultBaseURL: "https://generativelanguage.googleapis.com",
		DefaultModel:   "gemini-1.5-flash",
		Endpoint:       "generateContent",
		hostMarker:     "generativelanguage.googleapis.com",
		textPaths:      []string{"candidates.0.content.parts.0.text"},
		build:          buildGemini,
	},
	FamilyOpenAI: {
		Family:         FamilyOpenAI,
		DefaultBaseURL: "https://api.openai.com/v1",
		DefaultModel:   "gpt-4o-mini",
		Endpoint:       "chat/completions",
		hostMarker:     "api.openai.com",
		textPaths:      []string{"choices.0.message.content"},
		build:          chatCompletions("/v1"),
	},
	FamilyGroq: {
		Family:         FamilyGroq,
		DefaultBaseURL: "https://api.groq.com/openai/v1",
		DefaultModel:   "llama-3.1-8b-instant",
		Endpoint:       "chat/completions",
		hostMarker:     "api.groq.com",
		textPaths:      []string{"choices.0.message.content"},
		build:          chatCompletions("/openai/v1"),
	},
	FamilyGeneric: {
		Family:       FamilyGeneric,
		DefaultModel: "gpt-3.5-turbo",
		Endpoint:     "chat/completions",
		textPaths: []string{
			"choices.0.message.content",
			"choices.0.text",
			"output_text",
			"response",
			"text",
		},
		build: chatCompletions("/v1"),
	},
}

// namePreference 同优先级时按名称的默认偏好顺序
var namePreference = []struct {
	markers []string
	family  Family
}{
	{markers: []string{"google gemini", "gemini"}, family: FamilyGemini},
	{markers: []string{"openai"}, family: FamilyOpenAI},
	{markers: []string{"groq"}, family: FamilyGroq},
}

// SpecFor 返回协议族描述，未知值回退到 Generic
func SpecFor(f Family) *Spec {
	if s, ok := specs[f]; ok {
		return s
	}
	return specs[FamilyGeneric]
}

// ParseFamily 解析显式配置的协议族
func ParseFamily(s string) (Family, bool) {
	f := Family(strings.ToLower(strings.TrimSpace(s)))
	_, ok := specs[f]
	return f, ok
}

// ResolveFamily 确定供应商所属协议族
// 显式配置优先，其次是 base_url 的主机名，最后是供应商名称
func ResolveFamily(explicit, baseURL, name string) Family {
	if f, ok := ParseFamily(explicit); ok {
		return f
	}

	if host := hostOf(baseURL); host != "" {
		for _, s := range specs {
			if s.hostMarker != "" && strings.Contains(host, s.hostMarker) {
				return s.Family
			}
		}
	}

	lower := strings.ToLower(name)
	for _, pref := range namePreference {
		for _, marker := range pref.markers {
			if strings.Contains(lower, marker) {
				return pref.family
			}
		}
	}
	return FamilyGeneric
}

// PreferenceRank 名称偏好序号，越小越靠前；未识别名称排在所有已识别名称之后
func PreferenceRank(name string) int {
	lower := strings.ToLower(name)
	for i, pref := range namePreference {
		for _, marker := range pref.markers {
			if strings.Contains(lower, marker) {
				return i
			}
		}
	}
	return len(namePreference)
}

// ExtractText 从响应体中取出生成文本，空白文本视为未解析到
func (s *Spec) ExtractText(body []byte) (string, bool) {
	if !gjson.ValidBytes(body) {
		return "", false
	}
	for _, path := range s.textPaths {
		r := gjson.GetBytes(body, path)
		if r.Exists() && r.Type == gjson.String && strings.TrimSpace(r.Str) != "" {
			return r.Str, true
		}
	}
	return "", false
}

// ResolveTarget 补全默认的 base_url 与模型名
func (s *Spec) ResolveTarget(t Target) Target {
	if strings.TrimSpace(t.BaseURL) == "" {
		t.BaseURL = s.DefaultBaseURL
	}
	if strings.TrimSpace(t.Model) == "" {
		t.Model = s.DefaultModel
	}
	return t
}

func buildGemini(t Target, prompt string) request {
	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}

	genConfig := map[string]any{}
	if t.Temperature != nil {
		genConfig["temperature"] = *t.Temperature
	}
	if t.MaxTokens != nil && *t.MaxTokens > 0 {
		genConfig["maxOutputTokens"] = *t.MaxTokens
	}
	if len(genConfig) > 0 {
		body["generationConfig"] = genConfig
	}

	base := strings.TrimRight(t.BaseURL, "/")
	if !strings.Contains(base, "/v1") {
		base += "/v1beta"
	}

	return request{
		URL:     base + "/models/" + url.PathEscape(t.Model) + ":generateContent",
		Headers: map[string]string{"Content-Type": "application/json"},
		Query:   map[string]string{"key": t.APIKey},
		Body:    body,
	}
}

// chatCompletions 返回带指定 API 路径前缀的 chat/completions 构造函数
func chatCompletions(prefix string) func(Target, string) request {
	return func(t Target, prompt string) request {
		return buildChatCompletions(t, prompt, prefix)
	}
}

func buildChatCompletions(t Target, prompt, prefix string) request {
	body := map[string]any{
		"model": t.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	if t.Temperature != nil {
		body["temperature"] = *t.Temperature
	}
	if t.MaxTokens != nil && *t.MaxTokens > 0 {
		body["max_tokens"] = *t.MaxTokens
	}

	return request{
		URL: chatCompletionsURL(t.BaseURL, prefix),
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + t.APIKey,
		},
		Body: body,
	}
}

// chatCompletionsURL 拼接 chat/completions 地址
// base 路径中已有版本段（如 /v1）时直接追加，否则先补上协议族的 API 前缀
func chatCompletionsURL(base, prefix string) string {
	b := strings.TrimRight(base, "/")
	if strings.HasSuffix(b, "/chat/completions") {
		return b
	}
	if hasVersionSegment(b) {
		return b + "/chat/completions"
	}
	return b + prefix + "/chat/completions"
}

// hasVersionSegment 判断 URL 路径中是否含有 v1、v2beta 这类版本段
func hasVersionSegment(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if len(seg) >= 2 && seg[0] == 'v' && seg[1] >= '0' && seg[1] <= '9' {
			return true
		}
	}
	return false
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
