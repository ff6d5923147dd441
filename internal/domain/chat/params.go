package chat

// Params итоговые параметры запроса к модели
type Params struct {
	ModelID            string
	Temperature        float64
	MaxTokens          int
	ReasoningEnabled   bool
	ReasoningEffort    string
	WebSearchEnabled   bool
	SystemMessage      string
	Character          string
	CharacterInfo      string
	CharacterBreakdown bool
	Stream             bool
}

// Effective накладывает переопределения беседы на глобальные настройки.
// Результат используется только для запроса и никогда не сохраняется.
func Effective(global Settings, conv Conversation) Params {
	p := Params{
		ModelID:            global.ModelID,
		Temperature:        global.Temperature,
		MaxTokens:          global.MaxTokens,
		ReasoningEnabled:   global.ReasoningEnabled,
		ReasoningEffort:    global.ReasoningEffort,
		WebSearchEnabled:   global.WebSearchEnabled,
		SystemMessage:      deref(global.SystemMessage),
		Character:          deref(global.Character),
		CharacterInfo:      deref(global.CharacterInfo),
		CharacterBreakdown: global.CharacterBreakdown,
		Stream:             global.StreamingEnabled,
	}
	if conv.ModelID != "" {
		p.ModelID = conv.ModelID
	}

	o := conv.Overlay
	if o.Temperature != nil {
		p.Temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		p.MaxTokens = *o.MaxTokens
	}
	if o.ReasoningEnabled != nil {
		p.ReasoningEnabled = *o.ReasoningEnabled
	}
	if o.ReasoningEffort != nil {
		p.ReasoningEffort = *o.ReasoningEffort
	}
	if o.WebSearchEnabled != nil {
		p.WebSearchEnabled = *o.WebSearchEnabled
	}
	if o.SystemMessage != nil {
		p.SystemMessage = *o.SystemMessage
	}
	if o.Character != nil {
		p.Character = *o.Character
	}
	if o.CharacterInfo != nil {
		p.CharacterInfo = *o.CharacterInfo
	}
	if o.CharacterBreakdown != nil {
		p.CharacterBreakdown = *o.CharacterBreakdown
	}

	return p
}

// SystemPrompt собирает системный промпт с учетом персонажа
func (p Params) SystemPrompt() string {
	prompt := p.SystemMessage
	if p.Character == "" {
		return prompt
	}

	persona := "You are " + p.Character + "."
	if p.CharacterInfo != "" {
		persona += " " + p.CharacterInfo
	}
	if p.CharacterBreakdown {
		persona += " Stay in character."
	}
	if prompt == "" {
		return persona
	}
	return prompt + "\n\n" + persona
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
