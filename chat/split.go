package chat

// MaxMessageLength 单条入库消息的最大长度（按字符计）。
// 超长文本切成多条按序入库，拼回去必须还原原文。
const MaxMessageLength = 4096

// SplitText 按 MaxMessageLength 切分文本，保持顺序
func SplitText(text string) []string {
	runes := []rune(text)
	if len(runes) <= MaxMessageLength {
		return []string{text}
	}
	parts := make([]string, 0, len(runes)/MaxMessageLength+1)
	for i := 0; i < len(runes); i += MaxMessageLength {
		end := i + MaxMessageLength
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[i:end]))
	}
	return parts
}
