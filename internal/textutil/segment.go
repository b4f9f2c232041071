package textutil

import "unicode/utf8"

// DefaultMaxLength 는 텔레그램 메시지 한도(4096자) 아래의
// 안전한 기본 분할 길이다.
const DefaultMaxLength = 4000

// Segment 는 text 를 최대 maxLength 룬 길이의 조각으로 순서대로
// 자른다. 순수 함수이며, 조각을 이어 붙이면 원문과 같다.
// 마지막 조각만 더 짧을 수 있다.
func Segment(text string, maxLength int) []string {
	if text == "" {
		return nil
	}
	if maxLength <= 0 || utf8.RuneCountInString(text) <= maxLength {
		return []string{text}
	}

	chunks := make([]string, 0, utf8.RuneCountInString(text)/maxLength+1)
	start := 0
	count := 0
	for i := range text {
		if count == maxLength {
			chunks = append(chunks, text[start:i])
			start = i
			count = 0
		}
		count++
	}
	chunks = append(chunks, text[start:])
	return chunks
}
