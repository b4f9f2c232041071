package gemini

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// FailureKind 는 업스트림 실패 분류다.
type FailureKind int

const (
	// FailureUnclassified 는 그 외 모든 업스트림 실패다.
	FailureUnclassified FailureKind = iota
	// FailureQuotaExhausted 는 업스트림 레이트/과금 한도 소진이다.
	FailureQuotaExhausted
	// FailureContextTooLarge 는 과대 요청 거부(컨텍스트 초과)다.
	FailureContextTooLarge
)

// Classify 는 업스트림 오류를 분류한다. 오류 모양이 바뀌면
// 이 함수만 고치면 된다. 구조화된 genai.APIError 의 코드/상태를
// 우선 사용하고, 텍스트 매칭은 마지막 수단이다.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureUnclassified
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests,
			strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED"):
			return FailureQuotaExhausted
		case apiErr.Code == http.StatusBadRequest,
			strings.EqualFold(apiErr.Status, "INVALID_ARGUMENT"):
			return FailureContextTooLarge
		}
		return FailureUnclassified
	}

	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "resource_exhausted"),
		strings.Contains(message, "429"),
		strings.Contains(message, "quota"):
		return FailureQuotaExhausted
	case strings.Contains(message, "request payload size"),
		strings.Contains(message, "token count"),
		strings.Contains(message, "400"):
		return FailureContextTooLarge
	}
	return FailureUnclassified
}
