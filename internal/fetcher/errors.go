package fetcher

import "fmt"

// Kind - класс ошибки получения страницы
type Kind int

const (
	// KindRateLimited - сервер отвечал 429 до исчерпания попыток
	KindRateLimited Kind = iota + 1
	// KindHTTPStatus - неретраибельный HTTP статус, повторов не было
	KindHTTPStatus
	// KindTransport - сетевая ошибка (таймаут, DNS, обрыв) до исчерпания попыток
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindHTTPStatus:
		return "http_status"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

type FetchError struct {
	Kind     Kind
	URL      string
	Status   int
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindRateLimited:
		return fmt.Sprintf("rate limited (HTTP 429): retries exhausted after %d attempts", e.Attempts)
	case KindHTTPStatus:
		return fmt.Sprintf("non-retryable HTTP error (status %d)", e.Status)
	default:
		return fmt.Sprintf("transport error: retries exhausted after %d attempts: %v", e.Attempts, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
