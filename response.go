package chatbridge

type ResponseType string

const (
	ResponseTypeText  ResponseType = "text"
	ResponseTypeEnd   ResponseType = "end"
	ResponseTypeError ResponseType = "error"
)

// Response represents a communication unit from the Pod to the caller/UI.
type Response struct {
	Content string
	Type    ResponseType
	// Err is set on error responses; Content then holds the text safe to show.
	Err error
}
