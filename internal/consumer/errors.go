package consumer

import (
	"errors"

	"github.com/notely-ai/contextd/internal/chunker"
	"github.com/notely-ai/contextd/internal/extractor"
	"github.com/notely-ai/contextd/internal/index"
)

// ErrMalformedMessage is returned when a message body cannot be decoded or
// validated as a file event envelope. Retrying a structurally invalid message
// can never succeed, so it is acknowledged and dropped.
var ErrMalformedMessage = errors.New("consumer: malformed message")

// ErrUnknownEventType is returned for a well-formed envelope carrying an
// event tag outside the known lifecycle set. Terminal, like a malformed
// message.
var ErrUnknownEventType = errors.New("consumer: unknown event type")

// terminalErrors lists the validation failures for which redelivery is
// pointless: the same input will fail the same way every time. Everything
// else (embedding failures, storage and index I/O, timeouts) is treated as
// transient and retried via queue redelivery.
var terminalErrors = []error{
	ErrMalformedMessage,
	ErrUnknownEventType,
	chunker.ErrEmptyInput,
	extractor.ErrNoText,
	extractor.ErrUnsupportedType,
	index.ErrEmptyBatch,
}

// isTerminal reports whether the error is a non-retryable validation failure.
func isTerminal(err error) bool {
	for _, t := range terminalErrors {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
