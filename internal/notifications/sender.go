package notifications

import (
	"context"

	"github.com/9ssi7/exponent"
)

// PushSender abstracts the push provider. It is deliberately tied to the
// exponent SDK types; swapping providers means swapping the adapter.
type PushSender interface {
	Publish(ctx context.Context, msgs []*exponent.Message) ([]*exponent.MessageResponse, error)
	PublishSingle(ctx context.Context, msg *exponent.Message) ([]*exponent.MessageResponse, error)
}
