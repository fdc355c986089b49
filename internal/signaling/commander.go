package signaling

import (
	"context"
	"fmt"

	"github.com/crosswire/intercom/internal/protocol"
)

// Commander issues call control messages over an adapter. It satisfies
// the console session's command interface.
type Commander struct {
	adapter Adapter
}

// NewCommander creates a Commander bound to the given adapter.
func NewCommander(adapter Adapter) (*Commander, error) {
	if adapter == nil {
		return nil, fmt.Errorf("signaling: adapter is required")
	}
	return &Commander{adapter: adapter}, nil
}

// StartCall sends a call invite.
func (c *Commander) StartCall(ctx context.Context, invite protocol.CallInvite) error {
	return c.adapter.Send(ctx, invite)
}

// AcceptCall sends a call accept.
func (c *Commander) AcceptCall(ctx context.Context, accept protocol.CallAccept) error {
	return c.adapter.Send(ctx, accept)
}

// EndCall sends a call end.
func (c *Commander) EndCall(ctx context.Context, end protocol.CallEnd) error {
	return c.adapter.Send(ctx, end)
}
