package keygate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/keygate/internal"
	"github.com/MrEthical07/keygate/internal/stores"
)

const inviteCreateAttempts = 3

// IssueInvite mints a single-use invite for recipientLabel. The token is
// 16 uppercase hex characters and expires after Invite.TTL.
func (e *Engine) IssueInvite(ctx context.Context, recipientLabel, actor string) (*InviteToken, error) {
	if e == nil || e.invites == nil {
		return nil, ErrEngineNotReady
	}
	label := strings.TrimSpace(recipientLabel)
	if label == "" {
		e.metricInc(MetricInviteRejected)
		return nil, ErrInvalidRequest
	}
	if actor == "" {
		actor = adminActor
	}

	now := e.now().UTC()
	inv := &stores.Invite{
		RecipientLabel: label,
		CreatedAt:      now.UnixMilli(),
		ExpiresAt:      now.Add(e.config.Invite.TTL).UnixMilli(),
	}

	var err error
	for attempt := 0; attempt < inviteCreateAttempts; attempt++ {
		inv.Token, err = e.newToken()
		if err != nil {
			return nil, err
		}
		err = e.invites.Create(ctx, inv, e.config.Invite.Grace)
		if !errors.Is(err, stores.ErrInviteExists) {
			break
		}
		e.warn(ctx, "invite token collision", "attempt", attempt+1)
	}
	if err != nil {
		e.metricInc(MetricInviteRejected)
		return nil, storeError(err)
	}

	e.metricInc(MetricInviteIssued)
	e.emitAudit(ctx, AuditTokenGenerated, actor, "Generated invite token for "+label, func() map[string]string {
		return map[string]string{
			"expires_at": fromMillis(inv.ExpiresAt).Format(time.RFC3339),
		}
	})
	return inviteFromStore(inv), nil
}

// LookupInvite returns the invite without consuming it. Unknown, expired
// and consumed tokens all match ErrInvalidToken.
func (e *Engine) LookupInvite(ctx context.Context, token string) (*InviteToken, error) {
	if e == nil || e.invites == nil {
		return nil, ErrEngineNotReady
	}
	inv, err := e.redeemableInvite(ctx, token)
	if err != nil {
		return nil, err
	}
	return inviteFromStore(inv), nil
}

func (e *Engine) redeemableInvite(ctx context.Context, token string) (*stores.Invite, error) {
	if !internal.ValidInviteToken(token) {
		return nil, ErrTokenNotFound
	}
	inv, err := e.invites.Get(ctx, token)
	if err != nil {
		return nil, storeError(err)
	}
	if inv.Consumed {
		return nil, ErrTokenConsumed
	}
	if e.now().UnixMilli() > inv.ExpiresAt {
		return nil, ErrTokenExpired
	}
	return inv, nil
}

func inviteFromStore(inv *stores.Invite) *InviteToken {
	return &InviteToken{
		Token:          inv.Token,
		RecipientLabel: inv.RecipientLabel,
		CreatedAt:      fromMillis(inv.CreatedAt),
		ExpiresAt:      fromMillis(inv.ExpiresAt),
		Consumed:       inv.Consumed,
	}
}
