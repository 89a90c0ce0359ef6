package goSession

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/refresh"
	validation "github.com/go-ozzo/ozzo-validation"
)

// AuditErrorCode is the stable classification written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrRejected         AuditErrorCode = "rejected"
	auditErrUnauthorized     AuditErrorCode = "unauthorized"
	auditErrValidation       AuditErrorCode = "validation_failed"
	auditErrTransport        AuditErrorCode = "transport"
	auditErrMalformedToken   AuditErrorCode = "malformed_token"
	auditErrMalformedReply   AuditErrorCode = "malformed_response"
	auditErrStorage          AuditErrorCode = "storage_unavailable"
	auditErrRefreshTimeout   AuditErrorCode = "refresh_timeout"
	auditErrSuperseded       AuditErrorCode = "superseded"
	auditErrIncompletePair   AuditErrorCode = "incomplete_pair"
	auditErrInternal         AuditErrorCode = "internal_error"
)

func (c *Client) emitAudit(ctx context.Context, eventType string, success bool, subjectID string, err error, metadata map[string]string) {
	if c == nil || c.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: c.now().UTC(),
		EventType: eventType,
		SubjectID: subjectID,
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = string(auditErrorCode(err))
	}
	c.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	var (
		rejected  *api.RejectedError
		transport *api.TransportError
		invalid   validation.Errors
	)
	switch {
	case errors.As(err, &rejected):
		if rejected.Unauthorized() {
			return auditErrUnauthorized
		}
		return auditErrRejected
	case errors.As(err, &invalid):
		return auditErrValidation
	case errors.Is(err, refresh.ErrSuperseded):
		return auditErrSuperseded
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return auditErrRefreshTimeout
	case errors.As(err, &transport):
		return auditErrTransport
	case errors.Is(err, jwt.ErrMalformedToken):
		return auditErrMalformedToken
	case errors.Is(err, api.ErrMalformedResponse):
		return auditErrMalformedReply
	case errors.Is(err, credential.ErrBackendUnavailable):
		return auditErrStorage
	case errors.Is(err, credential.ErrIncompletePair):
		return auditErrIncompletePair
	default:
		return auditErrInternal
	}
}
