package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExtensionContext describes the operation an extension hook wraps.
type ExtensionContext struct {
	Operation string
	BankID    uuid.UUID
	TenantID  string
	Metadata  map[string]any
}

// Extensions are optional hooks invoked synchronously around each core
// operation. Authorize and Validate failures abort the operation with the
// returned error; an OnComplete failure is logged and does not change the
// result.
type Extensions struct {
	ResolveTenantID func(bankID uuid.UUID) string
	Authorize       func(ctx context.Context, ec ExtensionContext) error
	Validate        func(ctx context.Context, ec ExtensionContext) error
	OnComplete      func(ctx context.Context, ec ExtensionContext, result any)
}

// Before runs the pre-operation hooks.
func (e *Extensions) Before(ctx context.Context, ec ExtensionContext) error {
	if e == nil {
		return nil
	}
	if e.ResolveTenantID != nil {
		ec.TenantID = e.ResolveTenantID(ec.BankID)
	}
	if e.Authorize != nil {
		if err := e.Authorize(ctx, ec); err != nil {
			return err
		}
	}
	if e.Validate != nil {
		if err := e.Validate(ctx, ec); err != nil {
			return err
		}
	}
	return nil
}

// After runs the post-operation hook; a panic from it is recovered and logged.
func (e *Extensions) After(ctx context.Context, ec ExtensionContext, result any, logger *zap.Logger) {
	if e == nil || e.OnComplete == nil {
		return
	}
	if e.ResolveTenantID != nil {
		ec.TenantID = e.ResolveTenantID(ec.BankID)
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("onComplete extension panicked", zap.Any("panic", r))
		}
	}()
	e.OnComplete(ctx, ec, result)
}
