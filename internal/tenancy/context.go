package tenancy

import "context"

type accountContextKey struct{}
type entityContextKey struct{}

// ContextWithAccount attaches the authenticated account to the context.
func ContextWithAccount(ctx context.Context, account *Account) context.Context {
	if account == nil {
		return ctx
	}
	return context.WithValue(ctx, accountContextKey{}, account)
}

// AccountFromContext extracts the authenticated account from the context.
func AccountFromContext(ctx context.Context) (*Account, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(accountContextKey{}).(*Account)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ContextWithEntityContext attaches the resolved entity context for the
// request. It is rebuilt on every request and never cached across them.
func ContextWithEntityContext(ctx context.Context, ec *EntityContext) context.Context {
	if ec == nil {
		return ctx
	}
	return context.WithValue(ctx, entityContextKey{}, ec)
}

// EntityContextFromContext extracts the resolved entity context.
func EntityContextFromContext(ctx context.Context) (*EntityContext, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(entityContextKey{}).(*EntityContext)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
