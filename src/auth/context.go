package auth

import (
	"context"

	"copyinvest/src/model"
)

type contextKey string

const OperatorKey contextKey = "operator"

func WithOperator(ctx context.Context, op *model.Operator) context.Context {
	return context.WithValue(ctx, OperatorKey, op)
}

func GetOperatorFromContext(ctx context.Context) (*model.Operator, bool) {
	op, ok := ctx.Value(OperatorKey).(*model.Operator)
	return op, ok
}
