package postgrest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"copyinvest/src/model"
)

const (
	tableExceptions       = "exceptions"
	defaultExceptionLimit = 50
)

// ExceptionLog stores failed back-office actions in the backend's exceptions table.
type ExceptionLog struct {
	client *Client
}

func NewExceptionLog(client *Client) *ExceptionLog {
	return &ExceptionLog{client: client}
}

func (l *ExceptionLog) Create(ctx context.Context, exc *model.Exception) error {
	return l.client.do(ctx, http.MethodPost, tableExceptions, nil, preferMinimal, []*model.Exception{exc}, nil)
}

func (l *ExceptionLog) FindRecent(ctx context.Context, limit int) ([]model.Exception, error) {
	if limit <= 0 {
		limit = defaultExceptionLimit
	}
	var rows []model.Exception
	err := l.client.do(ctx, http.MethodGet, tableExceptions, url.Values{
		"select": {"*"},
		"order":  {"created_at.desc,id.desc"},
		"limit":  {strconv.Itoa(limit)},
	}, "", nil, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
