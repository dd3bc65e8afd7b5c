package pullrequests

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/go-github/v68/github"
)

// ErrorKind tells callers why a query failed.
type ErrorKind string

const (
	KindTransport       ErrorKind = "transport"
	KindNotFound        ErrorKind = "not_found"
	KindInvalidArgument ErrorKind = "invalid_argument"
)

// Meta describes how a list result was obtained.
type Meta struct {
	Query             string     `json:"query,omitempty"`
	Count             int        `json:"count"`
	TotalCount        int        `json:"totalCount,omitempty"`
	IncompleteResults bool       `json:"incompleteResults,omitempty"`
	Since             *time.Time `json:"since,omitempty"`
	Until             *time.Time `json:"until,omitempty"`
	TimeRange         string     `json:"timeRange,omitempty"`
}

// QueryResult is the tagged envelope returned at the GitHub boundary.
// A failed query is data, never a Go error.
type QueryResult[T any] struct {
	Success bool
	Data    T
	Meta    *Meta
	Error   string
	Kind    ErrorKind
}

// Succeed wraps data into a successful result.
func Succeed[T any](data T, meta *Meta) QueryResult[T] {
	return QueryResult[T]{Success: true, Data: data, Meta: meta}
}

// Fail wraps err into a failed result of the given kind.
func Fail[T any](kind ErrorKind, err error) QueryResult[T] {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return QueryResult[T]{Error: msg, Kind: kind}
}

// Succeeded reports whether the query succeeded.
func (r QueryResult[T]) Succeeded() bool {
	return r.Success
}

// failFromAPI classifies a go-github error.
func failFromAPI[T any](err error) QueryResult[T] {
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusNotFound {
		return Fail[T](KindNotFound, err)
	}
	return Fail[T](KindTransport, err)
}

// MarshalJSON encodes {success:true, data, meta} or {success:false, error, errorKind}.
func (r QueryResult[T]) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(r.Success)

	if !r.Success {
		e.FieldStart("error")
		e.Str(r.Error)
		if r.Kind != "" {
			e.FieldStart("errorKind")
			e.Str(string(r.Kind))
		}
		e.ObjEnd()
		return e.Bytes(), nil
	}

	data, err := json.Marshal(r.Data)
	if err != nil {
		return nil, errors.Wrap(err, "marshal data")
	}
	e.FieldStart("data")
	e.Raw(data)

	if r.Meta != nil {
		meta, err := json.Marshal(r.Meta)
		if err != nil {
			return nil, errors.Wrap(err, "marshal meta")
		}
		e.FieldStart("meta")
		e.Raw(meta)
	}
	e.ObjEnd()
	return e.Bytes(), nil
}
