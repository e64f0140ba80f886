package writer

import (
	"errors"
	"net/http"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	retryableHTTP = map[int]bool{
		http.StatusRequestTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	}
	retryableGRPC = map[codes.Code]bool{
		codes.Aborted:           true,
		codes.DeadlineExceeded:  true,
		codes.Internal:          true,
		codes.ResourceExhausted: true,
		codes.Unavailable:       true,
	}
)

// Retryable reports whether a BigQuery insert error is worth another attempt.
// Aggregated errors are retryable only when every member is.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return every(multi, func(e error) error { return e })
	}
	var rowErrs cbigquery.PutMultiError
	if errors.As(err, &rowErrs) {
		return every(rowErrs, func(e cbigquery.RowInsertionError) error { return e.Errors })
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retryableHTTP[apiErr.Code]
	}
	if st, ok := status.FromError(err); ok {
		return retryableGRPC[st.Code()]
	}
	return false
}

func every[E any](items []E, unwrap func(E) error) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if !Retryable(unwrap(item)) {
			return false
		}
	}
	return true
}
