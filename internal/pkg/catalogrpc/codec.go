package catalogrpc

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jcmexdev/product-catalog/internal/catalog"
)

// Request is the argument of every catalog RPC. Delay and FaultPercent are
// test hooks honoured by the downstream services.
type Request struct {
	ProductKey   string
	Delay        time.Duration
	FaultPercent int
}

type wireRequest struct {
	ProductKey   string `json:"productKey"`
	DelayMs      int64  `json:"delayMs,omitempty"`
	FaultPercent int    `json:"faultPercent,omitempty"`
}

func (r Request) Validate() error {
	if err := catalog.ValidateKey(r.ProductKey); err != nil {
		return err
	}
	if r.Delay < 0 {
		return fmt.Errorf("%w: delay must not be negative", catalog.ErrInvalidInput)
	}
	if r.FaultPercent < 0 || r.FaultPercent > 100 {
		return fmt.Errorf("%w: faultPercent must be between 0 and 100, got %d", catalog.ErrInvalidInput, r.FaultPercent)
	}
	return nil
}

func encodeRequest(r Request) (*structpb.Struct, error) {
	return toStruct(wireRequest{
		ProductKey:   r.ProductKey,
		DelayMs:      r.Delay.Milliseconds(),
		FaultPercent: r.FaultPercent,
	})
}

func decodeRequest(s *structpb.Struct) (Request, error) {
	w, err := fromStruct[wireRequest](s)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", catalog.ErrInvalidInput, err)
	}
	r := Request{
		ProductKey:   w.ProductKey,
		Delay:        time.Duration(w.DelayMs) * time.Millisecond,
		FaultPercent: w.FaultPercent,
	}
	return r, r.Validate()
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, err
	}
	return s, nil
}

func fromStruct[T any](s *structpb.Struct) (T, error) {
	var v T
	b, err := protojson.Marshal(s)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, err
	}
	return v, nil
}

// decodeRecord turns a downstream message into a domain value, rejecting
// payloads whose product key is missing or differs from want.
func decodeRecord[T any](s *structpb.Struct, want string, key func(T) string) (T, error) {
	v, err := fromStruct[T](s)
	if err != nil {
		return v, fmt.Errorf("%w: %v", catalog.ErrInvalidResponse, err)
	}
	switch got := key(v); got {
	case "":
		return v, fmt.Errorf("%w: record without productKey", catalog.ErrInvalidResponse)
	case want:
		return v, nil
	default:
		return v, fmt.Errorf("%w: record for %q in response for %q", catalog.ErrInvalidResponse, got, want)
	}
}

func productKey(p catalog.Product) string { return p.ProductKey }
func recommendationKey(r catalog.Recommendation) string { return r.ProductKey }
func reviewKey(r catalog.Review) string { return r.ProductKey }
