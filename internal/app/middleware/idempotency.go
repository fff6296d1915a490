package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"resort/internal/app/commands"
)

// IdempotentCommand is implemented by commands that may be retried by clients
// with the same key. ResultPrototype returns a pointer the stored result is
// decoded into on replay.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any
}

type IdempotencyRecord struct {
	Key        string
	Command    string
	Payload    []byte
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var (
	errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")
	// ErrIdempotencyKeyReused is returned when a key is replayed for a different command.
	ErrIdempotencyKeyReused = errors.New("middleware: idempotency key reused for another command")
)

// Idempotency replays stored results for repeated keys. Only successful
// results are stored; a failed attempt may be retried with the same key.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := idCmd.Key() + ":" + idCmd.IdempotencyKey()
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found {
				if rec.Command != "" && rec.Command != cmd.Key() {
					return nil, ErrIdempotencyKeyReused
				}
				proto := idCmd.ResultPrototype()
				if proto == nil {
					return nil, errMissingPrototype
				}
				if err := codec.Decode(rec.Payload, proto); err != nil {
					return nil, err
				}
				return derefPrototype(proto), nil
			}
			result, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			payload, err := codec.Encode(result)
			if err != nil {
				return nil, err
			}
			record := IdempotencyRecord{
				Key:        key,
				Command:    cmd.Key(),
				Payload:    payload,
				OccurredAt: time.Now().UTC(),
			}
			if err := store.Save(ctx, record); err != nil {
				return nil, err
			}
			return result, nil
		})
	}
}

// derefPrototype turns the decoded *T back into T so replays match the
// handler's result type.
func derefPrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return proto
}
