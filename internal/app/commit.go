package app

import (
	"context"
	"encoding/json"
	"fmt"
)

func setDoc(key string, v any) (Mutation, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Mutation{}, fmt.Errorf("encode %s: %w", key, err)
	}
	return Mutation{Key: key, Value: string(raw)}, nil
}

type priorValue struct {
	key     string
	value   string
	existed bool
}

// commit writes mutations as one unit. Without a BatchStore, keys already
// written are restored to their previous values if a later write fails.
func (s *ChaosService) commit(ctx context.Context, mutations []Mutation) error {
	if batch, ok := s.store.(BatchStore); ok {
		if err := batch.Apply(ctx, mutations); err != nil {
			return fmt.Errorf("apply batch: %w", err)
		}
		return nil
	}

	done := make([]priorValue, 0, len(mutations))
	for _, m := range mutations {
		old, existed, err := s.store.Get(ctx, m.Key)
		if err != nil {
			s.restore(ctx, done)
			return fmt.Errorf("read %s: %w", m.Key, err)
		}
		if m.Delete {
			err = s.store.Delete(ctx, m.Key)
		} else {
			err = s.store.Set(ctx, m.Key, m.Value)
		}
		if err != nil {
			s.restore(ctx, done)
			return fmt.Errorf("write %s: %w", m.Key, err)
		}
		done = append(done, priorValue{key: m.Key, value: old, existed: existed})
	}
	return nil
}

func (s *ChaosService) restore(ctx context.Context, done []priorValue) {
	ctx = context.WithoutCancel(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		p := done[i]
		var err error
		if p.existed {
			err = s.store.Set(ctx, p.key, p.value)
		} else {
			err = s.store.Delete(ctx, p.key)
		}
		if err != nil {
			s.log.Error("restore after failed commit", "key", p.key, "error", err)
		}
	}
}
