package store

import (
	"context"
	"fmt"
	"time"

	"pharmastore/m/internal/feed"
)

// Helpers shared by the simple collections. Each record type is mutated only
// through insert/update/deleteByID, so every write reaches the change feed.

func listAll[T validator](ctx context.Context, s *Store, collection, query string, args ...any) ([]T, error) {
	defer s.track(collection + ".list")(time.Now())
	var rows []T
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return keepValid(s.log, collection, rows), nil
}

func getOne[T validator](ctx context.Context, s *Store, collection, query string, args ...any) (T, error) {
	defer s.track(collection + ".get")(time.Now())
	var row T
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), args...); err != nil {
		return row, fmt.Errorf("get %s: %w", collection, classify(err))
	}
	if err := row.Validate(); err != nil {
		return row, fmt.Errorf("get %s: %w", collection, err)
	}
	return row, nil
}

func (s *Store) insert(ctx context.Context, collection, query, id string, doc validator) error {
	defer s.track(collection + ".create")(time.Now())
	if err := doc.Validate(); err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create %s: %w", collection, classify(err))
	}
	s.publish(ctx, feed.NewEvent(collection, feed.OpAdded, id, doc))
	return nil
}

func (s *Store) update(ctx context.Context, collection, query, id string, doc validator) error {
	defer s.track(collection + ".update")(time.Now())
	if err := doc.Validate(); err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, query, doc)
	if err != nil {
		return fmt.Errorf("update %s: %w", collection, classify(err))
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("update %s %s: %w", collection, id, err)
	}
	s.publish(ctx, feed.NewEvent(collection, feed.OpModified, id, doc))
	return nil
}
