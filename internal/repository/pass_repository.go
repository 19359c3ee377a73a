package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/studycafe-seat-pass/internal/model"
	"github.com/iliyamo/studycafe-seat-pass/internal/service"
)

const passColumns = "id, name, pass_type, duration, price"

func listPassDefinitions(ctx context.Context, q querier) ([]model.PassDefinition, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+passColumns+" FROM passes ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PassDefinition{}
	for rows.Next() {
		var d model.PassDefinition
		if err := rows.Scan(&d.ID, &d.Name, &d.PassType, &d.Duration, &d.Price); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func getPassDefinition(ctx context.Context, q querier, id uint64) (model.PassDefinition, error) {
	var d model.PassDefinition
	err := q.QueryRowContext(ctx, "SELECT "+passColumns+" FROM passes WHERE id=? LIMIT 1", id).
		Scan(&d.ID, &d.Name, &d.PassType, &d.Duration, &d.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PassDefinition{}, service.ErrNotFound
	}
	return d, err
}
