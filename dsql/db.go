package dsql

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/luno/docstream"
)

// getPosition returns the stored position of the scope. It inserts a row
// with a null position if the scope is unknown.
func getPosition(ctx context.Context, dbc *sql.DB, schema ctableSchema,
	now time.Time, scope string,
) (docstream.Position, error) {
	var pos sql.NullString
	err := dbc.QueryRowContext(ctx, "select "+schema.positionField+
		" from "+schema.name+" where "+schema.scopeField+"=?", scope).Scan(&pos)
	if errors.Is(err, sql.ErrNoRows) {
		return "", insertPlaceholder(ctx, dbc, schema, now, scope)
	} else if err != nil {
		return "", errors.Wrap(err, "query position error", j.KS("scope", scope))
	}

	return docstream.Position(pos.String), nil
}

func insertPlaceholder(ctx context.Context, dbc *sql.DB, schema ctableSchema,
	now time.Time, scope string,
) error {
	_, err := dbc.ExecContext(ctx, "insert into "+schema.name+" ("+
		schema.scopeField+", "+schema.positionField+", "+schema.timeField+
		") values (?, null, ?)", scope, now)
	if err == nil {
		return nil
	}

	// Another process may have inserted it concurrently.
	var exists int
	getErr := dbc.QueryRowContext(ctx, "select 1 from "+schema.name+
		" where "+schema.scopeField+"=?", scope).Scan(&exists)
	if getErr == nil {
		return nil
	}

	return errors.Wrap(err, "insert placeholder error", j.KS("scope", scope))
}

// setPosition overwrites the position of the scope. Positions are opaque
// so unlike cursors they are not compared; the last writer wins.
func setPosition(ctx context.Context, dbc *sql.DB, schema ctableSchema,
	now time.Time, scope string, pos docstream.Position,
) error {
	opts := []errors.Option{j.KS("scope", scope), j.KS("position", string(pos))}

	res, err := dbc.ExecContext(ctx, "update "+schema.name+
		" set "+schema.positionField+"=?, "+schema.timeField+"=? where "+schema.scopeField+"=?",
		string(pos), now, scope)
	if err != nil {
		return errors.Wrap(err, "set position error", opts...)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected error", opts...)
	} else if rows > 1 {
		return errors.New("invalid rows affected error", opts...)
	} else if rows == 1 {
		// done
		return nil
	}

	// Insert since rows == 0
	_, err = dbc.ExecContext(ctx, "insert into "+schema.name+" ("+
		schema.scopeField+", "+schema.positionField+", "+schema.timeField+
		") values (?, ?, ?)", scope, string(pos), now)
	if isMySQLErrDupEntry(err) {
		// MySQL reports zero affected rows if the row didn't change.
		return nil
	} else if err != nil {
		return errors.Wrap(err, "insert position error", opts...)
	}

	return nil
}

func resetPosition(ctx context.Context, dbc *sql.DB, schema ctableSchema,
	now time.Time, scope string,
) error {
	_, err := dbc.ExecContext(ctx, "update "+schema.name+
		" set "+schema.positionField+"=null, "+schema.timeField+"=? where "+schema.scopeField+"=?",
		now, scope)
	if err != nil {
		return errors.Wrap(err, "reset position error", j.KS("scope", scope))
	}
	return nil
}

// isMySQLErrDupEntry returns true if the error is due to a duplicate key.
//   - 1062: ER_DUP_ENTRY
func isMySQLErrDupEntry(err error) bool {
	return isMySQLErr(err, 1062)
}

// See https://dev.mysql.com/doc/refman/5.6/en/error-messages-server.html#error_er_dup_entry
func isMySQLErr(err error, nums ...uint16) bool {
	if err == nil {
		return false
	}

	me := new(mysql.MySQLError)
	if !errors.As(err, &me) {
		return false
	}

	for _, num := range nums {
		if me.Number == num {
			return true
		}
	}

	return false
}
