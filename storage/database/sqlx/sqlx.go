package sqlxrepos

import (
	"encoding/json"
	"strings"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/adribv/edutool/core"
)

const pqUniqueViolation = "23505"

// mapError turns driver errors into the domain's storage errors.
func mapError(err error) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
		return core.ErrActiveRecordExists
	}
	return err
}

func toJSON(v interface{}) (types.JSONText, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding json column")
	}
	return types.JSONText(b), nil
}

func fromJSON(col types.JSONText, v interface{}) error {
	if len(col) == 0 {
		return nil
	}
	return errors.Wrap(col.Unmarshal(v), "decoding json column")
}

const likeEscape = ` ESCAPE '\'`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern matches s anywhere, taking its characters literally. Use with ESCAPE '\'.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
