package service

import (
	"strconv"
	"strings"

	"conference-central/database"
	apperrors "conference-central/errors"
	"conference-central/model"
)

var filterFields = map[string]string{
	"CITY":          "city",
	"TOPIC":         "topics",
	"MONTH":         "month",
	"MAX_ATTENDEES": "maxAttendees",
}

var filterOperators = map[string]database.Operator{
	"EQ":   database.OpEq,
	"GT":   database.OpGt,
	"GTEQ": database.OpGte,
	"LT":   database.OpLt,
	"LTEQ": database.OpLte,
	"NE":   database.OpNe,
}

var integerFields = map[string]bool{
	"month":        true,
	"maxAttendees": true,
}

// translateFilters turns client filters into a conference query. At most one field may carry
// inequality filters, and results are ordered by that field first.
func translateFilters(forms []model.ConferenceQueryForm) (database.Query, error) {
	q := database.Query{}
	inequalityField := ""

	for _, f := range forms {
		field, ok := filterFields[strings.ToUpper(strings.TrimSpace(f.Field))]
		if !ok {
			return database.Query{}, apperrors.BadRequest("Filter contains invalid field %q", f.Field)
		}
		op, ok := filterOperators[strings.ToUpper(strings.TrimSpace(f.Operator))]
		if !ok {
			return database.Query{}, apperrors.BadRequest("Filter contains invalid operator %q", f.Operator)
		}

		if op.IsInequality() {
			if inequalityField != "" && inequalityField != field {
				return database.Query{}, apperrors.BadRequest("Inequality filter is allowed on only one field.")
			}
			inequalityField = field
		}

		var value any = f.Value
		if integerFields[field] {
			n, err := strconv.Atoi(strings.TrimSpace(f.Value))
			if err != nil {
				return database.Query{}, apperrors.BadRequest("Filter on %s needs an integer value, got %q", f.Field, f.Value)
			}
			value = n
		}
		q.Filters = append(q.Filters, database.Filter{Field: field, Op: op, Value: value})
	}

	if inequalityField != "" {
		q.OrderBy = []string{inequalityField, "name"}
	} else {
		q.OrderBy = []string{"name"}
	}
	return q, nil
}
