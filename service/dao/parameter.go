package dao

// StatusParameter is the parameter name used to filter by entity status.
const StatusParameter = "Status"

type Parameter struct {
	Name  string
	Value interface{}
}

func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}

// WithStatus returns a status filter matching any of statuses.
func WithStatus(statuses ...string) *Parameter {
	return NewParameter(StatusParameter, statuses...)
}
