package criteria

import (
	"github.com/viant/fluxgate/service/dao"
)

// FilterByStatus reports whether status satisfies every status parameter.
// Parameters with other names are ignored.
func FilterByStatus(status string, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != dao.StatusParameter {
			continue
		}
		if !matches(status, parameter.Value) {
			return false
		}
	}
	return true
}

// Statuses returns the status values requested by parameters.
func Statuses(parameters []*dao.Parameter) []string {
	var ret []string
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != dao.StatusParameter {
			continue
		}
		switch actual := parameter.Value.(type) {
		case string:
			ret = append(ret, actual)
		case []string:
			ret = append(ret, actual...)
		}
	}
	return ret
}

func matches(status string, value interface{}) bool {
	switch actual := value.(type) {
	case string:
		return status == actual
	case []string:
		for _, s := range actual {
			if status == s {
				return true
			}
		}
		return false
	}
	return true
}
