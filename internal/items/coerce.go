package items

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// coerceToString renders a decoded JSON scalar the way an operator would type
// it into the ERP. Whole numbers never get an exponent or decimal point.
func coerceToString(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", fmt.Errorf("value is null")
	case string:
		return strings.TrimSpace(v), nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case bool:
		return "", fmt.Errorf("boolean is not a valid identifier")
	default:
		return "", fmt.Errorf("cannot convert %T to text", value)
	}
}
